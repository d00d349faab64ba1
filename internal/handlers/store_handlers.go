package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"marketplace/internal/common"
	"marketplace/internal/logger"
	"marketplace/internal/models"
	"marketplace/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// StoreHandlers handles HTTP requests for stores
type StoreHandlers struct {
	storeService services.StoreService
}

// NewStoreHandlers creates a new store handlers instance
func NewStoreHandlers(storeService services.StoreService) *StoreHandlers {
	return &StoreHandlers{storeService: storeService}
}

// CreateStoreRequest holds the store fields of a create request. OwnerID
// defaults to the caller.
type CreateStoreRequest struct {
	OwnerID string `json:"owner_id" form:"owner_id"`
	models.StoreAttributes
}

// CreateStoreResponse is returned when a store is created.
type CreateStoreResponse struct {
	ID uuid.UUID `json:"id"`
}

// ListStores returns the caller's stores.
// @Summary      List stores
// @Tags         stores
// @Produce      json
// @Success      200  {array}  models.Store
// @Router       /v1/stores [get]
func (h *StoreHandlers) ListStores(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	stores, err := h.storeService.List(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}
	if stores == nil {
		stores = []*models.Store{}
	}
	return c.JSON(http.StatusOK, stores)
}

// GetUsage returns the caller's plan, store limit and active store count.
// @Summary      Store quota usage
// @Tags         stores
// @Produce      json
// @Success      200  {object}  models.QuotaUsage
// @Router       /v1/stores/usage [get]
func (h *StoreHandlers) GetUsage(c echo.Context) error {
	usage, err := h.storeService.Usage(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, usage)
}

// CreateStore creates a store if the owner's plan has room for it.
// @Summary      Create a store
// @Tags         stores
// @Accept       multipart/form-data
// @Produce      json
// @Param        name           formData  string  true   "Store name"
// @Param        description    formData  string  false  "Description"
// @Param        category       formData  string  true   "Category"
// @Param        logo           formData  file    false  "Logo image or video"
// @Param        logo_duration  formData  string  false  "Video length, seconds or Go duration"
// @Success      201  {object}  CreateStoreResponse
// @Failure      400  {object}  common.ErrorResponse
// @Failure      409  {object}  common.ErrorResponse
// @Failure      422  {object}  common.ErrorResponse
// @Router       /v1/stores [post]
func (h *StoreHandlers) CreateStore(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req CreateStoreRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if req.OwnerID == "" {
		req.OwnerID = userID
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)

	logo, closeLogo, err := readLogo(c)
	if err != nil {
		return respondError(c, err)
	}
	defer closeLogo()

	id, err := h.storeService.CheckAndCreate(ctx, req.OwnerID, req.StoreAttributes, logo)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, CreateStoreResponse{ID: id})
}

// GetStore returns one of the caller's stores.
// @Summary      Get a store
// @Tags         stores
// @Produce      json
// @Param        id  path  string  true  "Store ID"
// @Success      200  {object}  models.Store
// @Failure      404  {object}  common.ErrorResponse
// @Router       /v1/stores/{id} [get]
func (h *StoreHandlers) GetStore(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	store, err := h.storeService.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, store)
}

// UpdateStore applies a partial update, optionally replacing the logo.
// @Summary      Update a store
// @Tags         stores
// @Accept       multipart/form-data
// @Produce      json
// @Param        id  path  string  true  "Store ID"
// @Success      200  {object}  models.Store
// @Failure      401  {object}  common.ErrorResponse
// @Failure      422  {object}  common.ErrorResponse
// @Router       /v1/stores/{id} [patch]
func (h *StoreHandlers) UpdateStore(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	form, err := c.FormParams()
	if err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	updates, err := parseStoreUpdate(form)
	if err != nil {
		return respondError(c, err)
	}

	logo, closeLogo, err := readLogo(c)
	if err != nil {
		return respondError(c, err)
	}
	defer closeLogo()

	store, err := h.storeService.Update(c.Request().Context(), id, updates, logo)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, store)
}

// DeleteStore soft deletes a store and frees its quota slot.
// @Summary      Delete a store
// @Tags         stores
// @Param        id  path  string  true  "Store ID"
// @Success      204
// @Failure      404  {object}  common.ErrorResponse
// @Router       /v1/stores/{id} [delete]
func (h *StoreHandlers) DeleteStore(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.storeService.SoftDelete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangePlanRequest moves an owner to another plan.
type ChangePlanRequest struct {
	Plan string `json:"plan"`
}

// ChangePlanResponse reports the owner's plan and store limit after a change.
type ChangePlanResponse struct {
	OwnerID string      `json:"owner_id"`
	Plan    models.Plan `json:"plan"`
	Limit   int         `json:"limit"`
}

// ChangePlan sets an owner's plan. The new limit applies to the owner's next request.
// @Summary      Change an owner's plan
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path  string             true  "Owner ID"
// @Param        body  body  ChangePlanRequest  true  "Plan"
// @Success      200  {object}  ChangePlanResponse
// @Failure      400  {object}  common.ErrorResponse
// @Failure      404  {object}  common.ErrorResponse
// @Router       /v1/admin/profiles/{id}/plan [put]
func (h *StoreHandlers) ChangePlan(c echo.Context) error {
	ownerID := strings.TrimSpace(c.Param("id"))
	if ownerID == "" {
		return common.SendValidationError(c, "id", "is required")
	}

	var req ChangePlanRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	plan, ok := models.ParsePlan(req.Plan)
	if !ok {
		return common.SendValidationError(c, "plan", "must be one of: free, standard, premium, business, enterprise")
	}

	if err := h.storeService.ChangePlan(c.Request().Context(), ownerID, plan); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ChangePlanResponse{OwnerID: ownerID, Plan: plan, Limit: plan.StoreLimit()})
}

func parseStoreUpdate(form url.Values) (models.StoreUpdate, error) {
	var updates models.StoreUpdate
	optional := func(key string) *string {
		if _, ok := form[key]; !ok {
			return nil
		}
		v := strings.TrimSpace(form.Get(key))
		return &v
	}

	updates.Name = optional("name")
	updates.Description = optional("description")
	updates.Category = optional("category")
	if raw := optional("is_active"); raw != nil {
		active, err := strconv.ParseBool(*raw)
		if err != nil {
			return updates, &common.ValidationError{Fields: map[string]string{"is_active": "must be true or false"}}
		}
		updates.IsActive = &active
	}
	return updates, nil
}

// readLogo opens the optional "logo" file. The content type is sniffed from
// the file itself rather than trusted from the client.
func readLogo(c echo.Context) (*services.Upload, func(), error) {
	noop := func() {}

	header, err := c.FormFile("logo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, nil
		}
		return nil, noop, &common.ValidationError{Fields: map[string]string{"logo": "could not be read"}}
	}

	duration, err := parseDuration(c.FormValue("logo_duration"))
	if err != nil {
		return nil, noop, &common.ValidationError{Fields: map[string]string{"logo_duration": err.Error()}}
	}

	file, err := header.Open()
	if err != nil {
		return nil, noop, &common.ValidationError{Fields: map[string]string{"logo": "could not be read"}}
	}
	closeFile := func() {
		if err := file.Close(); err != nil {
			logger.FromContext(c.Request().Context()).Warn("failed to close upload", zap.Error(err))
		}
	}

	contentType, err := sniffContentType(file)
	if err != nil {
		closeFile()
		return nil, noop, &common.ValidationError{Fields: map[string]string{"logo": "could not be read"}}
	}

	return &services.Upload{
		Filename:    filepath.Base(header.Filename),
		ContentType: contentType,
		Size:        header.Size,
		Duration:    duration,
		Reader:      file,
	}, closeFile, nil
}

func sniffContentType(file multipart.File) (string, error) {
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	contentType := http.DetectContentType(buf[:n])
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return contentType, nil
}

// parseDuration accepts seconds ("12.5") or a Go duration ("12s").
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		if seconds < 0 {
			return 0, errors.New("must not be negative")
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, errors.New("must be seconds or a duration such as 15s")
	}
	return d, nil
}
