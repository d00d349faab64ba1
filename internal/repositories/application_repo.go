package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"marketplace/internal/common"
	"marketplace/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ApplicationRepository interface {
	Upsert(ctx context.Context, ownerID string, idempotencyKey uuid.UUID) (uuid.UUID, error)
	Patch(ctx context.Context, ownerID string, id uuid.UUID, sections models.Sections) (int64, error)
	Submit(ctx context.Context, ownerID string, id uuid.UUID, sections models.Sections) (time.Time, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.ApplicationStatus, reason *string) error
}

type applicationRepo struct {
	db DB
}

func NewApplicationRepo(db DB) ApplicationRepository {
	return &applicationRepo{db: db}
}

// Upsert creates the draft record for idempotencyKey, or returns the id of the
// one created by an earlier call with the same key.
func (r *applicationRepo) Upsert(ctx context.Context, ownerID string, idempotencyKey uuid.UUID) (uuid.UUID, error) {
	query := `
		INSERT INTO applications (id, owner_id, idempotency_key, sections, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, '{}'::jsonb, 'draft', 0, NOW(), NOW())
		ON CONFLICT (idempotency_key) DO UPDATE SET updated_at = applications.updated_at
		WHERE applications.owner_id = EXCLUDED.owner_id
		RETURNING id
	`
	var id uuid.UUID
	err := r.db.QueryRow(ctx, query, uuid.New(), ownerID, idempotencyKey).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// the key exists but belongs to someone else
		return uuid.Nil, common.ErrUnauthorized
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Patch merges sections into the stored record, replacing each named section
// wholesale, and returns the new version.
func (r *applicationRepo) Patch(ctx context.Context, ownerID string, id uuid.UUID, sections models.Sections) (int64, error) {
	payload, err := encodeSections(sections)
	if err != nil {
		return 0, err
	}

	query := `
		UPDATE applications
		SET sections = sections || $3::jsonb, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND status = 'draft'
		RETURNING version
	`
	var version int64
	err = r.db.QueryRow(ctx, query, id, ownerID, payload).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, r.explainMiss(ctx, ownerID, id)
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Submit flushes sections and moves the record from draft to pending.
// It returns common.ErrDraftSubmitted when the record has left the draft state.
func (r *applicationRepo) Submit(ctx context.Context, ownerID string, id uuid.UUID, sections models.Sections) (time.Time, error) {
	payload, err := encodeSections(sections)
	if err != nil {
		return time.Time{}, err
	}

	query := `
		UPDATE applications
		SET sections = sections || $3::jsonb, status = 'pending', applied_at = NOW(), version = version + 1, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND status = 'draft'
		RETURNING applied_at
	`
	var appliedAt time.Time
	err = r.db.QueryRow(ctx, query, id, ownerID, payload).Scan(&appliedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, r.explainMiss(ctx, ownerID, id)
	}
	if err != nil {
		return time.Time{}, err
	}
	return appliedAt, nil
}

func (r *applicationRepo) explainMiss(ctx context.Context, ownerID string, id uuid.UUID) error {
	var status models.ApplicationStatus
	err := r.db.QueryRow(ctx, `SELECT status FROM applications WHERE id = $1 AND owner_id = $2`, id, ownerID).Scan(&status)
	if err != nil {
		return notFound(err)
	}
	return common.ErrDraftSubmitted
}

func (r *applicationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	query := `
		SELECT id, owner_id, idempotency_key, sections, status, applied_at, reviewed_at, rejection_reason, version, created_at, updated_at
		FROM applications
		WHERE id = $1
	`
	app := &models.Application{}
	var sections []byte
	err := r.db.QueryRow(ctx, query, id).Scan(&app.ID, &app.OwnerID, &app.IdempotencyKey, &sections, &app.Status, &app.AppliedAt, &app.ReviewedAt, &app.RejectionReason, &app.Version, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	app.Sections = models.Sections{}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &app.Sections); err != nil {
			return nil, err
		}
	}
	return app, nil
}

func (r *applicationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.ApplicationStatus, reason *string) error {
	query := `
		UPDATE applications
		SET status = $3, reviewed_at = NOW(), rejection_reason = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	tag, err := r.db.Exec(ctx, query, id, from, to, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrInvalidTransition
	}
	return nil
}

func encodeSections(sections models.Sections) (string, error) {
	if len(sections) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(sections)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
