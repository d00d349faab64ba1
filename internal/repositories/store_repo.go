package repositories

import (
	"context"
	"errors"

	"marketplace/internal/common"
	"marketplace/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNoCapacity is returned by ReserveSlot when the owner is already at the limit.
var ErrNoCapacity = errors.New("no store slot available")

// SlotReservation holds one reserved quota slot until the store row is
// written (Commit) or the reservation is abandoned (Release).
type SlotReservation interface {
	Commit(ctx context.Context, store *models.Store) error
	Release(ctx context.Context) error
}

type StoreRepository interface {
	ReserveSlot(ctx context.Context, ownerID string, limit int) (SlotReservation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Store, error)
	CountActive(ctx context.Context, ownerID string) (int, error)
	Update(ctx context.Context, store *models.Store) error
	SoftDelete(ctx context.Context, ownerID string, id uuid.UUID) error
	ListQuotaHolders(ctx context.Context) ([]*models.OverQuotaOwner, error)
}

type storeRepo struct {
	db DB
}

func NewStoreRepo(db DB) StoreRepository {
	return &storeRepo{db: db}
}

// ReserveSlot increments the owner's counter only while it is below limit.
// The counter row stays locked by the open transaction, so concurrent
// reservations for the same owner queue behind it and re-check the ceiling.
func (r *storeRepo) ReserveSlot(ctx context.Context, ownerID string, limit int) (SlotReservation, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}

	seed := `
		INSERT INTO store_quotas (owner_id, active_count, updated_at)
		SELECT $1, COUNT(*), NOW() FROM stores WHERE owner_id = $1 AND verification_status <> 'deleted'
		ON CONFLICT (owner_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, seed, ownerID); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	reserve := `
		UPDATE store_quotas
		SET active_count = active_count + 1, updated_at = NOW()
		WHERE owner_id = $1 AND active_count < $2
	`
	tag, err := tx.Exec(ctx, reserve, ownerID, limit)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return nil, ErrNoCapacity
	}

	return &slotReservation{tx: tx}, nil
}

type slotReservation struct {
	tx pgx.Tx
}

func (s *slotReservation) Commit(ctx context.Context, store *models.Store) error {
	query := `
		INSERT INTO stores (id, owner_id, name, description, category, logo_url, is_active, verification_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err := s.tx.Exec(ctx, query, store.ID, store.OwnerID, store.Name, store.Description, store.Category, store.LogoURL, store.IsActive, store.VerificationStatus)
	if err != nil {
		_ = s.tx.Rollback(ctx)
		return err
	}
	return s.tx.Commit(ctx)
}

func (s *slotReservation) Release(ctx context.Context) error {
	err := s.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func (r *storeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	query := `
		SELECT id, owner_id, name, description, category, logo_url, is_active, verification_status, created_at, updated_at
		FROM stores
		WHERE id = $1
	`
	store := &models.Store{}
	err := r.db.QueryRow(ctx, query, id).Scan(&store.ID, &store.OwnerID, &store.Name, &store.Description, &store.Category, &store.LogoURL, &store.IsActive, &store.VerificationStatus, &store.CreatedAt, &store.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return store, nil
}

func (r *storeRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.Store, error) {
	query := `
		SELECT id, owner_id, name, description, category, logo_url, is_active, verification_status, created_at, updated_at
		FROM stores
		WHERE owner_id = $1 AND verification_status <> 'deleted'
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []*models.Store
	for rows.Next() {
		store := &models.Store{}
		if err := rows.Scan(&store.ID, &store.OwnerID, &store.Name, &store.Description, &store.Category, &store.LogoURL, &store.IsActive, &store.VerificationStatus, &store.CreatedAt, &store.UpdatedAt); err != nil {
			return nil, err
		}
		stores = append(stores, store)
	}
	return stores, rows.Err()
}

func (r *storeRepo) CountActive(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM stores WHERE owner_id = $1 AND verification_status <> 'deleted'`, ownerID).Scan(&count)
	return count, err
}

func (r *storeRepo) Update(ctx context.Context, store *models.Store) error {
	query := `
		UPDATE stores
		SET name = $3, description = $4, category = $5, logo_url = $6, is_active = $7, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND verification_status <> 'deleted'
	`
	tag, err := r.db.Exec(ctx, query, store.ID, store.OwnerID, store.Name, store.Description, store.Category, store.LogoURL, store.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

// SoftDelete marks the store deleted and gives its quota slot back. The row is kept.
func (r *storeRepo) SoftDelete(ctx context.Context, ownerID string, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE stores
		SET is_active = false, verification_status = 'deleted', updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND verification_status <> 'deleted'
	`
	tag, err := tx.Exec(ctx, query, id, ownerID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return common.ErrNotFound
	}

	release := `
		UPDATE store_quotas
		SET active_count = GREATEST(active_count - 1, 0), updated_at = NOW()
		WHERE owner_id = $1
	`
	if _, err := tx.Exec(ctx, release, ownerID); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// ListQuotaHolders returns every owner holding at least one store, with the plan on record.
func (r *storeRepo) ListQuotaHolders(ctx context.Context) ([]*models.OverQuotaOwner, error) {
	query := `
		SELECT q.owner_id, COALESCE(p.plan, ''), q.active_count
		FROM store_quotas q
		LEFT JOIN profiles p ON p.id = q.owner_id
		WHERE q.active_count > 0
		ORDER BY q.owner_id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []*models.OverQuotaOwner
	for rows.Next() {
		o := &models.OverQuotaOwner{}
		if err := rows.Scan(&o.OwnerID, &o.PlanName, &o.Active); err != nil {
			return nil, err
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}
