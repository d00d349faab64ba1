package repositories

import (
	"context"

	"marketplace/internal/common"
	"marketplace/internal/models"
)

type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	UpdatePlan(ctx context.Context, id string, plan models.Plan) error
}

type profileRepo struct {
	db DB
}

func NewProfileRepo(db DB) ProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `
		SELECT id, email, plan, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`
	profile := &models.Profile{}
	err := r.db.QueryRow(ctx, query, id).Scan(&profile.ID, &profile.Email, &profile.PlanName, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return profile, nil
}

func (r *profileRepo) UpdatePlan(ctx context.Context, id string, plan models.Plan) error {
	tag, err := r.db.Exec(ctx, `UPDATE profiles SET plan = $2, updated_at = NOW() WHERE id = $1`, id, plan.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}
