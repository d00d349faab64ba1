package jobs

import (
	"context"

	"marketplace/internal/logger"
	"marketplace/internal/metrics"
	"marketplace/internal/models"
	"marketplace/internal/repositories"

	"go.uber.org/zap"
)

// QuotaAuditService finds owners holding more stores than their current plan
// allows, typically after a downgrade. It reports them and changes nothing.
type QuotaAuditService struct {
	storeRepo repositories.StoreRepository
}

// QuotaViolation is an owner over their plan's store limit.
type QuotaViolation struct {
	OwnerID string
	Plan    models.Plan
	Limit   int
	Active  int
}

func NewQuotaAuditService(storeRepo repositories.StoreRepository) *QuotaAuditService {
	return &QuotaAuditService{storeRepo: storeRepo}
}

// Audit lists the current violations and publishes their count.
func (a *QuotaAuditService) Audit(ctx context.Context) ([]QuotaViolation, error) {
	log := logger.FromContext(ctx)

	holders, err := a.storeRepo.ListQuotaHolders(ctx)
	if err != nil {
		log.Error("quota audit: failed to list quota holders", zap.Error(err))
		return nil, err
	}

	var violations []QuotaViolation
	for _, holder := range holders {
		plan, known := models.ParsePlan(holder.PlanName)
		if !known {
			log.Warn("quota audit: unknown plan, applying free tier limits",
				zap.String("owner_id", holder.OwnerID),
				zap.String("plan", holder.PlanName))
		}

		limit := plan.StoreLimit()
		if holder.Active <= limit {
			continue
		}

		violations = append(violations, QuotaViolation{
			OwnerID: holder.OwnerID,
			Plan:    plan,
			Limit:   limit,
			Active:  holder.Active,
		})
		log.Warn("owner over store quota",
			zap.String("owner_id", holder.OwnerID),
			zap.String("plan", plan.String()),
			zap.Int("limit", limit),
			zap.Int("active", holder.Active))
	}

	metrics.OwnersOverQuota.Set(float64(len(violations)))
	log.Info("quota audit completed", zap.Int("owners", len(holders)), zap.Int("over_quota", len(violations)))
	return violations, nil
}
