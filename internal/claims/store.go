package claims

import (
	"context"
	"time"

	"claimsflow/internal/models"
)

// Store is the persistence interface for claims. Implementations return
// copies and report unknown ids as NOT_FOUND errors. Save writes only if the
// stored UpdatedAt still equals prevUpdatedAt and reports CONFLICT otherwise.
type Store interface {
	Get(ctx context.Context, id string) (*models.Claim, error)
	Create(ctx context.Context, claim *models.Claim) error
	Save(ctx context.Context, claim *models.Claim, prevUpdatedAt time.Time) error
	List(ctx context.Context, filter Filter) ([]*models.Claim, error)
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status models.ClaimStatus
	Tier   models.AdjusterTier
	Limit  int
}

// Matches reports whether c passes the filter.
func (f Filter) Matches(c *models.Claim) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Tier != "" && (c.Routing == nil || c.Routing.AdjusterTier != f.Tier) {
		return false
	}
	return true
}

// Observer is told about every committed claim write.
type Observer interface {
	ClaimSaved(ctx context.Context, claim *models.Claim)
}

// NotificationSink receives notifications appended by a committed write.
type NotificationSink interface {
	Deliver(ctx context.Context, claim *models.Claim, notification models.ClaimNotification)
}
