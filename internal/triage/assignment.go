package triage

import (
	"time"

	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/models"
)

var adjusters = map[models.AdjusterTier]string{
	models.TierJunior:     "Alex Thompson",
	models.TierSenior:     "Sarah Mitchell",
	models.TierSpecialist: "Dr. Michael Chen",
	models.TierSIU:        "James Rodriguez (SIU)",
}

// AdjusterFor returns the adjuster handling a tier.
func AdjusterFor(tier models.AdjusterTier) (string, error) {
	name, ok := adjusters[tier]
	if !ok {
		return "", apperrors.NewValidationFailedError("adjusterTier", "unknown adjuster tier "+string(tier))
	}
	return name, nil
}

// EstimatedCompletion is the assignment instant plus the routed resolution days.
func EstimatedCompletion(assignedAt time.Time, days int) time.Time {
	return assignedAt.AddDate(0, 0, days)
}
