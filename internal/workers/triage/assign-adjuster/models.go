// internal/workers/triage/assign-adjuster/models.go
package assignadjuster

import (
	"time"

	"claimsflow/internal/models"
)

type Input struct {
	ClaimID string `json:"claimId"`
}

type Output struct {
	ClaimID             string              `json:"claimId"`
	AssignedAdjuster    string              `json:"assignedAdjuster"`
	AdjusterTier        models.AdjusterTier `json:"adjusterTier"`
	EstimatedCompletion time.Time           `json:"estimatedCompletion"`
	Status              models.ClaimStatus  `json:"claimStatus"`
}
