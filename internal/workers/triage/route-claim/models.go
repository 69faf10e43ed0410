// internal/workers/triage/route-claim/models.go
package routeclaim

import "claimsflow/internal/models"

type Input struct {
	ClaimID string `json:"claimId"`
	// Scores, when present, must match the claim's stored scores.
	Scores *models.ClaimScores `json:"scores,omitempty"`
}

type Output struct {
	ClaimID                 string                       `json:"claimId"`
	Routing                 models.RoutingRecommendation `json:"routing"`
	AdjusterTier            models.AdjusterTier          `json:"adjusterTier"`
	StraightThroughEligible bool                         `json:"straightThroughEligible"`
	Status                  models.ClaimStatus           `json:"claimStatus"`
}
