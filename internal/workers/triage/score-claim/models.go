// internal/workers/triage/score-claim/models.go
package scoreclaim

import "claimsflow/internal/models"

type Input struct {
	ClaimID   string `json:"claimId"`
	Recompute bool   `json:"recompute"`
}

type Output struct {
	ClaimID string             `json:"claimId"`
	Scores  models.ClaimScores `json:"scores"`
	// FraudRisk is flattened for gateway conditions in the process model.
	FraudRisk int `json:"fraudRisk"`
}
