package notifications

import (
	"fmt"

	"claimsflow/internal/models"
)

// TriagedMessage is appended when routing moves a claim to triage.
func TriagedMessage(tier models.AdjusterTier) string {
	return fmt.Sprintf(msgClaimTriaged, tier)
}

// AssignedMessage is appended when an adjuster is assigned.
func AssignedMessage(adjuster string) string {
	return fmt.Sprintf(msgClaimAssigned, adjuster)
}
