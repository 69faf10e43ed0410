// internal/workers/communication/notify-claim/models.go
package notifyclaim

import (
	"time"

	"claimsflow/internal/models"
)

type Input struct {
	ClaimID string                  `json:"claimId"`
	Type    models.NotificationType `json:"type"`
	Message string                  `json:"message"`
}

type Output struct {
	ClaimID        string    `json:"claimId"`
	NotificationID string    `json:"notificationId"`
	NotifiedAt     time.Time `json:"notifiedAt"`
}
