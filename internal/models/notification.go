// internal/models/notification.go
package models

import "time"

type NotificationType string

const (
	NotificationStatusUpdate    NotificationType = "status_update"
	NotificationDocumentRequest NotificationType = "document_request"
	NotificationAssignment      NotificationType = "assignment"
	NotificationPayment         NotificationType = "payment"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationStatusUpdate, NotificationDocumentRequest, NotificationAssignment, NotificationPayment:
		return true
	}
	return false
}

// ClaimNotification is one entry of a claim's append-only notification log.
type ClaimNotification struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
}

// DeliveryRecord describes an outbound copy of a notification sent over
// email or SMS.
type DeliveryRecord struct {
	NotificationID string `json:"notificationId"`
	ClaimID        string `json:"claimId"`
	Channel        string `json:"channel"` // "email", "sms"
	Status         string `json:"status"`  // "sent", "failed", "disabled", "skipped"
	MessageID      string `json:"messageId,omitempty"`
	Error          string `json:"error,omitempty"`
}
