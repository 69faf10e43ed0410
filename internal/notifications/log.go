// Package notifications holds the per-claim notification log operations
// and the outbound email/SMS delivery of log entries.
package notifications

import (
	"strings"
	"time"

	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/models"

	"github.com/google/uuid"
)

// Messages emitted by the claim lifecycle.
const (
	MsgClaimSubmitted = "Your claim has been successfully submitted. A claims adjuster will be assigned shortly."
	msgClaimTriaged   = "Claim triaged successfully. Routed to %s adjuster."
	msgClaimAssigned  = "Your claim has been assigned to %s."
)

// New builds a log entry with a server-assigned id and timestamp.
func New(typ models.NotificationType, message string, now time.Time) (models.ClaimNotification, error) {
	if !typ.Valid() {
		return models.ClaimNotification{}, apperrors.NewValidationFailedError("type", "unknown notification type "+string(typ))
	}
	if strings.TrimSpace(message) == "" {
		return models.ClaimNotification{}, apperrors.NewValidationFailedError("message", "notification message is empty")
	}
	return models.ClaimNotification{
		ID:        uuid.New().String(),
		Timestamp: now.UTC(),
		Type:      typ,
		Message:   message,
		Read:      false,
	}, nil
}

// Append adds an entry to the end of the claim's log.
func Append(c *models.Claim, typ models.NotificationType, message string, now time.Time) (models.ClaimNotification, error) {
	n, err := New(typ, message, now)
	if err != nil {
		return n, err
	}
	c.Notifications = append(c.Notifications, n)
	return n, nil
}

// Filter returns entries in creation order. A nil read matches all entries.
func Filter(list []models.ClaimNotification, read *bool) []models.ClaimNotification {
	out := make([]models.ClaimNotification, 0, len(list))
	for _, n := range list {
		if read == nil || n.Read == *read {
			out = append(out, n)
		}
	}
	return out
}

func UnreadCount(list []models.ClaimNotification) int {
	return len(Filter(list, boolPtr(false)))
}

// MarkAllRead flips every read flag and reports how many changed.
func MarkAllRead(c *models.Claim) int {
	changed := 0
	for i := range c.Notifications {
		if !c.Notifications[i].Read {
			c.Notifications[i].Read = true
			changed++
		}
	}
	return changed
}

// VerifyAppendOnly checks that next only extends prev. Existing entries may
// only move from unread to read.
func VerifyAppendOnly(prev, next []models.ClaimNotification) error {
	if len(next) < len(prev) {
		return apperrors.NewValidationFailedError("notifications", "notifications cannot be removed")
	}
	for i, p := range prev {
		n := next[i]
		if n.ID != p.ID || n.Type != p.Type || n.Message != p.Message || !n.Timestamp.Equal(p.Timestamp) {
			return apperrors.NewValidationFailedError("notifications", "notification "+p.ID+" cannot be edited")
		}
		if p.Read && !n.Read {
			return apperrors.NewValidationFailedError("notifications", "notification "+p.ID+" cannot be marked unread")
		}
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }
