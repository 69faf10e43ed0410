package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsclient "claimsflow/internal/common/aws"
	"claimsflow/internal/common/logger"
	"claimsflow/internal/common/metrics"
	"claimsflow/internal/common/validation"
	"claimsflow/internal/models"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"

	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
	StatusSkipped  = "skipped"

	defaultDeliveryTimeout = 10 * time.Second
)

type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type SMSPublisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

var subjects = map[models.NotificationType]string{
	models.NotificationStatusUpdate:    "Claim status update",
	models.NotificationDocumentRequest: "Documents requested for your claim",
	models.NotificationAssignment:      "Your claim has an adjuster",
	models.NotificationPayment:         "Claim payment update",
}

// Dispatcher copies new log entries to the claimant over email and SMS.
// Delivery runs in the background and never affects the claim write.
type Dispatcher struct {
	email    EmailSender
	from     string
	sms      SMSPublisher
	senderID string
	timeout  time.Duration
	logger   logger.Logger
	wg       sync.WaitGroup
}

type DispatchOption func(*Dispatcher)

func WithEmail(sender EmailSender, from string) DispatchOption {
	return func(d *Dispatcher) {
		d.email = sender
		d.from = from
	}
}

func WithSMS(publisher SMSPublisher, senderID string) DispatchOption {
	return func(d *Dispatcher) {
		d.sms = publisher
		d.senderID = senderID
	}
}

func NewDispatcher(log logger.Logger, opts ...DispatchOption) *Dispatcher {
	d := &Dispatcher{
		timeout: defaultDeliveryTimeout,
		logger:  log.WithFields(map[string]interface{}{"component": "notification-dispatch"}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver sends n asynchronously. Call Wait to drain pending deliveries.
func (d *Dispatcher) Deliver(ctx context.Context, c *models.Claim, n models.ClaimNotification) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		d.Send(ctx, c, n)
	}()
}

// Wait blocks until every pending delivery finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Send delivers n on every channel and returns one record per channel.
func (d *Dispatcher) Send(ctx context.Context, c *models.Claim, n models.ClaimNotification) []models.DeliveryRecord {
	records := []models.DeliveryRecord{
		d.sendEmail(ctx, c, n),
		d.sendSMS(ctx, c, n),
	}
	for _, r := range records {
		metrics.NotificationDeliveries.WithLabelValues(r.Channel, r.Status).Inc()
		if r.Status == StatusFailed {
			d.logger.Warn("notification delivery failed", map[string]interface{}{
				"claimId":        r.ClaimID,
				"notificationId": r.NotificationID,
				"channel":        r.Channel,
				"error":          r.Error,
			})
		}
	}
	return records
}

func (d *Dispatcher) sendEmail(ctx context.Context, c *models.Claim, n models.ClaimNotification) models.DeliveryRecord {
	rec := record(c, n, ChannelEmail)
	switch {
	case d.email == nil:
		rec.Status = StatusDisabled
		return rec
	case !validation.ValidateEmail(c.CustomerEmail):
		rec.Status = StatusSkipped
		return rec
	}

	subject := fmt.Sprintf("%s (claim %s)", subjects[n.Type], shortID(c.ID))
	out, err := d.email.SendEmail(ctx, awsclient.TextEmail(d.from, c.CustomerEmail, subject, n.Message))
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
		return rec
	}
	rec.Status = StatusSent
	rec.MessageID = awssdk.ToString(out.MessageId)
	return rec
}

func (d *Dispatcher) sendSMS(ctx context.Context, c *models.Claim, n models.ClaimNotification) models.DeliveryRecord {
	rec := record(c, n, ChannelSMS)
	switch {
	case d.sms == nil:
		rec.Status = StatusDisabled
		return rec
	case !validation.ValidatePhone(c.CustomerPhone):
		rec.Status = StatusSkipped
		return rec
	}

	out, err := d.sms.Publish(ctx, awsclient.SMS(c.CustomerPhone, n.Message, d.senderID))
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
		return rec
	}
	rec.Status = StatusSent
	rec.MessageID = awssdk.ToString(out.MessageId)
	return rec
}

func record(c *models.Claim, n models.ClaimNotification, channel string) models.DeliveryRecord {
	return models.DeliveryRecord{NotificationID: n.ID, ClaimID: c.ID, Channel: channel}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
