// internal/workers/communication/notify-claim/handler.go
package notifyclaim

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/common/logger"
	"claimsflow/internal/common/validation"
	"claimsflow/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "notify-claim"
)

// Notifier appends to a claim's notification log. Outbound email and SMS
// copies are sent by the repository's notification sinks.
type Notifier interface {
	AddNotification(ctx context.Context, claimID string, typ models.NotificationType, message string) (models.ClaimNotification, error)
}

type Handler struct {
	config   *Config
	notifier Notifier
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, notifier Notifier, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		notifier: notifier,
		errors:   apperrors.NewErrorHandler(log),
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		err = apperrors.NewValidationFailedError("variables", fmt.Sprintf("parse input: %v", err))
		h.errors.HandleJobError(ctx, client, job, err)
		return err
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return err
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return err
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ClaimID == "" {
		return nil, apperrors.NewValidationFailedError("claimId", "claimId is required")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	n, err := h.notifier.AddNotification(ctx, input.ClaimID, input.Type, input.Message)
	if err != nil {
		return nil, err
	}

	h.logger.Info("notification recorded", map[string]interface{}{
		"claimId":        input.ClaimID,
		"notificationId": n.ID,
		"type":           n.Type,
	})
	return &Output{ClaimID: input.ClaimID, NotificationID: n.ID, NotifiedAt: n.Timestamp}, nil
}

func validateInput(input *Input) error {
	doc, err := json.Marshal(input)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	result, err := validation.NotificationSchema.Validate(doc)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if !result.Valid {
		return apperrors.NewValidationFailedError(result.Errors[0].Field, strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
