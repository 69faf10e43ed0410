// internal/workers/triage/route-claim/handler.go
package routeclaim

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/common/logger"
	"claimsflow/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "route-claim"
)

type Router interface {
	ComputeRouting(ctx context.Context, claimID string, scores *models.ClaimScores) (*models.RoutingRecommendation, error)
}

type Handler struct {
	config *Config
	router Router
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, router Router, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		router: router,
		errors: apperrors.NewErrorHandler(log),
		logger: log,
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

	rec, err := h.router.ComputeRouting(ctx, input.ClaimID, input.Scores)
	if err != nil {
		return nil, err
	}

	return &Output{
		ClaimID:                 input.ClaimID,
		Routing:                 *rec,
		AdjusterTier:            rec.AdjusterTier,
		StraightThroughEligible: rec.StraightThroughEligible,
		Status:                  models.StatusTriage,
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
