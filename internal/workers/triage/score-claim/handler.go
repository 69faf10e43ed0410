// internal/workers/triage/score-claim/handler.go
package scoreclaim

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
	TaskType = "score-claim"
)

// Scorer computes and persists triage scores.
type Scorer interface {
	ComputeScores(ctx context.Context, claimID string) (*models.ClaimScores, error)
	Rescore(ctx context.Context, claimID string) (*models.ClaimScores, error)
}

type Handler struct {
	config *Config
	scorer Scorer
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, scorer Scorer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		scorer: scorer,
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

	return h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ClaimID == "" {
		return nil, apperrors.NewValidationFailedError("claimId", "claimId is required")
	}

	score := h.scorer.ComputeScores
	if input.Recompute {
		score = h.scorer.Rescore
	}
	scores, err := score(ctx, input.ClaimID)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("claim scored", map[string]interface{}{
		"claimId":    input.ClaimID,
		"complexity": scores.Complexity,
		"fraudRisk":  scores.FraudRisk,
	})
	return &Output{ClaimID: input.ClaimID, Scores: *scores, FraudRisk: scores.FraudRisk}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
