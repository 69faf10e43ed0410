// Package workflow hands finalized claims to the process engine.
package workflow

import (
	"context"

	"claimsflow/internal/common/logger"
	"claimsflow/internal/models"
)

// ClaimCreator persists a new claim.
type ClaimCreator interface {
	Create(ctx context.Context, claim *models.Claim) (*models.Claim, error)
	Get(ctx context.Context, id string) (*models.Claim, error)
}

// ProcessStarter creates a process instance on the workflow engine.
type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, variables interface{}) (int64, error)
}

// ProcessVariables seed the triage process. Workers read claimId.
type ProcessVariables struct {
	ClaimID      string              `json:"claimId"`
	PolicyNumber string              `json:"policyNumber"`
	AccidentType models.AccidentType `json:"accidentType"`
	PhotoCount   int                 `json:"photoCount"`
}

// Launcher creates claims and starts the triage process for each one. A
// claim whose process fails to start is still created; triage can then be
// driven through the API.
type Launcher struct {
	creator   ClaimCreator
	starter   ProcessStarter
	processID string
	logger    logger.Logger
}

func NewLauncher(creator ClaimCreator, starter ProcessStarter, processID string, log logger.Logger) *Launcher {
	return &Launcher{
		creator:   creator,
		starter:   starter,
		processID: processID,
		logger:    log.WithFields(map[string]interface{}{"component": "workflow-launcher", "processId": processID}),
	}
}

func (l *Launcher) Create(ctx context.Context, claim *models.Claim) (*models.Claim, error) {
	created, err := l.creator.Create(ctx, claim)
	if err != nil {
		return nil, err
	}

	key, err := l.starter.StartProcess(ctx, l.processID, ProcessVariables{
		ClaimID:      created.ID,
		PolicyNumber: created.PolicyNumber,
		AccidentType: created.AccidentType,
		PhotoCount:   len(created.Photos),
	})
	if err != nil {
		l.logger.Warn("failed to start claim process", map[string]interface{}{
			"claimId": created.ID,
			"error":   err.Error(),
		})
		return created, nil
	}

	l.logger.Info("claim process started", map[string]interface{}{
		"claimId":            created.ID,
		"processInstanceKey": key,
	})
	return created, nil
}

func (l *Launcher) Get(ctx context.Context, id string) (*models.Claim, error) {
	return l.creator.Get(ctx, id)
}
