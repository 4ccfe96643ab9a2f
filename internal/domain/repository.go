package domain

import (
	"context"
	"time"
)

// StepRepository persists step animation fields.
type StepRepository interface {
	GetByOperationID(ctx context.Context, operationID string) (*Step, error)
	GetForAnimation(ctx context.Context, stepID int64) (*AnimationTarget, error)
	CountPlanSteps(ctx context.Context, planID int64) (int, error)
	// TransitionByOperationID writes next only when the stored state still
	// equals expected. It reports false when another writer got there first.
	TransitionByOperationID(ctx context.Context, operationID string, expected AnimationState, next Animation) (bool, error)
	// ResetAnimation attaches a fresh operation to the step in the processing
	// state, clearing any previous result or error. It returns the operation
	// id that was replaced, if any.
	ResetAnimation(ctx context.Context, stepID int64, operationID string) (string, error)
	// TouchAnimation refreshes the updated timestamp of a processing step so
	// a step whose poll keeps failing does not stay first in ListStale.
	TouchAnimation(ctx context.Context, operationID string) error
	// ListStale returns processing steps not updated since updatedBefore,
	// least recently updated first.
	ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]Step, error)
}

// PlanRepository persists plans and their steps.
type PlanRepository interface {
	Create(ctx context.Context, plan *Plan, steps []Step) (int64, error)
	List(ctx context.Context, limit int) ([]PlanSummary, error)
	GetWithSteps(ctx context.Context, planID int64) (*Plan, []Step, error)
	Delete(ctx context.Context, planID int64) (bool, error)
}
