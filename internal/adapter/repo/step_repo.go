package repo

import (
	"context"
	"fmt"
	"time"

	"planner/internal/domain"
	"planner/internal/infra"
	"planner/internal/sqlinline"
)

// StepRepositoryPG implements domain.StepRepository.
type StepRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewStepRepository creates a step repository backed by PostgreSQL.
func NewStepRepository(sql infra.SQLExecutor) *StepRepositoryPG {
	return &StepRepositoryPG{sql: sql}
}

// GetByOperationID fetches the step currently tracking operationID.
func (r *StepRepositoryPG) GetByOperationID(ctx context.Context, operationID string) (*domain.Step, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectStepByOperation, operationID)
	step, err := scanStep(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select step by operation: %w", err)
	}
	return &step, nil
}

// GetForAnimation fetches a step together with its plan summary.
func (r *StepRepositoryPG) GetForAnimation(ctx context.Context, stepID int64) (*domain.AnimationTarget, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectStepForAnimation, stepID)
	var summary string
	step, err := scanStep(row, &summary)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select step for animation: %w", err)
	}
	return &domain.AnimationTarget{Step: step, RequestSummary: summary}, nil
}

// CountPlanSteps returns the number of steps in a plan.
func (r *StepRepositoryPG) CountPlanSteps(ctx context.Context, planID int64) (int, error) {
	var count int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountPlanSteps, planID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count plan steps: %w", err)
	}
	return count, nil
}

// TransitionByOperationID applies next when the stored status still equals expected.
func (r *StepRepositoryPG) TransitionByOperationID(ctx context.Context, operationID string, expected domain.AnimationState, next domain.Animation) (bool, error) {
	if err := next.Validate(); err != nil {
		return false, err
	}
	if next.OperationID() != operationID {
		return false, fmt.Errorf("%w: transition changes operation id", domain.ErrInvalidAnimation)
	}
	cols := next.Columns()
	tag, err := r.sql.Exec(ctx, sqlinline.QTransitionStepAnimation,
		operationID,
		expected.StatusColumn(),
		cols.Status,
		cols.Key,
		cols.URL,
		cols.Error,
	)
	if err != nil {
		return false, fmt.Errorf("update step animation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ResetAnimation moves a step onto a new operation in the processing state.
func (r *StepRepositoryPG) ResetAnimation(ctx context.Context, stepID int64, operationID string) (string, error) {
	if operationID == "" {
		return "", fmt.Errorf("%w: operation id is required", domain.ErrInvalidAnimation)
	}
	var previous string
	if err := r.sql.QueryRow(ctx, sqlinline.QResetStepAnimation, stepID, operationID).Scan(&previous); err != nil {
		if infra.IsNoRows(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("reset step animation: %w", err)
	}
	return previous, nil
}

// TouchAnimation marks a processing step as just polled without changing its
// state. It is a no-op for any other state.
func (r *StepRepositoryPG) TouchAnimation(ctx context.Context, operationID string) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QTouchStepAnimation, operationID); err != nil {
		return fmt.Errorf("touch step animation: %w", err)
	}
	return nil
}

// ListStale returns processing steps not touched since updatedBefore.
func (r *StepRepositoryPG) ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.Step, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListStaleAnimations, updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale animations: %w", err)
	}
	defer rows.Close()

	var steps []domain.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale animation: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanStep reads the shared step projection followed by any extra columns.
func scanStep(row scanner, extra ...any) (domain.Step, error) {
	var (
		step domain.Step
		cols domain.AnimationColumns
	)
	dest := []any{
		&step.ID,
		&step.PlanID,
		&step.Identifier,
		&step.Position,
		&step.Title,
		&step.Description,
		&step.Notes,
		&step.IllustrationKey,
		&step.IllustrationURL,
		&cols.Status,
		&cols.OperationID,
		&cols.Key,
		&cols.URL,
		&cols.Error,
		&step.AnimationUpdatedAt,
		&step.CreatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.Step{}, err
	}
	anim, err := domain.AnimationFromColumns(cols)
	if err != nil {
		return domain.Step{}, fmt.Errorf("step %d: %w", step.ID, err)
	}
	step.Animation = anim
	return step, nil
}

var _ domain.StepRepository = (*StepRepositoryPG)(nil)
