package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"planner/internal/domain"
	"planner/internal/infra"
	"planner/internal/sqlinline"
)

// PlanRepositoryPG implements domain.PlanRepository.
type PlanRepositoryPG struct {
	sql infra.TxExecutor
}

// NewPlanRepository creates a plan repository backed by PostgreSQL.
func NewPlanRepository(sql infra.TxExecutor) *PlanRepositoryPG {
	return &PlanRepositoryPG{sql: sql}
}

// Create inserts a plan and its steps in one transaction. Step positions are
// taken from slice order.
func (r *PlanRepositoryPG) Create(ctx context.Context, plan *domain.Plan, steps []domain.Step) (int64, error) {
	if plan == nil {
		return 0, fmt.Errorf("%w: plan is required", domain.ErrInvalidInput)
	}
	checklist := plan.Checklist
	if checklist == nil {
		checklist = []string{}
	}
	rawChecklist, err := json.Marshal(checklist)
	if err != nil {
		return 0, fmt.Errorf("marshal checklist: %w", err)
	}

	var planID int64
	err = r.sql.InTx(ctx, func(tx infra.SQLExecutor) error {
		if err := tx.QueryRow(ctx, sqlinline.QInsertPlan,
			plan.RequestSummary,
			plan.Project,
			rawChecklist,
			plan.UploadID,
		).Scan(&planID, &plan.CreatedAt); err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}

		for i := range steps {
			step := &steps[i]
			if err := step.Animation.Validate(); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			cols := step.Animation.Columns()
			if err := tx.QueryRow(ctx, sqlinline.QInsertStep,
				planID,
				step.Identifier,
				i,
				step.Title,
				step.Description,
				step.Notes,
				step.IllustrationKey,
				step.IllustrationURL,
				cols.Status,
				cols.OperationID,
				cols.Key,
				cols.URL,
				cols.Error,
			).Scan(&step.ID); err != nil {
				return fmt.Errorf("insert step %d: %w", i, err)
			}
			step.PlanID = planID
			step.Position = i
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	plan.ID = planID
	return planID, nil
}

// List returns the newest plans first.
func (r *PlanRepositoryPG) List(ctx context.Context, limit int) ([]domain.PlanSummary, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListPlans, limit)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	plans := make([]domain.PlanSummary, 0, limit)
	for rows.Next() {
		var p domain.PlanSummary
		if err := rows.Scan(&p.ID, &p.RequestSummary, &p.Project, &p.CreatedAt, &p.StepsCount); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// GetWithSteps fetches a plan and its ordered steps.
func (r *PlanRepositoryPG) GetWithSteps(ctx context.Context, planID int64) (*domain.Plan, []domain.Step, error) {
	var (
		plan         domain.Plan
		rawChecklist []byte
	)
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectPlan, planID).Scan(
		&plan.ID,
		&plan.RequestSummary,
		&plan.Project,
		&rawChecklist,
		&plan.UploadID,
		&plan.CreatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("select plan: %w", err)
	}
	if len(rawChecklist) > 0 {
		if err := json.Unmarshal(rawChecklist, &plan.Checklist); err != nil {
			return nil, nil, fmt.Errorf("decode checklist: %w", err)
		}
	}

	rows, err := r.sql.Query(ctx, sqlinline.QSelectPlanSteps, planID)
	if err != nil {
		return nil, nil, fmt.Errorf("select plan steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("scan plan step: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return &plan, steps, nil
}

// Delete removes a plan; steps cascade. It reports false when no plan matched.
func (r *PlanRepositoryPG) Delete(ctx context.Context, planID int64) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeletePlan, planID)
	if err != nil {
		return false, fmt.Errorf("delete plan: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

var _ domain.PlanRepository = (*PlanRepositoryPG)(nil)
