package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/internal/approval/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger materializes the per-step decision records for one expense. All
// rows of a workflow are created in one batch, all pending at once, so
// non-sequential policies can collect decisions concurrently.
type Ledger struct {
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	approvers *ApproverResolver
}

type LedgerParams struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Approvers *ApproverResolver
}

func NewLedger(p LedgerParams) *Ledger {
	return &Ledger{
		log:       p.Log.Named("approval.ledger"),
		genID:     p.GenID,
		repo:      p.Repo,
		approvers: p.Approvers,
	}
}

// Materialize resolves an approver for every step and inserts one pending
// row per resolved approver, using the caller's transaction handle. Steps
// that resolve to nobody produce no row. An empty result means the workflow
// is degenerate and the caller must auto-approve.
func (l *Ledger) Materialize(ctx context.Context, tx *gorm.DB, subject Subject, expenseID snowflake.ID, steps []domain.ApprovalStep) ([]*domain.ExpenseApproval, error) {
	now := time.Now().UTC()
	rows := make([]*domain.ExpenseApproval, 0, len(steps))

	for _, step := range steps {
		approverID, ok, err := l.approvers.Resolve(ctx, subject, step)
		if err != nil {
			return nil, err
		}
		if !ok {
			l.log.Warn("step resolved to no approver, dropped from ledger",
				zap.String("expense_id", expenseID.String()),
				zap.Int("step_order", step.StepOrder),
				zap.String("approver_type", string(step.ApproverType)),
			)
			continue
		}

		rows = append(rows, &domain.ExpenseApproval{
			ID:           l.genID.Generate(),
			ExpenseID:    expenseID,
			ApproverID:   approverID,
			StepOrder:    step.StepOrder,
			ApproverType: step.ApproverType,
			Status:       domain.StatusPending,
			CreatedAt:    now,
		})
	}

	if err := l.repo.InsertLedgerRows(ctx, tx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}
