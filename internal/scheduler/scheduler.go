package scheduler

import (
	"context"
	"errors"
	"time"

	auditdomain "github.com/smallbiznis/expenseflow/internal/audit/domain"
	"github.com/smallbiznis/expenseflow/internal/clock"
	expensedomain "github.com/smallbiznis/expenseflow/internal/expense/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("invalid scheduler configuration")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	AuditSvc auditdomain.Service
	Config   Config `optional:"true"`
}

// Scheduler periodically flags expenses stuck in pending approval so the
// audit trail shows which approvers are sitting on old submissions.
type Scheduler struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	clock    clock.Clock
	auditSvc auditdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.AuditSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:       p.DB,
		log:      p.Log.Named("scheduler"),
		cfg:      p.Config.withDefaults(),
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}, nil
}

// RunOnce executes one reminder sweep and returns how many stale expenses
// it flagged.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.cfg.StaleAfter)

	var stale []*expensedomain.Expense
	err := s.db.WithContext(ctx).
		Model(&expensedomain.Expense{}).
		Where("status = ? AND submitted_at < ?", expensedomain.StatusPendingApproval, cutoff).
		Order("submitted_at asc").
		Limit(s.cfg.BatchSize).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}

	for _, expense := range stale {
		metadata := map[string]any{
			"submitted_at": expense.SubmittedAt.Format(time.RFC3339),
			"current_step": expense.CurrentStep,
		}
		if expense.CurrentApproverID != nil {
			metadata["current_approver_id"] = expense.CurrentApproverID.String()
		}

		s.auditSvc.Record(ctx, auditdomain.Entry{
			CompanyID:  expense.CompanyID,
			Action:     "expense.reminder",
			TargetType: "expense",
			TargetID:   expense.ID.String(),
			Metadata:   metadata,
		})
		s.log.Info("stale pending expense",
			zap.String("expense_id", expense.ID.String()),
			zap.String("company_id", expense.CompanyID.String()),
			zap.Int("current_step", expense.CurrentStep),
		)
	}

	return len(stale), nil
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.log.Warn("reminder sweep failed", zap.Error(err))
			}
		}
	}
}

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(run),
)

func run(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.loop(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
