package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/internal/approval/domain"
	userdomain "github.com/smallbiznis/expenseflow/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Subject identifies whose expense a step is being resolved for.
type Subject struct {
	CompanyID  snowflake.ID
	EmployeeID snowflake.ID
}

type resolveFunc func(ctx context.Context, subject Subject, step domain.ApprovalStep) (snowflake.ID, bool, error)

// ApproverResolver maps an abstract step to a concrete approver. Resolution
// is deterministic: the same subject and step always yield the same user, so
// re-materializing a workflow is idempotent. A step that resolves to nobody
// is dropped by the caller.
type ApproverResolver struct {
	db         *gorm.DB
	log        *zap.Logger
	users      userdomain.Repository
	strategies map[domain.ApproverType]resolveFunc
}

type ApproverResolverParams struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Users userdomain.Repository
}

func NewApproverResolver(p ApproverResolverParams) *ApproverResolver {
	r := &ApproverResolver{
		db:    p.DB,
		log:   p.Log.Named("approval.approvers"),
		users: p.Users,
	}
	r.strategies = map[domain.ApproverType]resolveFunc{
		domain.ApproverManager:      r.resolveManager,
		domain.ApproverAdmin:        r.resolveAdmin,
		domain.ApproverSpecificUser: r.resolveSpecificUser,
		domain.ApproverFinance:      r.resolveUnsupported,
		domain.ApproverDirector:     r.resolveUnsupported,
	}
	return r
}

// Resolve returns the concrete approver for a step, or ok=false when the
// step resolves to nobody.
func (r *ApproverResolver) Resolve(ctx context.Context, subject Subject, step domain.ApprovalStep) (snowflake.ID, bool, error) {
	strategy, known := r.strategies[step.ApproverType]
	if !known {
		r.log.Warn("unknown approver type in flow",
			zap.String("approver_type", string(step.ApproverType)),
			zap.Int("step_order", step.StepOrder),
		)
		return 0, false, nil
	}
	return strategy(ctx, subject, step)
}

func (r *ApproverResolver) resolveManager(ctx context.Context, subject Subject, _ domain.ApprovalStep) (snowflake.ID, bool, error) {
	manager, err := r.users.ActiveManagerFor(ctx, r.db, subject.CompanyID, subject.EmployeeID)
	if err != nil {
		return 0, false, err
	}
	if manager == nil {
		return 0, false, nil
	}
	return manager.ID, true, nil
}

func (r *ApproverResolver) resolveAdmin(ctx context.Context, subject Subject, _ domain.ApprovalStep) (snowflake.ID, bool, error) {
	admin, err := r.users.FirstActiveAdmin(ctx, r.db, subject.CompanyID)
	if err != nil {
		return 0, false, err
	}
	if admin == nil {
		return 0, false, nil
	}
	return admin.ID, true, nil
}

func (r *ApproverResolver) resolveSpecificUser(_ context.Context, _ Subject, step domain.ApprovalStep) (snowflake.ID, bool, error) {
	if step.SpecificApproverID == nil || *step.SpecificApproverID == 0 {
		return 0, false, nil
	}
	return *step.SpecificApproverID, true, nil
}

// resolveUnsupported covers the finance and director types, which have no
// backing directory data yet. Steps of these types are skipped, not failed.
func (r *ApproverResolver) resolveUnsupported(_ context.Context, _ Subject, step domain.ApprovalStep) (snowflake.ID, bool, error) {
	r.log.Warn("approver type has no resolution strategy, step skipped",
		zap.String("approver_type", string(step.ApproverType)),
		zap.Int("step_order", step.StepOrder),
	)
	return 0, false, nil
}
