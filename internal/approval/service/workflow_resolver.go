package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/internal/approval/domain"
	"github.com/smallbiznis/expenseflow/internal/config"
	"github.com/smallbiznis/expenseflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultRuleName = "Default Sequential"
	defaultFlowName = "Default Flow"
)

// ResolvedWorkflow is a company's active policy and concrete step chain.
type ResolvedWorkflow struct {
	Rule  domain.ApprovalRule
	Flow  domain.ApprovalFlow
	Steps []domain.ApprovalStep
}

// Resolver obtains, or lazily creates, the approval rule and default flow for
// a company. Lazy creation is guarded by unique constraints; on losing a
// concurrent first-submission race the loser re-reads the winner's row, so
// repeated calls converge to the same identities.
type Resolver struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	repo   domain.Repository
	wfconf *config.WorkflowConfigHolder
}

type ResolverParams struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	WFConf *config.WorkflowConfigHolder
}

func NewResolver(p ResolverParams) *Resolver {
	return &Resolver{
		db:     p.DB,
		log:    p.Log.Named("approval.resolver"),
		genID:  p.GenID,
		repo:   p.Repo,
		wfconf: p.WFConf,
	}
}

func (r *Resolver) Resolve(ctx context.Context, companyID snowflake.ID) (ResolvedWorkflow, error) {
	rule, err := r.ensureRule(ctx, companyID)
	if err != nil {
		return ResolvedWorkflow{}, err
	}

	flow, err := r.ensureDefaultFlow(ctx, companyID, rule.ID)
	if err != nil {
		return ResolvedWorkflow{}, err
	}

	steps, err := r.repo.StepsForFlow(ctx, r.db, flow.ID)
	if err != nil {
		return ResolvedWorkflow{}, err
	}

	resolved := ResolvedWorkflow{Rule: *rule, Flow: *flow}
	for _, step := range steps {
		resolved.Steps = append(resolved.Steps, *step)
	}
	return resolved, nil
}

func (r *Resolver) ensureRule(ctx context.Context, companyID snowflake.ID) (*domain.ApprovalRule, error) {
	rule, err := r.repo.FirstActiveRule(ctx, r.db, companyID)
	if err != nil {
		return nil, err
	}
	if rule != nil {
		return rule, nil
	}

	created := &domain.ApprovalRule{
		ID:        r.genID.Generate(),
		CompanyID: companyID,
		Name:      defaultRuleName,
		RuleType:  domain.RuleSequential,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.repo.InsertRule(ctx, r.db, created); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return r.repo.FirstActiveRule(ctx, r.db, companyID)
		}
		return nil, err
	}

	r.log.Info("created default approval rule",
		zap.String("company_id", companyID.String()),
		zap.String("rule_id", created.ID.String()),
	)
	return created, nil
}

func (r *Resolver) ensureDefaultFlow(ctx context.Context, companyID, ruleID snowflake.ID) (*domain.ApprovalFlow, error) {
	flow, err := r.repo.DefaultFlow(ctx, r.db, companyID, ruleID)
	if err != nil {
		return nil, err
	}
	if flow != nil {
		return flow, nil
	}

	created := &domain.ApprovalFlow{
		ID:        r.genID.Generate(),
		CompanyID: companyID,
		RuleID:    ruleID,
		Name:      defaultFlowName,
		IsDefault: true,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	steps := r.defaultSteps()
	if err := r.repo.InsertFlow(ctx, r.db, created, steps); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return r.repo.DefaultFlow(ctx, r.db, companyID, ruleID)
		}
		return nil, err
	}

	r.log.Info("created default approval flow",
		zap.String("company_id", companyID.String()),
		zap.String("flow_id", created.ID.String()),
		zap.Int("steps", len(steps)),
	)
	return created, nil
}

// defaultSteps builds the configured step chain. The config holder validates
// non-emptiness, so a freshly created flow always has at least one step.
func (r *Resolver) defaultSteps() []*domain.ApprovalStep {
	configured := r.wfconf.Get().DefaultSteps
	steps := make([]*domain.ApprovalStep, 0, len(configured))
	for _, def := range configured {
		approverType := domain.ApproverType(def.ApproverType)
		if !approverType.Valid() {
			r.log.Warn("skipping configured default step with unknown approver type",
				zap.String("approver_type", def.ApproverType),
			)
			continue
		}
		steps = append(steps, &domain.ApprovalStep{
			ID:           r.genID.Generate(),
			StepOrder:    def.Order,
			ApproverType: approverType,
		})
	}
	if len(steps) == 0 {
		steps = []*domain.ApprovalStep{
			{ID: r.genID.Generate(), StepOrder: 1, ApproverType: domain.ApproverManager},
			{ID: r.genID.Generate(), StepOrder: 2, ApproverType: domain.ApproverAdmin},
		}
	}
	return steps
}
