package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/internal/approval/domain"
	"github.com/smallbiznis/expenseflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("approval.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) CreateRule(ctx context.Context, companyID string, req domain.CreateRuleRequest) (domain.ApprovalRule, error) {
	company, err := parseID(companyID)
	if err != nil {
		return domain.ApprovalRule{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ApprovalRule{}, domain.ErrInvalidName
	}

	ruleType := domain.RuleType(strings.TrimSpace(req.RuleType))
	if ruleType == "" {
		ruleType = domain.RuleSequential
	}
	if !ruleType.Valid() {
		return domain.ApprovalRule{}, domain.ErrInvalidRuleType
	}

	rule := domain.ApprovalRule{
		ID:        s.genID.Generate(),
		CompanyID: company,
		Name:      name,
		RuleType:  ruleType,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	if ruleType.NeedsThreshold() {
		if req.PercentageThreshold == nil || *req.PercentageThreshold < 1 || *req.PercentageThreshold > 100 {
			return domain.ApprovalRule{}, domain.ErrInvalidThreshold
		}
		rule.PercentageThreshold = req.PercentageThreshold
	} else if req.PercentageThreshold != nil {
		return domain.ApprovalRule{}, domain.ErrInvalidThreshold
	}

	if ruleType.NeedsSpecificApprover() {
		if req.SpecificApproverID == nil {
			return domain.ApprovalRule{}, domain.ErrMissingApprover
		}
		approverID, err := parseID(*req.SpecificApproverID)
		if err != nil {
			return domain.ApprovalRule{}, err
		}
		rule.SpecificApproverID = &approverID
	} else if req.SpecificApproverID != nil {
		return domain.ApprovalRule{}, domain.ErrMissingApprover
	}

	if err := s.repo.InsertRule(ctx, s.db, &rule); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ApprovalRule{}, domain.ErrNameTaken
		}
		return domain.ApprovalRule{}, err
	}
	return rule, nil
}

func (s *Service) ListRules(ctx context.Context, companyID string) ([]domain.ApprovalRule, error) {
	company, err := parseID(companyID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListRules(ctx, s.db, company)
	if err != nil {
		return nil, err
	}

	rules := make([]domain.ApprovalRule, 0, len(items))
	for _, item := range items {
		rules = append(rules, *item)
	}
	return rules, nil
}

func (s *Service) CreateFlow(ctx context.Context, companyID string, req domain.CreateFlowRequest) (domain.FlowView, error) {
	company, err := parseID(companyID)
	if err != nil {
		return domain.FlowView{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.FlowView{}, domain.ErrInvalidName
	}

	ruleID, err := parseID(req.RuleID)
	if err != nil {
		return domain.FlowView{}, err
	}
	rule, err := s.repo.FindRule(ctx, s.db, company, ruleID)
	if err != nil {
		return domain.FlowView{}, err
	}
	if rule == nil {
		return domain.FlowView{}, domain.ErrNotFound
	}

	if len(req.Steps) == 0 {
		return domain.FlowView{}, domain.ErrInvalidSteps
	}
	seenOrders := make(map[int]bool, len(req.Steps))
	steps := make([]*domain.ApprovalStep, 0, len(req.Steps))
	for _, def := range req.Steps {
		if def.StepOrder <= 0 || seenOrders[def.StepOrder] {
			return domain.FlowView{}, domain.ErrInvalidSteps
		}
		seenOrders[def.StepOrder] = true

		approverType := domain.ApproverType(strings.TrimSpace(def.ApproverType))
		if !approverType.Valid() {
			return domain.FlowView{}, domain.ErrInvalidApproverType
		}

		step := &domain.ApprovalStep{
			ID:           s.genID.Generate(),
			StepOrder:    def.StepOrder,
			ApproverType: approverType,
		}
		if approverType == domain.ApproverSpecificUser {
			if def.SpecificApproverID == nil {
				return domain.FlowView{}, domain.ErrMissingApprover
			}
			approverID, err := parseID(*def.SpecificApproverID)
			if err != nil {
				return domain.FlowView{}, err
			}
			step.SpecificApproverID = &approverID
		}
		steps = append(steps, step)
	}

	flow := domain.ApprovalFlow{
		ID:        s.genID.Generate(),
		CompanyID: company,
		RuleID:    ruleID,
		Name:      name,
		IsDefault: req.IsDefault,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertFlow(ctx, s.db, &flow, steps); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.FlowView{}, domain.ErrNameTaken
		}
		return domain.FlowView{}, err
	}

	view := domain.FlowView{ApprovalFlow: flow}
	for _, step := range steps {
		view.Steps = append(view.Steps, *step)
	}
	return view, nil
}

func (s *Service) ListFlows(ctx context.Context, companyID string) ([]domain.FlowView, error) {
	company, err := parseID(companyID)
	if err != nil {
		return nil, err
	}

	flows, err := s.repo.ListFlows(ctx, s.db, company)
	if err != nil {
		return nil, err
	}

	views := make([]domain.FlowView, 0, len(flows))
	for _, flow := range flows {
		steps, err := s.repo.StepsForFlow(ctx, s.db, flow.ID)
		if err != nil {
			return nil, err
		}
		view := domain.FlowView{ApprovalFlow: *flow}
		for _, step := range steps {
			view.Steps = append(view.Steps, *step)
		}
		views = append(views, view)
	}
	return views, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
