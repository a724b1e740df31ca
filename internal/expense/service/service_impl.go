package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	approvaldomain "github.com/smallbiznis/expenseflow/internal/approval/domain"
	approvalservice "github.com/smallbiznis/expenseflow/internal/approval/service"
	auditdomain "github.com/smallbiznis/expenseflow/internal/audit/domain"
	"github.com/smallbiznis/expenseflow/internal/clock"
	companydomain "github.com/smallbiznis/expenseflow/internal/company/domain"
	"github.com/smallbiznis/expenseflow/internal/currency"
	"github.com/smallbiznis/expenseflow/internal/expense/domain"
	"github.com/smallbiznis/expenseflow/internal/metrics"
	userdomain "github.com/smallbiznis/expenseflow/internal/user/domain"
	"github.com/smallbiznis/expenseflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Approvals approvaldomain.Repository
	Companies companydomain.Repository
	Resolver  *approvalservice.Resolver
	Ledger    *approvalservice.Ledger
	Converter currency.Converter
	Metrics   *metrics.Metrics
	Audit     auditdomain.Service
}

// Service is the expense state machine. It owns the externally visible
// status; nothing else writes it.
type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	approvals approvaldomain.Repository
	companies companydomain.Repository
	resolver  *approvalservice.Resolver
	ledger    *approvalservice.Ledger
	converter currency.Converter
	metrics   *metrics.Metrics
	audit     auditdomain.Service

	locks expenseLocks
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("expense.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		approvals: p.Approvals,
		companies: p.Companies,
		resolver:  p.Resolver,
		ledger:    p.Ledger,
		converter: p.Converter,
		metrics:   p.Metrics,
		audit:     p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, actor domain.Actor, req domain.CreateExpenseRequest) (domain.Expense, error) {
	companyID, err := parseID(actor.CompanyID)
	if err != nil {
		return domain.Expense{}, err
	}
	employeeID, err := parseID(actor.UserID)
	if err != nil {
		return domain.Expense{}, err
	}

	if req.Amount <= 0 {
		return domain.Expense{}, domain.ErrInvalidAmount
	}
	currencyCode := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currencyCode == "" || len(currencyCode) > 10 {
		return domain.Expense{}, domain.ErrInvalidCurrency
	}
	if req.ExpenseDate == nil {
		return domain.Expense{}, domain.ErrInvalidDate
	}

	now := s.clock.Now()
	expense := domain.Expense{
		ID:          s.genID.Generate(),
		CompanyID:   companyID,
		EmployeeID:  employeeID,
		Amount:      req.Amount,
		Currency:    currencyCode,
		Description: strings.TrimSpace(req.Description),
		ExpenseDate: *req.ExpenseDate,
		ReceiptKey:  strings.TrimSpace(req.ReceiptKey),
		Status:      domain.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.CategoryID != nil && strings.TrimSpace(*req.CategoryID) != "" {
		categoryID, err := parseID(*req.CategoryID)
		if err != nil {
			return domain.Expense{}, err
		}
		expense.CategoryID = &categoryID
	}

	if err := s.repo.Insert(ctx, s.db, &expense); err != nil {
		return domain.Expense{}, err
	}
	return expense, nil
}

func (s *Service) Submit(ctx context.Context, actor domain.Actor, expenseID string) (domain.ExpenseView, error) {
	companyID, err := parseID(actor.CompanyID)
	if err != nil {
		return domain.ExpenseView{}, err
	}
	employeeID, err := parseID(actor.UserID)
	if err != nil {
		return domain.ExpenseView{}, err
	}
	id, err := parseID(expenseID)
	if err != nil {
		return domain.ExpenseView{}, err
	}

	expense, err := s.repo.FindByID(ctx, s.db, companyID, id)
	if err != nil {
		return domain.ExpenseView{}, err
	}
	if expense == nil {
		return domain.ExpenseView{}, domain.ErrNotFound
	}
	if expense.EmployeeID != employeeID {
		return domain.ExpenseView{}, domain.ErrForbidden
	}
	if expense.Status != domain.StatusDraft && expense.Status != domain.StatusSubmitted {
		return domain.ExpenseView{}, domain.ErrNotSubmittable
	}

	expense.ConvertedAmount = s.convertAmount(ctx, expense, companyID)

	resolved, err := s.resolver.Resolve(ctx, companyID)
	if err != nil {
		return domain.ExpenseView{}, err
	}

	subject := approvalservice.Subject{CompanyID: companyID, EmployeeID: employeeID}
	now := s.clock.Now()

	var rows []*approvaldomain.ExpenseApproval
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err = s.ledger.Materialize(ctx, tx, subject, expense.ID, resolved.Steps)
		if err != nil {
			return err
		}

		expense.FlowID = &resolved.Flow.ID
		expense.SubmittedAt = &now
		expense.UpdatedAt = now

		if len(rows) == 0 {
			// Nobody to route to: lenient auto-approval rather than a
			// submission failure. Operators find these through the warn
			// log and the counter.
			expense.Status = domain.StatusApproved
			expense.CurrentStep = 0
			expense.CurrentApproverID = nil
		} else {
			first := rows[0]
			expense.Status = domain.StatusPendingApproval
			expense.CurrentStep = first.StepOrder
			approverID := first.ApproverID
			expense.CurrentApproverID = &approverID
		}

		return s.repo.Update(ctx, tx, expense)
	})
	if err != nil {
		return domain.ExpenseView{}, err
	}

	s.metrics.Submissions.Inc()
	s.audit.Record(ctx, auditdomain.Entry{
		CompanyID:  companyID,
		ActorID:    &employeeID,
		Action:     "expense.submitted",
		TargetType: "expense",
		TargetID:   expense.ID.String(),
		Metadata: map[string]any{
			"status":     string(expense.Status),
			"step_count": len(rows),
		},
	})
	if len(rows) == 0 {
		s.metrics.AutoApprovals.Inc()
		s.log.Warn("no approver resolved for any step, expense auto-approved",
			zap.String("expense_id", expense.ID.String()),
			zap.String("company_id", companyID.String()),
			zap.String("flow_id", resolved.Flow.ID.String()),
		)
	}

	return s.view(ctx, expense)
}

func (s *Service) Decide(ctx context.Context, actor domain.Actor, expenseID string, req domain.DecisionRequest) (domain.ExpenseView, error) {
	companyID, err := parseID(actor.CompanyID)
	if err != nil {
		return domain.ExpenseView{}, err
	}
	actorID, err := parseID(actor.UserID)
	if err != nil {
		return domain.ExpenseView{}, err
	}
	id, err := parseID(expenseID)
	if err != nil {
		return domain.ExpenseView{}, err
	}

	action := domain.DecisionAction(strings.ToLower(strings.TrimSpace(req.Action)))
	if action != domain.ActionApprove && action != domain.ActionReject {
		return domain.ExpenseView{}, domain.ErrInvalidAction
	}

	// Completion decisions for one expense are serialized: the evaluator
	// must see a settled ledger snapshot, and only one decision may apply
	// the terminal transition.
	mu := s.locks.Lock(id)
	defer mu.Unlock()

	expense, err := s.repo.FindByID(ctx, s.db, companyID, id)
	if err != nil {
		return domain.ExpenseView{}, err
	}
	if expense == nil {
		return domain.ExpenseView{}, domain.ErrNotFound
	}
	if expense.Status.Terminal() {
		s.metrics.DecisionConflicts.Inc()
		return domain.ExpenseView{}, domain.ErrAlreadyDecided
	}
	if expense.Status != domain.StatusPendingApproval {
		return domain.ExpenseView{}, domain.ErrNotApprover
	}

	row, err := s.approvals.PendingRowFor(ctx, s.db, id, actorID)
	if err != nil {
		return domain.ExpenseView{}, err
	}
	if row == nil {
		// Distinguish "never was an approver" from "your row is already
		// decided" so callers can retry-read instead of re-authorizing.
		rows, lerr := s.approvals.LedgerForExpense(ctx, s.db, id)
		if lerr != nil {
			return domain.ExpenseView{}, lerr
		}
		for _, r := range rows {
			if r.ApproverID == actorID && r.Status != approvaldomain.StatusPending {
				s.metrics.DecisionConflicts.Inc()
				return domain.ExpenseView{}, domain.ErrAlreadyDecided
			}
		}
		return domain.ExpenseView{}, domain.ErrNotApprover
	}

	decidedAt := s.clock.Now()
	rowStatus := approvaldomain.StatusApproved
	if action == domain.ActionReject {
		rowStatus = approvaldomain.StatusRejected
	}

	claimed, err := s.approvals.ClaimRow(ctx, s.db, row.ID, rowStatus, strings.TrimSpace(req.Comment), decidedAt)
	if err != nil {
		return domain.ExpenseView{}, err
	}
	if !claimed {
		s.metrics.DecisionConflicts.Inc()
		return domain.ExpenseView{}, domain.ErrAlreadyDecided
	}

	if action == domain.ActionReject {
		if err := s.applyRejection(ctx, expense, decidedAt); err != nil {
			return domain.ExpenseView{}, err
		}
	} else {
		if err := s.applyApproval(ctx, expense, decidedAt); err != nil {
			return domain.ExpenseView{}, err
		}
	}

	s.metrics.Decisions.WithLabelValues(string(action)).Inc()
	s.audit.Record(ctx, auditdomain.Entry{
		CompanyID:  companyID,
		ActorID:    &actorID,
		Action:     "expense." + string(action),
		TargetType: "expense",
		TargetID:   expense.ID.String(),
		Metadata: map[string]any{
			"step_order": row.StepOrder,
			"status":     string(expense.Status),
		},
	})
	return s.view(ctx, expense)
}

// applyRejection finalizes the expense. One rejection is enough; every
// other still-pending row is dead from here on and later decisions fail
// with a stale-state error.
func (s *Service) applyRejection(ctx context.Context, expense *domain.Expense, now time.Time) error {
	expense.Status = domain.StatusRejected
	expense.CurrentApproverID = nil
	expense.CurrentStep = 0
	expense.UpdatedAt = now
	return s.repo.Update(ctx, s.db, expense)
}

// applyApproval re-evaluates the rule over the full ledger and either
// finalizes the expense or advances the display pointer to the lowest
// still-pending row.
func (s *Service) applyApproval(ctx context.Context, expense *domain.Expense, now time.Time) error {
	rows, err := s.approvals.LedgerForExpense(ctx, s.db, expense.ID)
	if err != nil {
		return err
	}

	rule, err := s.loadRule(ctx, expense)
	if err != nil {
		return err
	}

	outcome := approvalservice.Evaluate(rule, rows)

	var nextPending *approvaldomain.ExpenseApproval
	for _, row := range rows {
		if row.Status == approvaldomain.StatusPending {
			nextPending = row
			break
		}
	}

	expense.UpdatedAt = now
	switch {
	case outcome.Complete:
		expense.Status = domain.StatusApproved
		expense.CurrentApproverID = nil
		expense.CurrentStep = 0
		s.log.Info("expense approved by rule",
			zap.String("expense_id", expense.ID.String()),
			zap.String("rule_type", string(rule.RuleType)),
			zap.String("reason", outcome.Reason),
		)
	case nextPending != nil:
		approverID := nextPending.ApproverID
		expense.CurrentApproverID = &approverID
		expense.CurrentStep = nextPending.StepOrder
	default:
		// No pending rows remain and the evaluator never signaled
		// completion: the sequential terminal condition.
		expense.Status = domain.StatusApproved
		expense.CurrentApproverID = nil
		expense.CurrentStep = 0
	}

	return s.repo.Update(ctx, s.db, expense)
}

// loadRule fetches the policy the expense's flow is bound to, falling back
// to the company's first active rule when the flow reference is gone.
func (s *Service) loadRule(ctx context.Context, expense *domain.Expense) (approvaldomain.ApprovalRule, error) {
	if expense.FlowID != nil {
		flows, err := s.approvals.ListFlows(ctx, s.db, expense.CompanyID)
		if err != nil {
			return approvaldomain.ApprovalRule{}, err
		}
		for _, flow := range flows {
			if flow.ID != *expense.FlowID {
				continue
			}
			rule, err := s.approvals.FindRule(ctx, s.db, expense.CompanyID, flow.RuleID)
			if err != nil {
				return approvaldomain.ApprovalRule{}, err
			}
			if rule != nil {
				return *rule, nil
			}
		}
	}

	rule, err := s.approvals.FirstActiveRule(ctx, s.db, expense.CompanyID)
	if err != nil {
		return approvaldomain.ApprovalRule{}, err
	}
	if rule == nil {
		// No rule at all behaves as sequential.
		return approvaldomain.ApprovalRule{RuleType: approvaldomain.RuleSequential}, nil
	}
	return *rule, nil
}

// convertAmount delegates to the external converter and falls back to the
// original amount on any failure. Conversion never fails a submission.
func (s *Service) convertAmount(ctx context.Context, expense *domain.Expense, companyID snowflake.ID) float64 {
	company, err := s.companies.FindByID(ctx, s.db, companyID)
	if err != nil || company == nil {
		s.metrics.CurrencyFallbacks.Inc()
		return expense.Amount
	}

	converted, err := s.converter.Convert(ctx, expense.Amount, expense.Currency, company.Currency)
	if err != nil {
		s.metrics.CurrencyFallbacks.Inc()
		s.log.Warn("currency conversion failed, using 1:1 fallback",
			zap.String("expense_id", expense.ID.String()),
			zap.String("from", expense.Currency),
			zap.String("to", company.Currency),
			zap.Error(err),
		)
		return expense.Amount
	}
	return converted
}

func (s *Service) Get(ctx context.Context, actor domain.Actor, expenseID string) (domain.ExpenseView, error) {
	companyID, err := parseID(actor.CompanyID)
	if err != nil {
		return domain.ExpenseView{}, err
	}
	id, err := parseID(expenseID)
	if err != nil {
		return domain.ExpenseView{}, err
	}

	expense, err := s.repo.FindByID(ctx, s.db, companyID, id)
	if err != nil {
		return domain.ExpenseView{}, err
	}
	if expense == nil {
		return domain.ExpenseView{}, domain.ErrNotFound
	}

	if actor.Role == string(userdomain.RoleEmployee) && expense.EmployeeID.String() != actor.UserID {
		actorID, err := parseID(actor.UserID)
		if err != nil {
			return domain.ExpenseView{}, err
		}
		row, err := s.approvals.PendingRowFor(ctx, s.db, expense.ID, actorID)
		if err != nil {
			return domain.ExpenseView{}, err
		}
		if row == nil {
			return domain.ExpenseView{}, domain.ErrForbidden
		}
	}

	return s.view(ctx, expense)
}

func (s *Service) ListMine(ctx context.Context, actor domain.Actor, req domain.ListRequest) (domain.ListResponse, error) {
	companyID, err := parseID(actor.CompanyID)
	if err != nil {
		return domain.ListResponse{}, err
	}
	employeeID, err := parseID(actor.UserID)
	if err != nil {
		return domain.ListResponse{}, err
	}

	return s.list(ctx, companyID, domain.ListFilter{
		Status:     domain.ExpenseStatus(strings.TrimSpace(req.Status)),
		EmployeeID: employeeID,
	}, req)
}

func (s *Service) ListCompany(ctx context.Context, actor domain.Actor, req domain.ListRequest) (domain.ListResponse, error) {
	if actor.Role != string(userdomain.RoleAdmin) {
		return domain.ListResponse{}, domain.ErrForbidden
	}
	companyID, err := parseID(actor.CompanyID)
	if err != nil {
		return domain.ListResponse{}, err
	}

	return s.list(ctx, companyID, domain.ListFilter{
		Status: domain.ExpenseStatus(strings.TrimSpace(req.Status)),
	}, req)
}

func (s *Service) list(ctx context.Context, companyID snowflake.ID, filter domain.ListFilter, req domain.ListRequest) (domain.ListResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	items, err := s.repo.List(ctx, s.db, companyID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(expense *domain.Expense) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        expense.ID.String(),
			CreatedAt: expense.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	resp := domain.ListResponse{}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	for _, item := range items {
		resp.Expenses = append(resp.Expenses, *item)
	}
	return resp, nil
}

func (s *Service) ListPendingApprovals(ctx context.Context, actor domain.Actor) ([]domain.ExpenseView, error) {
	companyID, err := parseID(actor.CompanyID)
	if err != nil {
		return nil, err
	}
	approverID, err := parseID(actor.UserID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListPendingForApprover(ctx, s.db, companyID, approverID)
	if err != nil {
		return nil, err
	}

	views := make([]domain.ExpenseView, 0, len(items))
	for _, item := range items {
		view, err := s.view(ctx, item)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) ListTeam(ctx context.Context, actor domain.Actor) ([]domain.Expense, error) {
	if actor.Role == string(userdomain.RoleEmployee) {
		return nil, domain.ErrForbidden
	}
	companyID, err := parseID(actor.CompanyID)
	if err != nil {
		return nil, err
	}
	managerID, err := parseID(actor.UserID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListForManager(ctx, s.db, companyID, managerID)
	if err != nil {
		return nil, err
	}

	expenses := make([]domain.Expense, 0, len(items))
	for _, item := range items {
		expenses = append(expenses, *item)
	}
	return expenses, nil
}

func (s *Service) Stats(ctx context.Context, actor domain.Actor) (domain.Stats, error) {
	if actor.Role != string(userdomain.RoleAdmin) {
		return domain.Stats{}, domain.ErrForbidden
	}
	companyID, err := parseID(actor.CompanyID)
	if err != nil {
		return domain.Stats{}, err
	}
	return s.repo.Stats(ctx, s.db, companyID)
}

func (s *Service) view(ctx context.Context, expense *domain.Expense) (domain.ExpenseView, error) {
	rows, err := s.approvals.LedgerForExpense(ctx, s.db, expense.ID)
	if err != nil {
		return domain.ExpenseView{}, err
	}

	view := domain.ExpenseView{Expense: *expense}
	for _, row := range rows {
		view.Approvals = append(view.Approvals, *row)
	}
	return view, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
