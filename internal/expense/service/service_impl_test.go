package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	approvaldomain "github.com/smallbiznis/expenseflow/internal/approval/domain"
	approvalrepository "github.com/smallbiznis/expenseflow/internal/approval/repository"
	approvalservice "github.com/smallbiznis/expenseflow/internal/approval/service"
	auditrepository "github.com/smallbiznis/expenseflow/internal/audit/repository"
	auditservice "github.com/smallbiznis/expenseflow/internal/audit/service"
	"github.com/smallbiznis/expenseflow/internal/clock"
	companydomain "github.com/smallbiznis/expenseflow/internal/company/domain"
	companyrepository "github.com/smallbiznis/expenseflow/internal/company/repository"
	"github.com/smallbiznis/expenseflow/internal/config"
	"github.com/smallbiznis/expenseflow/internal/currency"
	"github.com/smallbiznis/expenseflow/internal/expense/domain"
	"github.com/smallbiznis/expenseflow/internal/expense/repository"
	"github.com/smallbiznis/expenseflow/internal/metrics"
	"github.com/smallbiznis/expenseflow/internal/migration"
	userdomain "github.com/smallbiznis/expenseflow/internal/user/domain"
	userrepository "github.com/smallbiznis/expenseflow/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type workflowFixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clk   *clock.FakeClock
	svc   domain.Service
	admin userdomain.User

	company  companydomain.Company
	manager  userdomain.User
	employee userdomain.User
}

func setupWorkflowTest(t *testing.T, name string) *workflowFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	met := metrics.New(prometheus.NewRegistry())

	approvalRepo := approvalrepository.Provide()
	userRepo := userrepository.Provide()

	approvers := approvalservice.NewApproverResolver(approvalservice.ApproverResolverParams{
		DB:    db,
		Log:   log,
		Users: userRepo,
	})
	ledger := approvalservice.NewLedger(approvalservice.LedgerParams{
		Log:       log,
		GenID:     node,
		Repo:      approvalRepo,
		Approvers: approvers,
	})
	resolver := approvalservice.NewResolver(approvalservice.ResolverParams{
		DB:     db,
		Log:    log,
		GenID:  node,
		Repo:   approvalRepo,
		WFConf: config.NewStaticWorkflowConfigHolder(config.WorkflowConfig{}),
	})
	auditSvc := auditservice.New(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})

	svc := New(Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Repo:      repository.Provide(),
		Approvals: approvalRepo,
		Companies: companyrepository.Provide(),
		Resolver:  resolver,
		Ledger:    ledger,
		Converter: currency.Identity{},
		Metrics:   met,
		Audit:     auditSvc,
	})

	f := &workflowFixture{db: db, node: node, clk: clk, svc: svc}
	f.company = companydomain.Company{ID: node.Generate(), Name: name, Currency: "USD"}
	require.NoError(t, db.Create(&f.company).Error)

	f.admin = f.seedUser(t, "admin@"+name+".test", userdomain.RoleAdmin)
	f.manager = f.seedUser(t, "manager@"+name+".test", userdomain.RoleManager)
	f.employee = f.seedUser(t, "employee@"+name+".test", userdomain.RoleEmployee)

	edge := userdomain.ManagerEmployee{
		ID:         node.Generate(),
		ManagerID:  f.manager.ID,
		EmployeeID: f.employee.ID,
		CompanyID:  f.company.ID,
		IsActive:   true,
	}
	require.NoError(t, db.Create(&edge).Error)

	return f
}

func (f *workflowFixture) seedUser(t *testing.T, email string, role userdomain.Role) userdomain.User {
	t.Helper()

	user := userdomain.User{
		ID:           f.node.Generate(),
		CompanyID:    f.company.ID,
		Email:        email,
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

func (f *workflowFixture) actor(u userdomain.User) domain.Actor {
	return domain.Actor{
		UserID:    u.ID.String(),
		CompanyID: u.CompanyID.String(),
		Role:      string(u.Role),
	}
}

func (f *workflowFixture) submitted(t *testing.T, amount float64) domain.ExpenseView {
	t.Helper()

	date := f.clk.Now()
	expense, err := f.svc.Create(context.Background(), f.actor(f.employee), domain.CreateExpenseRequest{
		Amount:      amount,
		Currency:    "USD",
		Description: "client dinner",
		ExpenseDate: &date,
	})
	require.NoError(t, err)

	view, err := f.svc.Submit(context.Background(), f.actor(f.employee), expense.ID.String())
	require.NoError(t, err)
	return view
}

// seedRule replaces the lazily created default policy before first submission.
func (f *workflowFixture) seedRule(t *testing.T, rule approvaldomain.ApprovalRule, steps ...approvaldomain.ApprovalStep) {
	t.Helper()

	rule.ID = f.node.Generate()
	rule.CompanyID = f.company.ID
	rule.IsActive = true
	require.NoError(t, f.db.Create(&rule).Error)

	flow := approvaldomain.ApprovalFlow{
		ID:        f.node.Generate(),
		CompanyID: f.company.ID,
		RuleID:    rule.ID,
		Name:      "Default Flow",
		IsDefault: true,
		IsActive:  true,
	}
	require.NoError(t, f.db.Create(&flow).Error)

	for i := range steps {
		steps[i].ID = f.node.Generate()
		steps[i].FlowID = flow.ID
		require.NoError(t, f.db.Create(&steps[i]).Error)
	}
}

func TestCreateValidation(t *testing.T) {
	f := setupWorkflowTest(t, "wf_create_validation")
	date := f.clk.Now()
	actor := f.actor(f.employee)

	_, err := f.svc.Create(context.Background(), actor, domain.CreateExpenseRequest{Amount: 0, Currency: "USD", ExpenseDate: &date})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.Create(context.Background(), actor, domain.CreateExpenseRequest{Amount: 10, Currency: "  ", ExpenseDate: &date})
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)

	_, err = f.svc.Create(context.Background(), actor, domain.CreateExpenseRequest{Amount: 10, Currency: "USD"})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)

	expense, err := f.svc.Create(context.Background(), actor, domain.CreateExpenseRequest{Amount: 10, Currency: "usd", ExpenseDate: &date})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, expense.Status)
	assert.Equal(t, "USD", expense.Currency)
}

func TestSequentialChainManagerThenAdmin(t *testing.T) {
	f := setupWorkflowTest(t, "wf_sequential")
	ctx := context.Background()

	view := f.submitted(t, 120)
	assert.Equal(t, domain.StatusPendingApproval, view.Status)
	assert.Equal(t, 1, view.CurrentStep)
	require.NotNil(t, view.CurrentApproverID)
	assert.Equal(t, f.manager.ID, *view.CurrentApproverID)
	require.Len(t, view.Approvals, 2)
	assert.Equal(t, approvaldomain.StatusPending, view.Approvals[0].Status)
	assert.Equal(t, approvaldomain.StatusPending, view.Approvals[1].Status)

	view, err := f.svc.Decide(ctx, f.actor(f.manager), view.ID.String(), domain.DecisionRequest{Action: "approve", Comment: "ok"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingApproval, view.Status)
	assert.Equal(t, 2, view.CurrentStep)
	require.NotNil(t, view.CurrentApproverID)
	assert.Equal(t, f.admin.ID, *view.CurrentApproverID)

	view, err = f.svc.Decide(ctx, f.actor(f.admin), view.ID.String(), domain.DecisionRequest{Action: "approve"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, view.Status)
	assert.Equal(t, 0, view.CurrentStep)
	assert.Nil(t, view.CurrentApproverID)
	for _, row := range view.Approvals {
		assert.Equal(t, approvaldomain.StatusApproved, row.Status)
		require.NotNil(t, row.DecidedAt)
	}
}

func TestRejectShortCircuits(t *testing.T) {
	f := setupWorkflowTest(t, "wf_reject")
	ctx := context.Background()

	view := f.submitted(t, 75)
	view, err := f.svc.Decide(ctx, f.actor(f.manager), view.ID.String(), domain.DecisionRequest{Action: "reject", Comment: "no receipt"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, view.Status)
	assert.Nil(t, view.CurrentApproverID)

	// The admin's row is dead once the expense is terminal.
	_, err = f.svc.Decide(ctx, f.actor(f.admin), view.ID.String(), domain.DecisionRequest{Action: "approve"})
	assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
}

func TestDecideRowAlreadyClaimed(t *testing.T) {
	f := setupWorkflowTest(t, "wf_claimed_row")
	ctx := context.Background()

	view := f.submitted(t, 30)

	_, err := f.svc.Decide(ctx, f.actor(f.manager), view.ID.String(), domain.DecisionRequest{Action: "approve"})
	require.NoError(t, err)

	// The manager's row is settled; a repeat decision is stale, not a
	// missing-authorization failure.
	_, err = f.svc.Decide(ctx, f.actor(f.manager), view.ID.String(), domain.DecisionRequest{Action: "approve"})
	assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
}

func TestConcurrentDecisionsOnSameRow(t *testing.T) {
	f := setupWorkflowTest(t, "wf_concurrent_claim")
	ctx := context.Background()

	view := f.submitted(t, 300)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.svc.Decide(ctx, f.actor(f.manager), view.ID.String(), domain.DecisionRequest{Action: "approve"})
			errs <- err
		}()
	}

	first, second := <-errs, <-errs
	if first != nil {
		first, second = second, first
	}
	require.NoError(t, first)
	assert.ErrorIs(t, second, domain.ErrAlreadyDecided)
}

func TestDecideNotAnApprover(t *testing.T) {
	f := setupWorkflowTest(t, "wf_not_approver")
	ctx := context.Background()

	outsider := f.seedUser(t, "outsider@wf_not_approver.test", userdomain.RoleEmployee)
	view := f.submitted(t, 45)

	_, err := f.svc.Decide(ctx, f.actor(outsider), view.ID.String(), domain.DecisionRequest{Action: "approve"})
	assert.ErrorIs(t, err, domain.ErrNotApprover)

	_, err = f.svc.Decide(ctx, f.actor(f.manager), view.ID.String(), domain.DecisionRequest{Action: "shrug"})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}

func TestAnyPendingRowHolderMayDecide(t *testing.T) {
	f := setupWorkflowTest(t, "wf_out_of_order")
	ctx := context.Background()

	view := f.submitted(t, 200)
	require.NotNil(t, view.CurrentApproverID)
	assert.Equal(t, f.manager.ID, *view.CurrentApproverID)

	// The pointer names the manager, but the admin holds a pending row too.
	view, err := f.svc.Decide(ctx, f.actor(f.admin), view.ID.String(), domain.DecisionRequest{Action: "approve"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingApproval, view.Status)
	assert.Equal(t, 1, view.CurrentStep)

	view, err = f.svc.Decide(ctx, f.actor(f.manager), view.ID.String(), domain.DecisionRequest{Action: "approve"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, view.Status)
}

func TestSubmitNotOwnerAndNotSubmittable(t *testing.T) {
	f := setupWorkflowTest(t, "wf_submit_guards")
	ctx := context.Background()

	date := f.clk.Now()
	expense, err := f.svc.Create(ctx, f.actor(f.employee), domain.CreateExpenseRequest{Amount: 10, Currency: "USD", ExpenseDate: &date})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, f.actor(f.manager), expense.ID.String())
	assert.ErrorIs(t, err, domain.ErrForbidden)

	view, err := f.svc.Submit(ctx, f.actor(f.employee), expense.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingApproval, view.Status)

	_, err = f.svc.Submit(ctx, f.actor(f.employee), expense.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotSubmittable)
}

func TestPercentageRuleCompletesAtThreshold(t *testing.T) {
	f := setupWorkflowTest(t, "wf_percentage")
	ctx := context.Background()

	second := f.seedUser(t, "second@wf_percentage.test", userdomain.RoleManager)
	third := f.seedUser(t, "third@wf_percentage.test", userdomain.RoleManager)

	threshold := 60
	f.seedRule(t,
		approvaldomain.ApprovalRule{Name: "Majority", RuleType: approvaldomain.RulePercentage, PercentageThreshold: &threshold},
		approvaldomain.ApprovalStep{StepOrder: 1, ApproverType: approvaldomain.ApproverManager},
		approvaldomain.ApprovalStep{StepOrder: 2, ApproverType: approvaldomain.ApproverSpecificUser, SpecificApproverID: &second.ID},
		approvaldomain.ApprovalStep{StepOrder: 3, ApproverType: approvaldomain.ApproverSpecificUser, SpecificApproverID: &third.ID},
	)

	view := f.submitted(t, 500)
	require.Len(t, view.Approvals, 3)

	view, err := f.svc.Decide(ctx, f.actor(f.manager), view.ID.String(), domain.DecisionRequest{Action: "approve"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingApproval, view.Status, "1 of 3 is below 60%%")

	view, err = f.svc.Decide(ctx, f.actor(second), view.ID.String(), domain.DecisionRequest{Action: "approve"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, view.Status, "2 of 3 crosses 60%%")

	// The last approver's row stays pending forever; their late decision is stale.
	_, err = f.svc.Decide(ctx, f.actor(third), view.ID.String(), domain.DecisionRequest{Action: "approve"})
	assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
}

func TestSpecificApproverRuleShortCircuits(t *testing.T) {
	f := setupWorkflowTest(t, "wf_specific")
	ctx := context.Background()

	f.seedRule(t,
		approvaldomain.ApprovalRule{Name: "CFO sign-off", RuleType: approvaldomain.RuleSpecificApprover, SpecificApproverID: &f.admin.ID},
		approvaldomain.ApprovalStep{StepOrder: 1, ApproverType: approvaldomain.ApproverManager},
		approvaldomain.ApprovalStep{StepOrder: 2, ApproverType: approvaldomain.ApproverAdmin},
	)

	view := f.submitted(t, 900)
	view, err := f.svc.Decide(ctx, f.actor(f.admin), view.ID.String(), domain.DecisionRequest{Action: "approve"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, view.Status, "designated approver alone completes the workflow")
}

func TestHybridRuleEitherLeg(t *testing.T) {
	f := setupWorkflowTest(t, "wf_hybrid")
	ctx := context.Background()

	threshold := 100
	f.seedRule(t,
		approvaldomain.ApprovalRule{
			Name:                "All or CFO",
			RuleType:            approvaldomain.RuleHybrid,
			PercentageThreshold: &threshold,
			SpecificApproverID:  &f.admin.ID,
		},
		approvaldomain.ApprovalStep{StepOrder: 1, ApproverType: approvaldomain.ApproverManager},
		approvaldomain.ApprovalStep{StepOrder: 2, ApproverType: approvaldomain.ApproverAdmin},
	)

	view := f.submitted(t, 60)
	view, err := f.svc.Decide(ctx, f.actor(f.admin), view.ID.String(), domain.DecisionRequest{Action: "approve"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, view.Status, "specific leg completes without the percentage leg")
}

func TestDegenerateWorkflowAutoApproves(t *testing.T) {
	f := setupWorkflowTest(t, "wf_auto_approve")
	ctx := context.Background()

	// No manager edge and no admin: every step resolves to nobody.
	loner := f.seedUser(t, "loner@wf_auto_approve.test", userdomain.RoleEmployee)
	require.NoError(t, f.db.Model(&userdomain.User{}).
		Where("id = ?", f.admin.ID).
		Update("is_active", false).Error)

	date := f.clk.Now()
	expense, err := f.svc.Create(ctx, f.actor(loner), domain.CreateExpenseRequest{Amount: 15, Currency: "USD", ExpenseDate: &date})
	require.NoError(t, err)

	view, err := f.svc.Submit(ctx, f.actor(loner), expense.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, view.Status)
	assert.Empty(t, view.Approvals)
	assert.Nil(t, view.CurrentApproverID)
}

func TestConversionFallsBackOnConverterError(t *testing.T) {
	f := setupWorkflowTest(t, "wf_conversion_fallback")

	// Swap in a converter that always fails; submission must still succeed.
	f.svc.(*Service).converter = failingConverter{}

	view := f.submitted(t, 88)
	assert.Equal(t, domain.StatusPendingApproval, view.Status)
	assert.Equal(t, 88.0, view.ConvertedAmount)
}

type failingConverter struct{}

func (failingConverter) Convert(context.Context, float64, string, string) (float64, error) {
	return 0, fmt.Errorf("rates endpoint unavailable")
}

func TestGetVisibility(t *testing.T) {
	f := setupWorkflowTest(t, "wf_get_visibility")
	ctx := context.Background()

	outsider := f.seedUser(t, "outsider@wf_get_visibility.test", userdomain.RoleEmployee)
	view := f.submitted(t, 55)

	_, err := f.svc.Get(ctx, f.actor(f.employee), view.ID.String())
	assert.NoError(t, err, "owner sees own expense")

	_, err = f.svc.Get(ctx, f.actor(f.manager), view.ID.String())
	assert.NoError(t, err, "pending-row holder sees the expense")

	_, err = f.svc.Get(ctx, f.actor(outsider), view.ID.String())
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Get(ctx, f.actor(f.employee), f.node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListsAndStats(t *testing.T) {
	f := setupWorkflowTest(t, "wf_lists_stats")
	ctx := context.Background()

	first := f.submitted(t, 100)
	f.clk.Advance(time.Minute)
	second := f.submitted(t, 40)

	_, err := f.svc.Decide(ctx, f.actor(f.manager), first.ID.String(), domain.DecisionRequest{Action: "approve"})
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, f.actor(f.admin), first.ID.String(), domain.DecisionRequest{Action: "approve"})
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, f.actor(f.manager), second.ID.String(), domain.DecisionRequest{Action: "reject"})
	require.NoError(t, err)

	mine, err := f.svc.ListMine(ctx, f.actor(f.employee), domain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, mine.Expenses, 2)

	approved, err := f.svc.ListMine(ctx, f.actor(f.employee), domain.ListRequest{Status: "approved"})
	require.NoError(t, err)
	require.Len(t, approved.Expenses, 1)
	assert.Equal(t, first.ID, approved.Expenses[0].ID)

	_, err = f.svc.ListCompany(ctx, f.actor(f.employee), domain.ListRequest{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	all, err := f.svc.ListCompany(ctx, f.actor(f.admin), domain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Expenses, 2)

	team, err := f.svc.ListTeam(ctx, f.actor(f.manager))
	require.NoError(t, err)
	assert.Len(t, team, 2)

	_, err = f.svc.Stats(ctx, f.actor(f.manager))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	stats, err := f.svc.Stats(ctx, f.actor(f.admin))
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalExpenses)
	assert.EqualValues(t, 1, stats.ApprovedCount)
	assert.EqualValues(t, 1, stats.RejectedCount)
	assert.EqualValues(t, 0, stats.PendingCount)
	assert.Equal(t, 100.0, stats.ApprovedAmount)
}

func TestListPendingApprovals(t *testing.T) {
	f := setupWorkflowTest(t, "wf_pending_queue")
	ctx := context.Background()

	view := f.submitted(t, 65)

	queue, err := f.svc.ListPendingApprovals(ctx, f.actor(f.manager))
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, view.ID, queue[0].ID)

	_, err = f.svc.Decide(ctx, f.actor(f.manager), view.ID.String(), domain.DecisionRequest{Action: "approve"})
	require.NoError(t, err)

	queue, err = f.svc.ListPendingApprovals(ctx, f.actor(f.manager))
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestDecisionTimestampComesFromClock(t *testing.T) {
	f := setupWorkflowTest(t, "wf_clock")
	ctx := context.Background()

	view := f.submitted(t, 25)
	f.clk.Advance(2 * time.Hour)
	decidedAt := f.clk.Now()

	view, err := f.svc.Decide(ctx, f.actor(f.manager), view.ID.String(), domain.DecisionRequest{Action: "approve"})
	require.NoError(t, err)

	require.NotNil(t, view.Approvals[0].DecidedAt)
	assert.WithinDuration(t, decidedAt, *view.Approvals[0].DecidedAt, time.Second)
}
