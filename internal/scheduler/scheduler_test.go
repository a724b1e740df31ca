package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/expenseflow/internal/audit/domain"
	auditrepository "github.com/smallbiznis/expenseflow/internal/audit/repository"
	auditservice "github.com/smallbiznis/expenseflow/internal/audit/service"
	"github.com/smallbiznis/expenseflow/internal/clock"
	expensedomain "github.com/smallbiznis/expenseflow/internal/expense/domain"
	"github.com/smallbiznis/expenseflow/internal/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupSchedulerTest(t *testing.T, name string) (*Scheduler, *gorm.DB, *snowflake.Node, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC))
	auditSvc := auditservice.New(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})

	s, err := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    clk,
		AuditSvc: auditSvc,
		Config:   Config{StaleAfter: 72 * time.Hour, BatchSize: 10},
	})
	require.NoError(t, err)
	return s, db, node, clk
}

func seedPending(t *testing.T, db *gorm.DB, node *snowflake.Node, companyID snowflake.ID, submittedAt time.Time) expensedomain.Expense {
	t.Helper()

	approverID := node.Generate()
	expense := expensedomain.Expense{
		ID:                node.Generate(),
		CompanyID:         companyID,
		EmployeeID:        node.Generate(),
		Amount:            50,
		Currency:          "USD",
		ExpenseDate:       submittedAt,
		Status:            expensedomain.StatusPendingApproval,
		CurrentStep:       1,
		CurrentApproverID: &approverID,
		SubmittedAt:       &submittedAt,
	}
	require.NoError(t, db.Create(&expense).Error)
	return expense
}

func TestRunOnceFlagsOnlyStalePending(t *testing.T) {
	s, db, node, clk := setupSchedulerTest(t, "sched_stale")
	companyID := node.Generate()

	stale := seedPending(t, db, node, companyID, clk.Now().Add(-96*time.Hour))
	fresh := seedPending(t, db, node, companyID, clk.Now().Add(-time.Hour))

	approved := seedPending(t, db, node, companyID, clk.Now().Add(-96*time.Hour))
	require.NoError(t, db.Model(&expensedomain.Expense{}).
		Where("id = ?", approved.ID).
		Update("status", expensedomain.StatusApproved).Error)

	count, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var logs []auditdomain.AuditLog
	require.NoError(t, db.Where("action = ?", "expense.reminder").Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, stale.ID.String(), logs[0].TargetID)
	assert.Equal(t, companyID, logs[0].CompanyID)

	var freshLogs int64
	db.Model(&auditdomain.AuditLog{}).Where("target_id = ?", fresh.ID.String()).Count(&freshLogs)
	assert.Zero(t, freshLogs)
}

func TestRunOnceBecomesStaleAsClockAdvances(t *testing.T) {
	s, db, node, clk := setupSchedulerTest(t, "sched_clock_advance")
	companyID := node.Generate()

	seedPending(t, db, node, companyID, clk.Now().Add(-time.Hour))

	count, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	clk.Advance(80 * time.Hour)

	count, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunOnceHonorsBatchSize(t *testing.T) {
	s, db, node, clk := setupSchedulerTest(t, "sched_batch")
	s.cfg.BatchSize = 2
	companyID := node.Generate()

	for i := 0; i < 5; i++ {
		seedPending(t, db, node, companyID, clk.Now().Add(-time.Duration(90+i)*time.Hour))
	}

	count, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
