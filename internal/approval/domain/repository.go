package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertRule(ctx context.Context, db *gorm.DB, rule *ApprovalRule) error
	FirstActiveRule(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*ApprovalRule, error)
	FindRule(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*ApprovalRule, error)
	ListRules(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*ApprovalRule, error)

	// InsertFlow persists the flow and its steps in one transaction.
	InsertFlow(ctx context.Context, db *gorm.DB, flow *ApprovalFlow, steps []*ApprovalStep) error
	DefaultFlow(ctx context.Context, db *gorm.DB, companyID, ruleID snowflake.ID) (*ApprovalFlow, error)
	ListFlows(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*ApprovalFlow, error)
	StepsForFlow(ctx context.Context, db *gorm.DB, flowID snowflake.ID) ([]*ApprovalStep, error)

	// InsertLedgerRows creates all rows of one workflow in a single batch.
	InsertLedgerRows(ctx context.Context, db *gorm.DB, rows []*ExpenseApproval) error
	LedgerForExpense(ctx context.Context, db *gorm.DB, expenseID snowflake.ID) ([]*ExpenseApproval, error)
	PendingRowFor(ctx context.Context, db *gorm.DB, expenseID, approverID snowflake.ID) (*ExpenseApproval, error)

	// ClaimRow transitions a pending row to its decided status, guarded by a
	// conditional update on status = pending. Returns false when another
	// decision claimed the row first.
	ClaimRow(ctx context.Context, db *gorm.DB, rowID snowflake.ID, status ApprovalStatus, comments string, decidedAt time.Time) (bool, error)
}
