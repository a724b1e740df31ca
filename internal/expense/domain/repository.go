package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status     ExpenseStatus
	EmployeeID snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, expense *Expense) error
	FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*Expense, error)
	Update(ctx context.Context, db *gorm.DB, expense *Expense) error
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*Expense, error)

	// ListPendingForApprover returns expenses with a pending ledger row held
	// by the approver, ordered oldest first.
	ListPendingForApprover(ctx context.Context, db *gorm.DB, companyID, approverID snowflake.ID) ([]*Expense, error)

	// ListForManager returns expenses filed by the manager's active reports.
	ListForManager(ctx context.Context, db *gorm.DB, companyID, managerID snowflake.ID) ([]*Expense, error)

	Stats(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (Stats, error)
}

type Stats struct {
	TotalExpenses  int64   `json:"total_expenses"`
	PendingCount   int64   `json:"pending_count"`
	ApprovedCount  int64   `json:"approved_count"`
	RejectedCount  int64   `json:"rejected_count"`
	ApprovedAmount float64 `json:"approved_amount"`
	PendingAmount  float64 `json:"pending_amount"`
}
