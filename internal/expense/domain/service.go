package domain

import (
	"context"
	"errors"
	"time"

	approvaldomain "github.com/smallbiznis/expenseflow/internal/approval/domain"
	"github.com/smallbiznis/expenseflow/pkg/db/pagination"
)

type DecisionAction string

const (
	ActionApprove DecisionAction = "approve"
	ActionReject  DecisionAction = "reject"
)

// Actor is the authenticated caller, injected by the auth middleware.
type Actor struct {
	UserID    string
	CompanyID string
	Role      string
}

type CreateExpenseRequest struct {
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	CategoryID  *string    `json:"category_id"`
	Description string     `json:"description"`
	ExpenseDate *time.Time `json:"expense_date"`
	ReceiptKey  string     `json:"receipt_key"`
}

type DecisionRequest struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

type ListRequest struct {
	pagination.Pagination
	Status string `form:"status"`
}

type ExpenseView struct {
	Expense
	Approvals []approvaldomain.ExpenseApproval `json:"approvals"`
}

type ListResponse struct {
	pagination.PageInfo
	Expenses []Expense `json:"expenses"`
}

type Service interface {
	// Create stores a draft. The workflow starts at Submit.
	Create(ctx context.Context, actor Actor, req CreateExpenseRequest) (Expense, error)

	// Submit converts the amount to the company currency (1:1 on converter
	// failure), resolves the company's workflow, materializes the approval
	// ledger and moves the expense to pending_approval, or straight to
	// approved when nothing could be materialized.
	Submit(ctx context.Context, actor Actor, expenseID string) (ExpenseView, error)

	// Decide records one approver's verdict and applies the resulting
	// state transition. Any actor holding a pending ledger row may decide.
	Decide(ctx context.Context, actor Actor, expenseID string, req DecisionRequest) (ExpenseView, error)

	Get(ctx context.Context, actor Actor, expenseID string) (ExpenseView, error)
	ListMine(ctx context.Context, actor Actor, req ListRequest) (ListResponse, error)
	ListCompany(ctx context.Context, actor Actor, req ListRequest) (ListResponse, error)
	ListPendingApprovals(ctx context.Context, actor Actor) ([]ExpenseView, error)
	ListTeam(ctx context.Context, actor Actor) ([]Expense, error)
	Stats(ctx context.Context, actor Actor) (Stats, error)
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrInvalidDate     = errors.New("invalid_expense_date")
	ErrInvalidAction   = errors.New("invalid_action")
	ErrNotFound        = errors.New("not_found")

	// ErrNotSubmittable rejects Submit on an expense no longer in draft.
	ErrNotSubmittable = errors.New("expense_not_submittable")

	// ErrNotApprover means the actor holds no pending ledger row for the
	// expense, so the decision is not theirs to make.
	ErrNotApprover = errors.New("not_pending_approver")

	// ErrAlreadyDecided is the stale-state failure: the row, or the whole
	// expense, was decided by the time this decision arrived.
	ErrAlreadyDecided = errors.New("already_decided")

	ErrForbidden = errors.New("forbidden")
)
