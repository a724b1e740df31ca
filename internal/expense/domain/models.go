package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ExpenseStatus string

const (
	StatusDraft           ExpenseStatus = "draft"
	StatusSubmitted       ExpenseStatus = "submitted"
	StatusPendingApproval ExpenseStatus = "pending_approval"
	StatusApproved        ExpenseStatus = "approved"
	StatusRejected        ExpenseStatus = "rejected"
	StatusPaid            ExpenseStatus = "paid"
)

// Terminal reports whether the workflow is done with this expense. Paid is
// set outside the engine, after approval.
func (s ExpenseStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusPaid
}

type Expense struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID  snowflake.ID `gorm:"not null;index" json:"company_id"`
	EmployeeID snowflake.ID `gorm:"not null;index" json:"employee_id"`

	Amount          float64       `gorm:"not null" json:"amount"`
	Currency        string        `gorm:"not null" json:"currency"`
	ConvertedAmount float64       `json:"converted_amount"`
	CategoryID      *snowflake.ID `json:"category_id,omitempty"`
	Description     string        `json:"description"`
	ExpenseDate     time.Time     `gorm:"not null" json:"expense_date"`
	ReceiptKey      string        `json:"receipt_key,omitempty"`

	FlowID *snowflake.ID `json:"flow_id,omitempty"`
	// CurrentStep and CurrentApproverID point at the lowest-order still
	// pending ledger row. They are display hints; decision authorization
	// checks the ledger, not these fields.
	CurrentStep       int           `gorm:"not null;default:0" json:"current_step"`
	CurrentApproverID *snowflake.ID `json:"current_approver_id,omitempty"`
	Status            ExpenseStatus `gorm:"not null;default:draft;index" json:"status"`

	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}
