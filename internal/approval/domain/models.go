package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RuleType is the completion policy governing when a ledger counts as final
// approval.
type RuleType string

const (
	RuleSequential       RuleType = "sequential"
	RulePercentage       RuleType = "percentage"
	RuleSpecificApprover RuleType = "specific_approver"
	RuleHybrid           RuleType = "hybrid"
)

func (t RuleType) Valid() bool {
	switch t {
	case RuleSequential, RulePercentage, RuleSpecificApprover, RuleHybrid:
		return true
	default:
		return false
	}
}

// NeedsThreshold reports whether the rule type requires a percentage threshold.
func (t RuleType) NeedsThreshold() bool {
	return t == RulePercentage || t == RuleHybrid
}

// NeedsSpecificApprover reports whether the rule type requires a designated approver.
func (t RuleType) NeedsSpecificApprover() bool {
	return t == RuleSpecificApprover || t == RuleHybrid
}

// ApproverType names an abstract position in a flow, resolved to a concrete
// user at submission time.
type ApproverType string

const (
	ApproverManager      ApproverType = "manager"
	ApproverAdmin        ApproverType = "admin"
	ApproverFinance      ApproverType = "finance"
	ApproverDirector     ApproverType = "director"
	ApproverSpecificUser ApproverType = "specific_user"
)

func (t ApproverType) Valid() bool {
	switch t {
	case ApproverManager, ApproverAdmin, ApproverFinance, ApproverDirector, ApproverSpecificUser:
		return true
	default:
		return false
	}
}

type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// ApprovalRule is a company's completion policy. One active rule is bound at
// workflow-creation time; a default sequential rule is created lazily when a
// company has none.
type ApprovalRule struct {
	ID                  snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID           snowflake.ID  `gorm:"not null;uniqueIndex:ux_approval_rules_company_name,priority:1" json:"company_id"`
	Name                string        `gorm:"not null;uniqueIndex:ux_approval_rules_company_name,priority:2" json:"name"`
	RuleType            RuleType      `gorm:"not null;default:sequential" json:"rule_type"`
	PercentageThreshold *int          `json:"percentage_threshold,omitempty"`
	SpecificApproverID  *snowflake.ID `json:"specific_approver_id,omitempty"`
	IsActive            bool          `gorm:"not null;default:true" json:"is_active"`
	CreatedAt           time.Time     `gorm:"not null" json:"created_at"`
}

// ApprovalFlow is a concrete, ordered list of steps bound to one rule.
type ApprovalFlow struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID `gorm:"not null;uniqueIndex:ux_approval_flows_company_name,priority:1" json:"company_id"`
	RuleID    snowflake.ID `gorm:"not null" json:"rule_id"`
	Name      string       `gorm:"not null;uniqueIndex:ux_approval_flows_company_name,priority:2" json:"name"`
	IsDefault bool         `gorm:"not null;default:false" json:"is_default"`
	IsActive  bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

// ApprovalStep is one position in a flow. StepOrder is unique within the flow.
type ApprovalStep struct {
	ID                 snowflake.ID  `gorm:"primaryKey" json:"id"`
	FlowID             snowflake.ID  `gorm:"not null;uniqueIndex:ux_approval_steps_flow_order,priority:1" json:"flow_id"`
	StepOrder          int           `gorm:"not null;uniqueIndex:ux_approval_steps_flow_order,priority:2" json:"step_order"`
	ApproverType       ApproverType  `gorm:"not null" json:"approver_type"`
	SpecificApproverID *snowflake.ID `json:"specific_approver_id,omitempty"`
}

// ExpenseApproval is one ledger row: the per-(expense, step) decision record.
// Rows are immutable once they leave pending.
type ExpenseApproval struct {
	ID           snowflake.ID   `gorm:"primaryKey" json:"id"`
	ExpenseID    snowflake.ID   `gorm:"not null;uniqueIndex:ux_expense_approvals_step,priority:1;index" json:"expense_id"`
	ApproverID   snowflake.ID   `gorm:"not null;index" json:"approver_id"`
	StepOrder    int            `gorm:"not null;uniqueIndex:ux_expense_approvals_step,priority:2" json:"step_order"`
	ApproverType ApproverType   `gorm:"not null;default:manager" json:"approver_type"`
	Status       ApprovalStatus `gorm:"not null;default:pending" json:"status"`
	Comments     string         `json:"comments"`
	DecidedAt    *time.Time     `json:"decided_at,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
}
