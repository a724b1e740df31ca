package domain

import (
	"context"
	"errors"
)

type CreateRuleRequest struct {
	Name                string  `json:"name"`
	RuleType            string  `json:"rule_type"`
	PercentageThreshold *int    `json:"percentage_threshold"`
	SpecificApproverID  *string `json:"specific_approver_id"`
}

type CreateFlowStep struct {
	StepOrder          int     `json:"step_order"`
	ApproverType       string  `json:"approver_type"`
	SpecificApproverID *string `json:"specific_approver_id"`
}

type CreateFlowRequest struct {
	Name      string           `json:"name"`
	RuleID    string           `json:"rule_id"`
	IsDefault bool             `json:"is_default"`
	Steps     []CreateFlowStep `json:"steps"`
}

type FlowView struct {
	ApprovalFlow
	Steps []ApprovalStep `json:"steps"`
}

// Service covers the admin surface over rules and flows. The engine itself
// goes through Resolver and the repository, not this interface.
type Service interface {
	CreateRule(ctx context.Context, companyID string, req CreateRuleRequest) (ApprovalRule, error)
	ListRules(ctx context.Context, companyID string) ([]ApprovalRule, error)
	CreateFlow(ctx context.Context, companyID string, req CreateFlowRequest) (FlowView, error)
	ListFlows(ctx context.Context, companyID string) ([]FlowView, error)
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidRuleType     = errors.New("invalid_rule_type")
	ErrInvalidThreshold    = errors.New("invalid_percentage_threshold")
	ErrMissingApprover     = errors.New("missing_specific_approver")
	ErrInvalidApproverType = errors.New("invalid_approver_type")
	ErrInvalidSteps        = errors.New("invalid_steps")
	ErrNameTaken           = errors.New("name_taken")
	ErrNotFound            = errors.New("not_found")
)
