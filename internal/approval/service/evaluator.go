package service

import (
	"fmt"

	"github.com/smallbiznis/expenseflow/internal/approval/domain"
)

// Outcome is the evaluator's verdict over one ledger snapshot.
type Outcome struct {
	Complete bool
	Reason   string
}

// Evaluate decides whether the ledger's current state satisfies the rule's
// completion policy. It is a pure read: it never mutates rows, and callers
// are responsible for handing it a consistent snapshot of the whole ledger.
//
// Sequential rules never complete early here; their terminal condition (no
// pending rows remain) belongs to the state machine.
func Evaluate(rule domain.ApprovalRule, rows []*domain.ExpenseApproval) Outcome {
	switch rule.RuleType {
	case domain.RulePercentage:
		return evaluatePercentage(rule, rows)
	case domain.RuleSpecificApprover:
		return evaluateSpecificApprover(rule, rows)
	case domain.RuleHybrid:
		if outcome := evaluatePercentage(rule, rows); outcome.Complete {
			return outcome
		}
		return evaluateSpecificApprover(rule, rows)
	default:
		return Outcome{Reason: "sequential rules complete only when no rows remain pending"}
	}
}

func evaluatePercentage(rule domain.ApprovalRule, rows []*domain.ExpenseApproval) Outcome {
	total := len(rows)
	if total == 0 {
		return Outcome{Reason: "no ledger rows to evaluate"}
	}

	threshold := 100
	if rule.PercentageThreshold != nil {
		threshold = *rule.PercentageThreshold
	}

	approved := 0
	for _, row := range rows {
		if row.Status == domain.StatusApproved {
			approved++
		}
	}

	ratio := float64(approved) / float64(total) * 100
	if ratio >= float64(threshold) {
		return Outcome{
			Complete: true,
			Reason:   fmt.Sprintf("%d of %d approved (%.0f%% >= %d%%)", approved, total, ratio, threshold),
		}
	}
	return Outcome{Reason: fmt.Sprintf("%d of %d approved (%.0f%% < %d%%)", approved, total, ratio, threshold)}
}

func evaluateSpecificApprover(rule domain.ApprovalRule, rows []*domain.ExpenseApproval) Outcome {
	if rule.SpecificApproverID == nil || *rule.SpecificApproverID == 0 {
		return Outcome{Reason: "rule has no specific approver configured"}
	}

	for _, row := range rows {
		if row.ApproverID == *rule.SpecificApproverID && row.Status == domain.StatusApproved {
			return Outcome{Complete: true, Reason: "designated approver approved"}
		}
	}
	return Outcome{Reason: "designated approver has not approved"}
}
