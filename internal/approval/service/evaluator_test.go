package service

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/internal/approval/domain"
	"github.com/stretchr/testify/assert"
)

func row(id int64, status domain.ApprovalStatus) *domain.ExpenseApproval {
	return &domain.ExpenseApproval{
		ID:         snowflake.ID(id),
		ApproverID: snowflake.ID(id),
		Status:     status,
	}
}

func intPtr(v int) *int { return &v }

func idPtr(v int64) *snowflake.ID {
	id := snowflake.ID(v)
	return &id
}

func TestEvaluateSequentialNeverCompletes(t *testing.T) {
	rule := domain.ApprovalRule{RuleType: domain.RuleSequential}

	outcome := Evaluate(rule, []*domain.ExpenseApproval{
		row(1, domain.StatusApproved),
		row(2, domain.StatusApproved),
	})
	assert.False(t, outcome.Complete)
}

func TestEvaluatePercentage(t *testing.T) {
	rule := domain.ApprovalRule{
		RuleType:            domain.RulePercentage,
		PercentageThreshold: intPtr(60),
	}

	tests := []struct {
		name     string
		rows     []*domain.ExpenseApproval
		complete bool
	}{
		{
			name:     "no rows",
			rows:     nil,
			complete: false,
		},
		{
			name: "one of three approved",
			rows: []*domain.ExpenseApproval{
				row(1, domain.StatusApproved),
				row(2, domain.StatusPending),
				row(3, domain.StatusPending),
			},
			complete: false,
		},
		{
			name: "two of three approved crosses 60 percent",
			rows: []*domain.ExpenseApproval{
				row(1, domain.StatusApproved),
				row(2, domain.StatusApproved),
				row(3, domain.StatusPending),
			},
			complete: true,
		},
		{
			name: "rejected rows count toward the denominator",
			rows: []*domain.ExpenseApproval{
				row(1, domain.StatusApproved),
				row(2, domain.StatusRejected),
				row(3, domain.StatusPending),
			},
			complete: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Evaluate(rule, tt.rows)
			assert.Equal(t, tt.complete, outcome.Complete)
		})
	}
}

func TestEvaluatePercentageDefaultThreshold(t *testing.T) {
	// Threshold left nil behaves as 100 percent.
	rule := domain.ApprovalRule{RuleType: domain.RulePercentage}

	outcome := Evaluate(rule, []*domain.ExpenseApproval{
		row(1, domain.StatusApproved),
		row(2, domain.StatusPending),
	})
	assert.False(t, outcome.Complete)

	outcome = Evaluate(rule, []*domain.ExpenseApproval{
		row(1, domain.StatusApproved),
		row(2, domain.StatusApproved),
	})
	assert.True(t, outcome.Complete)
}

func TestEvaluateSpecificApprover(t *testing.T) {
	rule := domain.ApprovalRule{
		RuleType:           domain.RuleSpecificApprover,
		SpecificApproverID: idPtr(2),
	}

	outcome := Evaluate(rule, []*domain.ExpenseApproval{
		row(1, domain.StatusApproved),
		row(2, domain.StatusPending),
	})
	assert.False(t, outcome.Complete)

	outcome = Evaluate(rule, []*domain.ExpenseApproval{
		row(1, domain.StatusPending),
		row(2, domain.StatusApproved),
	})
	assert.True(t, outcome.Complete)
}

func TestEvaluateHybridEitherLegCompletes(t *testing.T) {
	rule := domain.ApprovalRule{
		RuleType:            domain.RuleHybrid,
		PercentageThreshold: intPtr(60),
		SpecificApproverID:  idPtr(3),
	}

	// Designated approver alone completes.
	outcome := Evaluate(rule, []*domain.ExpenseApproval{
		row(1, domain.StatusPending),
		row(2, domain.StatusPending),
		row(3, domain.StatusApproved),
	})
	assert.True(t, outcome.Complete)

	// Percentage leg alone completes.
	outcome = Evaluate(rule, []*domain.ExpenseApproval{
		row(1, domain.StatusApproved),
		row(2, domain.StatusApproved),
		row(3, domain.StatusPending),
	})
	assert.True(t, outcome.Complete)

	// Neither leg satisfied.
	outcome = Evaluate(rule, []*domain.ExpenseApproval{
		row(1, domain.StatusApproved),
		row(2, domain.StatusPending),
		row(3, domain.StatusPending),
	})
	assert.False(t, outcome.Complete)
}
