package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/internal/approval/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertRule(ctx context.Context, db *gorm.DB, rule *domain.ApprovalRule) error {
	return db.WithContext(ctx).Create(rule).Error
}

func (r *repo) FirstActiveRule(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*domain.ApprovalRule, error) {
	var rule domain.ApprovalRule
	err := db.WithContext(ctx).
		Where("company_id = ? AND is_active = ?", companyID, true).
		Order("id asc").
		First(&rule).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *repo) FindRule(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*domain.ApprovalRule, error) {
	var rule domain.ApprovalRule
	err := db.WithContext(ctx).First(&rule, "company_id = ? AND id = ?", companyID, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *repo) ListRules(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*domain.ApprovalRule, error) {
	var rules []*domain.ApprovalRule
	err := db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("id asc").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repo) InsertFlow(ctx context.Context, db *gorm.DB, flow *domain.ApprovalFlow, steps []*domain.ApprovalStep) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(flow).Error; err != nil {
			return err
		}
		for _, step := range steps {
			step.FlowID = flow.ID
		}
		if len(steps) > 0 {
			if err := tx.Create(&steps).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repo) DefaultFlow(ctx context.Context, db *gorm.DB, companyID, ruleID snowflake.ID) (*domain.ApprovalFlow, error) {
	var flow domain.ApprovalFlow
	err := db.WithContext(ctx).
		Where("company_id = ? AND rule_id = ? AND is_default = ? AND is_active = ?", companyID, ruleID, true, true).
		Order("id asc").
		First(&flow).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &flow, nil
}

func (r *repo) ListFlows(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*domain.ApprovalFlow, error) {
	var flows []*domain.ApprovalFlow
	err := db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("id asc").
		Find(&flows).Error
	if err != nil {
		return nil, err
	}
	return flows, nil
}

func (r *repo) StepsForFlow(ctx context.Context, db *gorm.DB, flowID snowflake.ID) ([]*domain.ApprovalStep, error) {
	var steps []*domain.ApprovalStep
	err := db.WithContext(ctx).
		Where("flow_id = ?", flowID).
		Order("step_order asc").
		Find(&steps).Error
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *repo) InsertLedgerRows(ctx context.Context, db *gorm.DB, rows []*domain.ExpenseApproval) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&rows).Error
}

func (r *repo) LedgerForExpense(ctx context.Context, db *gorm.DB, expenseID snowflake.ID) ([]*domain.ExpenseApproval, error) {
	var rows []*domain.ExpenseApproval
	err := db.WithContext(ctx).
		Where("expense_id = ?", expenseID).
		Order("step_order asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) PendingRowFor(ctx context.Context, db *gorm.DB, expenseID, approverID snowflake.ID) (*domain.ExpenseApproval, error) {
	var row domain.ExpenseApproval
	err := db.WithContext(ctx).
		Where("expense_id = ? AND approver_id = ? AND status = ?", expenseID, approverID, domain.StatusPending).
		Order("step_order asc").
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repo) ClaimRow(ctx context.Context, db *gorm.DB, rowID snowflake.ID, status domain.ApprovalStatus, comments string, decidedAt time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.ExpenseApproval{}).
		Where("id = ? AND status = ?", rowID, domain.StatusPending).
		Updates(map[string]any{
			"status":     status,
			"comments":   comments,
			"decided_at": decidedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
