package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	approvaldomain "github.com/smallbiznis/expenseflow/internal/approval/domain"
	"github.com/smallbiznis/expenseflow/internal/expense/domain"
	"github.com/smallbiznis/expenseflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, expense *domain.Expense) error {
	return db.WithContext(ctx).Create(expense).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*domain.Expense, error) {
	var expense domain.Expense
	err := db.WithContext(ctx).First(&expense, "company_id = ? AND id = ?", companyID, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &expense, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, expense *domain.Expense) error {
	return db.WithContext(ctx).Save(expense).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Expense, error) {
	var expenses []*domain.Expense
	stmt := db.WithContext(ctx).
		Model(&domain.Expense{}).
		Where("company_id = ?", companyID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.EmployeeID != 0 {
		stmt = stmt.Where("employee_id = ?", filter.EmployeeID)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err == nil && cursor.ID != "" {
			if lastID, perr := snowflake.ParseString(cursor.ID); perr == nil {
				stmt = stmt.Where("id < ?", lastID)
			}
		}
	}
	limit := page.PageSize
	if limit <= 0 {
		limit = 20
	}
	err := stmt.
		Order("id desc").
		Limit(limit + 1).
		Find(&expenses).Error
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

func (r *repo) ListPendingForApprover(ctx context.Context, db *gorm.DB, companyID, approverID snowflake.ID) ([]*domain.Expense, error) {
	var expenses []*domain.Expense
	err := db.WithContext(ctx).
		Model(&domain.Expense{}).
		Joins("JOIN expense_approvals ea ON ea.expense_id = expenses.id").
		Where("expenses.company_id = ? AND expenses.status = ?", companyID, domain.StatusPendingApproval).
		Where("ea.approver_id = ? AND ea.status = ?", approverID, approvaldomain.StatusPending).
		Order("expenses.id asc").
		Find(&expenses).Error
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

func (r *repo) ListForManager(ctx context.Context, db *gorm.DB, companyID, managerID snowflake.ID) ([]*domain.Expense, error) {
	var expenses []*domain.Expense
	err := db.WithContext(ctx).
		Model(&domain.Expense{}).
		Joins("JOIN manager_employees me ON me.employee_id = expenses.employee_id").
		Where("expenses.company_id = ?", companyID).
		Where("me.manager_id = ? AND me.company_id = ? AND me.is_active = ?", managerID, companyID, true).
		Order("expenses.id desc").
		Find(&expenses).Error
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

func (r *repo) Stats(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (domain.Stats, error) {
	var stats domain.Stats
	err := db.WithContext(ctx).
		Model(&domain.Expense{}).
		Select(`COUNT(*) AS total_expenses,
			COALESCE(SUM(CASE WHEN status = 'pending_approval' THEN 1 ELSE 0 END), 0) AS pending_count,
			COALESCE(SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END), 0) AS approved_count,
			COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0) AS rejected_count,
			COALESCE(SUM(CASE WHEN status = 'approved' THEN converted_amount ELSE 0 END), 0) AS approved_amount,
			COALESCE(SUM(CASE WHEN status = 'pending_approval' THEN converted_amount ELSE 0 END), 0) AS pending_amount`).
		Where("company_id = ?", companyID).
		Scan(&stats).Error
	if err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}
