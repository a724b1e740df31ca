package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/internal/category/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, category *domain.ExpenseCategory) error {
	return db.WithContext(ctx).Create(category).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*domain.ExpenseCategory, error) {
	var category domain.ExpenseCategory
	err := db.WithContext(ctx).First(&category, "company_id = ? AND id = ?", companyID, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

func (r *repo) ListByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*domain.ExpenseCategory, error) {
	var categories []*domain.ExpenseCategory
	err := db.WithContext(ctx).
		Where("company_id = ? AND is_active = ?", companyID, true).
		Order("name asc").
		Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}
