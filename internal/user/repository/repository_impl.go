package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Create(user).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).First(&user, "email = ?", email).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *repo) ListByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*domain.User, error) {
	var users []*domain.User
	err := db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("id asc").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Save(user).Error
}

func (r *repo) FirstActiveAdmin(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).
		Where("company_id = ? AND role = ? AND is_active = ?", companyID, domain.RoleAdmin, true).
		Order("id asc").
		First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *repo) InsertManagerEdge(ctx context.Context, db *gorm.DB, edge *domain.ManagerEmployee) error {
	return db.WithContext(ctx).Create(edge).Error
}

func (r *repo) ActiveManagerFor(ctx context.Context, db *gorm.DB, companyID, employeeID snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Joins("JOIN manager_employees me ON me.manager_id = users.id").
		Where("me.company_id = ? AND me.employee_id = ? AND me.is_active = ?", companyID, employeeID, true).
		Where("users.is_active = ?", true).
		Order("me.id asc").
		First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *repo) ListEmployeesOf(ctx context.Context, db *gorm.DB, companyID, managerID snowflake.ID) ([]*domain.User, error) {
	var users []*domain.User
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Joins("JOIN manager_employees me ON me.employee_id = users.id").
		Where("me.company_id = ? AND me.manager_id = ? AND me.is_active = ?", companyID, managerID, true).
		Order("users.id asc").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) DeactivateManagerEdge(ctx context.Context, db *gorm.DB, companyID, managerID, employeeID snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&domain.ManagerEmployee{}).
		Where("company_id = ? AND manager_id = ? AND employee_id = ?", companyID, managerID, employeeID).
		Update("is_active", false).Error
}
