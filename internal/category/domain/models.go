package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ExpenseCategory struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID `gorm:"not null;uniqueIndex:ux_categories_company_name,priority:1" json:"company_id"`
	Name      string       `gorm:"not null;uniqueIndex:ux_categories_company_name,priority:2" json:"name"`
	IsActive  bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, category *ExpenseCategory) error
	FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*ExpenseCategory, error)
	ListByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*ExpenseCategory, error)
}

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

type Service interface {
	Create(ctx context.Context, companyID string, req CreateCategoryRequest) (ExpenseCategory, error)
	List(ctx context.Context, companyID string) ([]ExpenseCategory, error)
}

var (
	ErrInvalidName = errors.New("invalid_name")
	ErrInvalidID   = errors.New("invalid_id")
	ErrNameTaken   = errors.New("name_taken")
	ErrNotFound    = errors.New("not_found")
)
