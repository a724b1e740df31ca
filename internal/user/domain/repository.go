package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	ListByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*User, error)
	Update(ctx context.Context, db *gorm.DB, user *User) error

	// FirstActiveAdmin returns the active admin with the lowest ID, or nil.
	// The ordering is what keeps admin-step resolution deterministic.
	FirstActiveAdmin(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*User, error)

	InsertManagerEdge(ctx context.Context, db *gorm.DB, edge *ManagerEmployee) error
	ActiveManagerFor(ctx context.Context, db *gorm.DB, companyID, employeeID snowflake.ID) (*User, error)
	ListEmployeesOf(ctx context.Context, db *gorm.DB, companyID, managerID snowflake.ID) ([]*User, error)
	DeactivateManagerEdge(ctx context.Context, db *gorm.DB, companyID, managerID, employeeID snowflake.ID) error
}
