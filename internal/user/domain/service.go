package domain

import (
	"context"
	"errors"
)

type CreateUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type UpdateUserRequest struct {
	ID       string  `json:"-"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

type AssignManagerRequest struct {
	ManagerID  string `json:"manager_id"`
	EmployeeID string `json:"employee_id"`
}

type Service interface {
	Create(ctx context.Context, companyID string, req CreateUserRequest) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	List(ctx context.Context, companyID string) ([]User, error)
	Update(ctx context.Context, companyID string, req UpdateUserRequest) (User, error)
	AssignManager(ctx context.Context, companyID string, req AssignManagerRequest) error
	RemoveManager(ctx context.Context, companyID string, req AssignManagerRequest) error
}

var (
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidPassword = errors.New("invalid_password")
	ErrInvalidRole     = errors.New("invalid_role")
	ErrInvalidID       = errors.New("invalid_id")
	ErrEmailTaken      = errors.New("email_taken")
	ErrNotFound        = errors.New("not_found")
	ErrNotManager      = errors.New("not_a_manager")
	ErrCrossCompany    = errors.New("cross_company_assignment")
)
