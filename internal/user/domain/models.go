package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	default:
		return false
	}
}

type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID    snowflake.ID `gorm:"not null;index" json:"company_id"`
	Email        string       `gorm:"not null;uniqueIndex" json:"email"`
	PasswordHash string       `gorm:"not null" json:"-"`
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	Role         Role         `gorm:"not null;default:employee" json:"role"`
	IsActive     bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (u User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	return name
}

// ManagerEmployee is a directed reporting edge. The manager approver type
// resolves through the active edge for the expense's employee.
type ManagerEmployee struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	ManagerID  snowflake.ID `gorm:"not null;uniqueIndex:ux_manager_edges,priority:1" json:"manager_id"`
	EmployeeID snowflake.ID `gorm:"not null;uniqueIndex:ux_manager_edges,priority:2;index" json:"employee_id"`
	CompanyID  snowflake.ID `gorm:"not null;uniqueIndex:ux_manager_edges,priority:3" json:"company_id"`
	IsActive   bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}
