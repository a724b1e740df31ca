package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Company is the tenant boundary. Every workflow entity hangs off one company.
type Company struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"not null;uniqueIndex" json:"name"`
	Currency  string       `gorm:"not null;default:USD" json:"currency"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}
