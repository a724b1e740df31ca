package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog is one immutable record of a workflow action: who did what to
// which entity, with free-form metadata.
type AuditLog struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	CompanyID  snowflake.ID   `gorm:"not null;index" json:"company_id"`
	ActorID    *snowflake.ID  `json:"actor_id,omitempty"`
	Action     string         `gorm:"not null;index" json:"action"`
	TargetType string         `gorm:"not null" json:"target_type"`
	TargetID   string         `json:"target_id"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
}

type Entry struct {
	CompanyID  snowflake.ID
	ActorID    *snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type ListRequest struct {
	pagination.Pagination
	Action     string `form:"action"`
	TargetType string `form:"target_type"`
	TargetID   string `form:"target_id"`
}

type ListResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, req ListRequest) ([]*AuditLog, error)
}

type Service interface {
	// Record writes the entry best-effort. Audit failures are logged, never
	// propagated into the caller's operation.
	Record(ctx context.Context, entry Entry)

	List(ctx context.Context, companyID string, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidID     = errors.New("invalid_id")
)
