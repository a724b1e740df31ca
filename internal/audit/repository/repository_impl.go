package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/internal/audit/domain"
	"github.com/smallbiznis/expenseflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, req domain.ListRequest) ([]*domain.AuditLog, error) {
	query := db.WithContext(ctx).
		Model(&domain.AuditLog{}).
		Where("company_id = ?", companyID)

	if req.Action != "" {
		query = query.Where("action = ?", req.Action)
	}
	if req.TargetType != "" {
		query = query.Where("target_type = ?", req.TargetType)
	}
	if req.TargetID != "" {
		query = query.Where("target_id = ?", req.TargetID)
	}

	limit := req.PageSize
	if limit <= 0 {
		limit = 20
	}

	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err == nil && cursor.ID != "" {
			if lastID, perr := snowflake.ParseString(cursor.ID); perr == nil {
				query = query.Where("id < ?", lastID)
			}
		}
	}

	var logs []*domain.AuditLog
	if err := query.Order("id desc").Limit(limit + 1).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
