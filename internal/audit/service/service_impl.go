package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/internal/audit/domain"
	"github.com/smallbiznis/expenseflow/internal/clock"
	"github.com/smallbiznis/expenseflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, entry domain.Entry) {
	action := strings.TrimSpace(entry.Action)
	if action == "" || entry.CompanyID == 0 {
		return
	}

	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	record := domain.AuditLog{
		ID:         s.genID.Generate(),
		CompanyID:  entry.CompanyID,
		ActorID:    entry.ActorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   entry.TargetID,
		CreatedAt:  s.clock.Now(),
	}
	if len(entry.Metadata) > 0 {
		if raw, err := json.Marshal(entry.Metadata); err == nil {
			record.Metadata = datatypes.JSON(raw)
		}
	}

	if err := s.repo.Insert(ctx, s.db, &record); err != nil {
		s.log.Warn("audit write failed",
			zap.String("action", action),
			zap.String("target_id", entry.TargetID),
			zap.Error(err),
		)
	}
}

func (s *Service) List(ctx context.Context, companyID string, req domain.ListRequest) (domain.ListResponse, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(companyID))
	if err != nil || id == 0 {
		return domain.ListResponse{}, domain.ErrInvalidID
	}

	logs, err := s.repo.List(ctx, s.db, id, req)
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	pageInfo := pagination.BuildCursorPageInfo(logs, int32(pageSize), func(entry *domain.AuditLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        entry.ID.String(),
			CreatedAt: entry.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(logs) > pageSize {
		logs = logs[:pageSize]
	}

	resp := domain.ListResponse{}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	for _, entry := range logs {
		resp.AuditLogs = append(resp.AuditLogs, *entry)
	}
	return resp, nil
}
