package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/internal/category/domain"
	"github.com/smallbiznis/expenseflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Categories every new company starts with, created lazily on first list.
var defaultCategories = []string{"Travel", "Meals", "Office Supplies", "Software", "Other"}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("category.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, companyID string, req domain.CreateCategoryRequest) (domain.ExpenseCategory, error) {
	company, err := parseID(companyID)
	if err != nil {
		return domain.ExpenseCategory{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ExpenseCategory{}, domain.ErrInvalidName
	}

	category := domain.ExpenseCategory{
		ID:        s.genID.Generate(),
		CompanyID: company,
		Name:      name,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, &category); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ExpenseCategory{}, domain.ErrNameTaken
		}
		return domain.ExpenseCategory{}, err
	}
	return category, nil
}

func (s *Service) List(ctx context.Context, companyID string) ([]domain.ExpenseCategory, error) {
	company, err := parseID(companyID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListByCompany(ctx, s.db, company)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		items, err = s.seedDefaults(ctx, company)
		if err != nil {
			return nil, err
		}
	}

	categories := make([]domain.ExpenseCategory, 0, len(items))
	for _, item := range items {
		categories = append(categories, *item)
	}
	return categories, nil
}

func (s *Service) seedDefaults(ctx context.Context, companyID snowflake.ID) ([]*domain.ExpenseCategory, error) {
	now := time.Now().UTC()
	for _, name := range defaultCategories {
		category := &domain.ExpenseCategory{
			ID:        s.genID.Generate(),
			CompanyID: companyID,
			Name:      name,
			IsActive:  true,
			CreatedAt: now,
		}
		if err := s.repo.Insert(ctx, s.db, category); err != nil {
			if db.IsDuplicateKeyErr(err) {
				// Concurrent first-list seeded it already.
				continue
			}
			return nil, err
		}
	}
	return s.repo.ListByCompany(ctx, s.db, companyID)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
