package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/internal/user/domain"
	"github.com/smallbiznis/expenseflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

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
		log:   p.Log.Named("user.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, companyID string, req domain.CreateUserRequest) (domain.User, error) {
	company, err := parseID(companyID)
	if err != nil {
		return domain.User{}, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, domain.ErrInvalidEmail
	}
	if len(req.Password) < 8 {
		return domain.User{}, domain.ErrInvalidPassword
	}

	role := domain.Role(strings.TrimSpace(req.Role))
	if role == "" {
		role = domain.RoleEmployee
	}
	if !role.Valid() {
		return domain.User{}, domain.ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           s.genID.Generate(),
		CompanyID:    company,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, err
	}

	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.User, error) {
	parsed, err := parseID(id)
	if err != nil {
		return domain.User{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return domain.User{}, err
	}
	if item == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, companyID string) ([]domain.User, error) {
	company, err := parseID(companyID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListByCompany(ctx, s.db, company)
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(items))
	for _, item := range items {
		users = append(users, *item)
	}
	return users, nil
}

func (s *Service) Update(ctx context.Context, companyID string, req domain.UpdateUserRequest) (domain.User, error) {
	company, err := parseID(companyID)
	if err != nil {
		return domain.User{}, err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return domain.User{}, err
	}

	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil || user.CompanyID != company {
		return domain.User{}, domain.ErrNotFound
	}

	if req.Role != nil {
		role := domain.Role(strings.TrimSpace(*req.Role))
		if !role.Valid() {
			return domain.User{}, domain.ErrInvalidRole
		}
		user.Role = role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, s.db, user); err != nil {
		return domain.User{}, err
	}
	return *user, nil
}

func (s *Service) AssignManager(ctx context.Context, companyID string, req domain.AssignManagerRequest) error {
	company, err := parseID(companyID)
	if err != nil {
		return err
	}
	managerID, err := parseID(req.ManagerID)
	if err != nil {
		return err
	}
	employeeID, err := parseID(req.EmployeeID)
	if err != nil {
		return err
	}

	manager, err := s.repo.FindByID(ctx, s.db, managerID)
	if err != nil {
		return err
	}
	employee, err := s.repo.FindByID(ctx, s.db, employeeID)
	if err != nil {
		return err
	}
	if manager == nil || employee == nil {
		return domain.ErrNotFound
	}
	if manager.CompanyID != company || employee.CompanyID != company {
		return domain.ErrCrossCompany
	}
	if manager.Role == domain.RoleEmployee {
		return domain.ErrNotManager
	}

	edge := domain.ManagerEmployee{
		ID:         s.genID.Generate(),
		ManagerID:  managerID,
		EmployeeID: employeeID,
		CompanyID:  company,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.InsertManagerEdge(ctx, s.db, &edge); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Edge already exists; reactivate it.
			return s.db.WithContext(ctx).
				Model(&domain.ManagerEmployee{}).
				Where("company_id = ? AND manager_id = ? AND employee_id = ?", company, managerID, employeeID).
				Update("is_active", true).Error
		}
		return err
	}
	return nil
}

func (s *Service) RemoveManager(ctx context.Context, companyID string, req domain.AssignManagerRequest) error {
	company, err := parseID(companyID)
	if err != nil {
		return err
	}
	managerID, err := parseID(req.ManagerID)
	if err != nil {
		return err
	}
	employeeID, err := parseID(req.EmployeeID)
	if err != nil {
		return err
	}
	return s.repo.DeactivateManagerEdge(ctx, s.db, company, managerID, employeeID)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
