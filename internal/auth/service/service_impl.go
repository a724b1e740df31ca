package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/expenseflow/internal/auth/domain"
	"github.com/smallbiznis/expenseflow/internal/auth/token"
	"github.com/smallbiznis/expenseflow/internal/clock"
	companydomain "github.com/smallbiznis/expenseflow/internal/company/domain"
	userdomain "github.com/smallbiznis/expenseflow/internal/user/domain"
	"github.com/smallbiznis/expenseflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// countryCurrencies maps signup countries to a default company currency.
// An explicit currency in the request always wins.
var countryCurrencies = map[string]string{
	"US": "USD",
	"GB": "GBP",
	"DE": "EUR",
	"FR": "EUR",
	"ES": "EUR",
	"NL": "EUR",
	"IN": "INR",
	"ID": "IDR",
	"SG": "SGD",
	"JP": "JPY",
	"AU": "AUD",
	"CA": "CAD",
}

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Users     userdomain.Repository
	Companies companydomain.Repository
	Tokens    *token.Manager
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	users     userdomain.Repository
	companies companydomain.Repository
	tokens    *token.Manager
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("auth.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		users:     p.Users,
		companies: p.Companies,
		tokens:    p.Tokens,
	}
}

// Signup creates the company and its first admin in one transaction. The
// flow mirrors first-run onboarding: there is no invite path for the
// initial user.
func (s *Service) Signup(ctx context.Context, req domain.SignupRequest) (domain.Session, error) {
	companyName := strings.TrimSpace(req.CompanyName)
	email := normalizeEmail(req.Email)
	if companyName == "" || email == "" || !strings.Contains(email, "@") {
		return domain.Session{}, domain.ErrInvalidRequest
	}
	if len(req.Password) < 8 {
		return domain.Session{}, domain.ErrInvalidRequest
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Session{}, err
	}

	now := s.clock.Now()
	company := companydomain.Company{
		ID:        s.genID.Generate(),
		Name:      companyName,
		Currency:  s.resolveCurrency(req),
		CreatedAt: now,
		UpdatedAt: now,
	}
	admin := userdomain.User{
		ID:           s.genID.Generate(),
		CompanyID:    company.ID,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         userdomain.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.companies.Insert(ctx, tx, &company); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrCompanyExists
			}
			return err
		}
		if err := s.users.Insert(ctx, tx, &admin); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrEmailTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}

	s.log.Info("company signed up",
		zap.String("company_id", company.ID.String()),
		zap.String("admin_id", admin.ID.String()),
		zap.String("currency", company.Currency),
	)

	return s.session(admin)
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.Session, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, s.db, email)
	if err != nil {
		return domain.Session{}, err
	}
	if user == nil {
		return domain.Session{}, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return domain.Session{}, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return domain.Session{}, domain.ErrUserInactive
	}

	return s.session(*user)
}

func (s *Service) Logout(ctx context.Context, tokenString string) error {
	if err := s.tokens.Revoke(ctx, tokenString); err != nil {
		return domain.ErrInvalidToken
	}
	return nil
}

func (s *Service) Verify(ctx context.Context, tokenString string) (domain.Identity, error) {
	claims, err := s.tokens.Verify(ctx, tokenString)
	if err != nil {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	return domain.Identity{
		UserID:    claims.UserID,
		CompanyID: claims.CompanyID,
		Role:      claims.Role,
	}, nil
}

func (s *Service) session(user userdomain.User) (domain.Session, error) {
	signed, expiresAt, err := s.tokens.Issue(token.Claims{
		UserID:    user.ID.String(),
		CompanyID: user.CompanyID.String(),
		Role:      string(user.Role),
	})
	if err != nil {
		return domain.Session{}, err
	}

	user.PasswordHash = ""
	return domain.Session{
		Token:     signed,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

func (s *Service) resolveCurrency(req domain.SignupRequest) string {
	if currency := strings.ToUpper(strings.TrimSpace(req.Currency)); currency != "" {
		return currency
	}
	if currency, ok := countryCurrencies[strings.ToUpper(strings.TrimSpace(req.Country))]; ok {
		return currency
	}
	return "USD"
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
