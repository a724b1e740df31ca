package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/expenseflow/internal/auth/domain"
	"github.com/smallbiznis/expenseflow/internal/auth/token"
	"github.com/smallbiznis/expenseflow/internal/clock"
	companyrepository "github.com/smallbiznis/expenseflow/internal/company/repository"
	"github.com/smallbiznis/expenseflow/internal/config"
	"github.com/smallbiznis/expenseflow/internal/migration"
	userdomain "github.com/smallbiznis/expenseflow/internal/user/domain"
	userrepository "github.com/smallbiznis/expenseflow/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAuthTest(t *testing.T, name string) domain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	tokens := token.NewManager(token.Params{
		Config: config.Config{
			AppName:         "expenseflow-test",
			AuthJWTSecret:   "test-secret",
			AuthTokenTTLMin: 60,
		},
		Clock: clk,
	})

	return New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Users:     userrepository.Provide(),
		Companies: companyrepository.Provide(),
		Tokens:    tokens,
	})
}

func TestSignupValidation(t *testing.T) {
	svc := setupAuthTest(t, "auth_signup_validation")
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.SignupRequest
	}{
		{"missing company", domain.SignupRequest{Email: "a@b.test", Password: "password1"}},
		{"missing email", domain.SignupRequest{CompanyName: "Acme", Password: "password1"}},
		{"malformed email", domain.SignupRequest{CompanyName: "Acme", Email: "nope", Password: "password1"}},
		{"short password", domain.SignupRequest{CompanyName: "Acme", Email: "a@b.test", Password: "short"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tc.req)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestSignupCreatesCompanyAndAdmin(t *testing.T) {
	svc := setupAuthTest(t, "auth_signup_ok")

	session, err := svc.Signup(context.Background(), domain.SignupRequest{
		CompanyName: "Acme GmbH",
		Country:     "de",
		Email:       "Founder@Acme.Test",
		Password:    "password1",
		FirstName:   "Ada",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, session.Token)
	assert.Equal(t, userdomain.RoleAdmin, session.User.Role)
	assert.Equal(t, "founder@acme.test", session.User.Email, "email normalized to lower case")
	assert.Empty(t, session.User.PasswordHash)
	assert.True(t, session.ExpiresAt.After(session.User.CreatedAt))
}

func TestSignupDuplicates(t *testing.T) {
	svc := setupAuthTest(t, "auth_signup_dupes")
	ctx := context.Background()

	_, err := svc.Signup(ctx, domain.SignupRequest{CompanyName: "Acme", Email: "one@acme.test", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, domain.SignupRequest{CompanyName: "Acme", Email: "two@acme.test", Password: "password1"})
	assert.ErrorIs(t, err, domain.ErrCompanyExists)

	_, err = svc.Signup(ctx, domain.SignupRequest{CompanyName: "Globex", Email: "one@acme.test", Password: "password1"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	svc := setupAuthTest(t, "auth_login")
	ctx := context.Background()

	_, err := svc.Signup(ctx, domain.SignupRequest{CompanyName: "Acme", Email: "admin@acme.test", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, domain.LoginRequest{Email: "nobody@acme.test", Password: "password1"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, domain.LoginRequest{Email: "admin@acme.test", Password: "wrong-password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	session, err := svc.Login(ctx, domain.LoginRequest{Email: "ADMIN@acme.test", Password: "password1"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Empty(t, session.User.PasswordHash)
}

func TestLoginInactiveUser(t *testing.T) {
	svc := setupAuthTest(t, "auth_login_inactive")
	ctx := context.Background()

	session, err := svc.Signup(ctx, domain.SignupRequest{CompanyName: "Acme", Email: "admin@acme.test", Password: "password1"})
	require.NoError(t, err)

	impl := svc.(*Service)
	require.NoError(t, impl.db.Model(&userdomain.User{}).
		Where("id = ?", session.User.ID).
		Update("is_active", false).Error)

	_, err = svc.Login(ctx, domain.LoginRequest{Email: "admin@acme.test", Password: "password1"})
	assert.ErrorIs(t, err, domain.ErrUserInactive)
}

func TestSignupCurrencyResolution(t *testing.T) {
	cases := []struct {
		name     string
		country  string
		currency string
		want     string
	}{
		{"explicit currency wins", "DE", "chf", "CHF"},
		{"country default", "JP", "", "JPY"},
		{"unknown country falls back", "ZZ", "", "USD"},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := setupAuthTest(t, fmt.Sprintf("auth_currency_%d", i))
			session, err := svc.Signup(context.Background(), domain.SignupRequest{
				CompanyName: "Acme " + tc.name,
				Country:     tc.country,
				Currency:    tc.currency,
				Email:       fmt.Sprintf("admin%d@acme.test", i),
				Password:    "password1",
			})
			require.NoError(t, err)

			impl := svc.(*Service)
			company, ferr := impl.companies.FindByID(context.Background(), impl.db, session.User.CompanyID)
			require.NoError(t, ferr)
			require.NotNil(t, company)
			assert.Equal(t, tc.want, company.Currency)
		})
	}
}
