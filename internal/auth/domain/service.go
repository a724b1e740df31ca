package domain

import (
	"context"
	"errors"
	"time"

	userdomain "github.com/smallbiznis/expenseflow/internal/user/domain"
)

// SignupRequest bootstraps a company together with its first admin. The
// company currency defaults from the country when left empty.
type SignupRequest struct {
	CompanyName string `json:"company_name"`
	Country     string `json:"country"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      userdomain.User `json:"user"`
}

// Identity is what a verified token carries; the HTTP layer turns it into
// the acting subject on every request.
type Identity struct {
	UserID    string
	CompanyID string
	Role      string
}

type Service interface {
	Signup(ctx context.Context, req SignupRequest) (Session, error)
	Login(ctx context.Context, req LoginRequest) (Session, error)

	// Logout blacklists the token for its remaining lifetime.
	Logout(ctx context.Context, token string) error

	// Verify parses the token, checks the blacklist and returns the caller.
	Verify(ctx context.Context, token string) (Identity, error)
}

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrCompanyExists      = errors.New("company_exists")
	ErrEmailTaken         = errors.New("email_taken")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrUserInactive       = errors.New("user_inactive")
)
