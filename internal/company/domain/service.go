package domain

import (
	"context"
	"errors"
)

type CreateCompanyRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type Service interface {
	Create(ctx context.Context, req CreateCompanyRequest) (Company, error)
	GetByID(ctx context.Context, id string) (Company, error)
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNotFound        = errors.New("not_found")
)
