package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/smallbiznis/expenseflow/internal/cache"
	"github.com/smallbiznis/expenseflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Converter converts an amount between two currency codes. Implementations
// may reach over the network; callers bound them with a context deadline.
type Converter interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}

var ErrUnavailable = errors.New("currency_service_unavailable")

var Module = fx.Module("currency",
	fx.Provide(cache.NewRateCache),
	fx.Provide(NewHTTPConverter),
)

type HTTPConverter struct {
	client *http.Client
	holder *config.WorkflowConfigHolder
	rates  cache.RateCache
	log    *zap.Logger
}

func NewHTTPConverter(holder *config.WorkflowConfigHolder, rates cache.RateCache, logger *zap.Logger) Converter {
	return &HTTPConverter{
		client: &http.Client{},
		holder: holder,
		rates:  rates,
		log:    logger.Named("currency.converter"),
	}
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

func (c *HTTPConverter) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to || from == "" || to == "" {
		return amount, nil
	}

	if rates, ok := c.rates.GetRates(from); ok {
		if rate, ok := rates[to]; ok && rate > 0 {
			return amount * rate, nil
		}
	}

	cfg := c.holder.Get().Currency
	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s", strings.TrimRight(cfg.BaseURL, "/"), from)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, ErrUnavailable
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("exchange rate lookup failed", zap.Int("status", resp.StatusCode), zap.String("base", from))
		return 0, ErrUnavailable
	}

	var payload ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, ErrUnavailable
	}

	rate, ok := payload.Rates[to]
	if !ok || rate <= 0 {
		return 0, ErrUnavailable
	}

	c.rates.SetRates(from, payload.Rates)
	return amount * rate, nil
}

// Identity always converts 1:1. It backs tests and environments without
// network access.
type Identity struct{}

func (Identity) Convert(_ context.Context, amount float64, _, _ string) (float64, error) {
	return amount, nil
}
