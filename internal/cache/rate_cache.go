package cache

import (
	"strings"
	"time"
)

const defaultRateTTL = 10 * time.Minute

// RateCache stores exchange-rate tables per base currency so repeated
// submissions in the same currency avoid a network round trip.
type RateCache interface {
	GetRates(base string) (map[string]float64, bool)
	SetRates(base string, rates map[string]float64)
}

type rateCache struct {
	rates Cache[string, map[string]float64]
	ttl   time.Duration
}

func NewRateCache() RateCache {
	return &rateCache{
		rates: NewTTLCache[string, map[string]float64](),
		ttl:   defaultRateTTL,
	}
}

func (c *rateCache) GetRates(base string) (map[string]float64, bool) {
	return c.rates.Get(rateKey(base))
}

func (c *rateCache) SetRates(base string, rates map[string]float64) {
	if len(rates) == 0 {
		return
	}
	c.rates.Set(rateKey(base), rates, c.ttl)
}

func rateKey(base string) string {
	return strings.ToUpper(strings.TrimSpace(base))
}
