// Package currency normalizes arbitrary-currency amounts into a company's
// base currency. Normalization is a display aid: it degrades softly and is
// never a blocking dependency for workflow transitions.
package currency

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/expenseflow/expenseflow/internal/application/port"
	"github.com/expenseflow/expenseflow/internal/domain/apperr"
)

// RateTable is a point-in-time rate lookup: rate = table[from][to].
type RateTable map[string]map[string]decimal.Decimal

// Convert converts amount between currencies using the table, rounding to
// two decimal places with half-up rounding. Identity conversions return the
// amount unchanged with an implicit rate of 1 and never touch the table.
func Convert(amount decimal.Decimal, from, to string, rates RateTable) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}

	rate, ok := rates[from][to]
	if !ok {
		return decimal.Zero, apperr.ExternalUnavailable("no rate from %s to %s", from, to)
	}

	return amount.Mul(rate).Round(2), nil
}

// Normalizer converts amounts through a RateSource, caching rates per
// (from, to, day). Safe for concurrent use.
type Normalizer struct {
	source port.RateSource

	mu    sync.RWMutex
	cache map[rateKey]decimal.Decimal
}

type rateKey struct {
	from, to, day string
}

// NewNormalizer creates a Normalizer backed by the given rate source.
func NewNormalizer(source port.RateSource) *Normalizer {
	return &Normalizer{
		source: source,
		cache:  make(map[rateKey]decimal.Decimal),
	}
}

// Normalize converts amount into the target currency as of the given time.
// On rate-source failure it returns the original amount and ok=false; the
// caller should display the original amount tagged with its own currency.
func (n *Normalizer) Normalize(ctx context.Context, amount decimal.Decimal, from, to string, asOf time.Time) (decimal.Decimal, bool) {
	if from == to {
		return amount, true
	}

	key := rateKey{from: from, to: to, day: asOf.UTC().Format("2006-01-02")}

	n.mu.RLock()
	rate, hit := n.cache[key]
	n.mu.RUnlock()

	if !hit {
		var err error
		rate, err = n.source.GetRate(ctx, from, to, asOf)
		if err != nil {
			return amount, false
		}
		n.mu.Lock()
		n.cache[key] = rate
		n.mu.Unlock()
	}

	return amount.Mul(rate).Round(2), true
}
