package settlement

import (
	"fmt"
	"strings"
	"time"

	"checkmate/internal/models"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const dayLayout = "2006-01-02"

// RateLookup supplies the rate that converts one unit of currency into the
// trip's base currency on a given day.
type RateLookup interface {
	RateToBase(currency string, asOf time.Time) (decimal.Decimal, error)
}

// ToBase converts amount into the base currency at full precision. Rounding
// is left to the caller (see Round).
func ToBase(amount decimal.Decimal, currency string, asOf time.Time, lookup RateLookup) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}

	code, err := NormalizeCurrency(currency)
	if err != nil {
		return decimal.Zero, err
	}

	rate, err := lookup.RateToBase(code, asOf)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s on %s: %w", code, asOf.Format(dayLayout), err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s on %s: %w", code, asOf.Format(dayLayout), ErrRateUnavailable)
	}

	return amount.Mul(rate), nil
}

// NormalizeCurrency upper-cases an ISO 4217 code and rejects unknown ones.
func NormalizeCurrency(currency string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if money.GetCurrency(code) == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, currency)
	}
	return code, nil
}

// MinorUnits is the number of decimal places of the currency.
func MinorUnits(currency string) int32 {
	cur := money.GetCurrency(strings.ToUpper(currency))
	if cur == nil {
		return 2
	}
	return int32(cur.Fraction)
}

// MinorUnit is the smallest transactable amount of the currency.
func MinorUnit(currency string) decimal.Decimal {
	return decimal.New(1, -MinorUnits(currency))
}

// Round rounds half-to-even to the currency's minor units.
func Round(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.RoundBank(MinorUnits(currency))
}

// Display formats an amount with the currency's symbol, e.g. "$45.00".
func Display(amount decimal.Decimal, currency string) string {
	units := Round(amount, currency).Shift(MinorUnits(currency)).IntPart()
	return money.New(units, strings.ToUpper(currency)).Display()
}

type rateKey struct {
	currency string
	day      string
}

// RateTable is an in-memory RateLookup keyed by currency and calendar day.
// The base currency always converts at 1.
type RateTable struct {
	base  string
	rates map[rateKey]decimal.Decimal
}

func NewRateTable(baseCurrency string, rates []models.ExchangeRate) *RateTable {
	t := &RateTable{
		base:  strings.ToUpper(baseCurrency),
		rates: make(map[rateKey]decimal.Decimal, len(rates)),
	}
	for _, r := range rates {
		t.Set(r.Currency, r.Date, r.RateToBase)
	}
	return t
}

func (t *RateTable) Set(currency string, day time.Time, rate decimal.Decimal) {
	t.rates[rateKey{strings.ToUpper(currency), day.Format(dayLayout)}] = rate
}

func (t *RateTable) RateToBase(currency string, asOf time.Time) (decimal.Decimal, error) {
	code := strings.ToUpper(currency)
	if code == t.base {
		return decimal.NewFromInt(1), nil
	}
	rate, ok := t.rates[rateKey{code, asOf.Format(dayLayout)}]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, ErrRateUnavailable
	}
	return rate, nil
}
