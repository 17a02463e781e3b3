// Package fee computes deposit and withdrawal fees.
package fee

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pointvest/pointvest/internal/apperr"
)

// Direction is the flow a fee applies to.
type Direction string

const (
	DirectionDeposit    Direction = "deposit"
	DirectionWithdrawal Direction = "withdrawal"
)

// DefaultRate is the percentage charged when no rate is configured.
var DefaultRate = decimal.NewFromInt(15)

var hundred = decimal.NewFromInt(100)

// Quote is the outcome of applying the policy to a gross amount.
type Quote struct {
	Gross  decimal.Decimal
	Fee    decimal.Decimal
	Net    decimal.Decimal
	Rate   decimal.Decimal
	Exempt bool
}

// Describe renders the quote for transaction notes.
func (q Quote) Describe() string {
	if q.Exempt {
		return fmt.Sprintf("fee exempt, net %s", q.Net.StringFixed(2))
	}
	return fmt.Sprintf("fee %s (%s%%) deducted, net %s", q.Fee.StringFixed(2), q.Rate.String(), q.Net.StringFixed(2))
}

// Policy holds the per-direction rates and the role exemption table.
type Policy struct {
	rates  map[Direction]decimal.Decimal
	exempt map[string]bool
}

// NewPolicy builds a policy. Missing directions fall back to DefaultRate.
func NewPolicy(rates map[Direction]decimal.Decimal, exempt map[string]bool) Policy {
	p := Policy{
		rates: map[Direction]decimal.Decimal{
			DirectionDeposit:    DefaultRate,
			DirectionWithdrawal: DefaultRate,
		},
		exempt: make(map[string]bool, len(exempt)),
	}
	for dir, rate := range rates {
		p.rates[dir] = rate
	}
	for role, ok := range exempt {
		p.exempt[role] = ok
	}
	return p
}

// DefaultPolicy charges 15% in both directions and exempts admins.
func DefaultPolicy() Policy {
	return NewPolicy(nil, map[string]bool{"admin": true})
}

// Exempt reports whether the role pays no fee.
func (p Policy) Exempt(role string) bool {
	return p.exempt[role]
}

// Rate returns the configured percentage for a direction.
func (p Policy) Rate(dir Direction) (decimal.Decimal, bool) {
	rate, ok := p.rates[dir]
	return rate, ok
}

// Quote applies the policy. Fees are rounded to two decimal places.
func (p Policy) Quote(gross decimal.Decimal, role string, dir Direction) (Quote, error) {
	rate, ok := p.rates[dir]
	if !ok {
		return Quote{}, apperr.Validation("unknown fee direction %q", dir)
	}
	if gross.IsNegative() {
		return Quote{}, apperr.Validation("gross amount must not be negative")
	}
	if p.exempt[role] {
		return Quote{Gross: gross, Fee: decimal.Zero, Net: gross, Rate: decimal.Zero, Exempt: true}, nil
	}
	fee := gross.Mul(rate).Div(hundred).Round(2)
	return Quote{Gross: gross, Fee: fee, Net: gross.Sub(fee), Rate: rate}, nil
}
