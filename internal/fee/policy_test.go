package fee

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointvest/pointvest/internal/apperr"
)

func TestQuote(t *testing.T) {
	policy := NewPolicy(map[Direction]decimal.Decimal{
		DirectionDeposit:    decimal.NewFromInt(15),
		DirectionWithdrawal: decimal.NewFromInt(15),
	}, map[string]bool{"admin": true})

	tests := []struct {
		name    string
		gross   string
		role    string
		dir     Direction
		wantFee string
		wantNet string
		exempt  bool
	}{
		{name: "deposit non exempt", gross: "1000", role: "user", dir: DirectionDeposit, wantFee: "150.00", wantNet: "850.00"},
		{name: "withdrawal non exempt", gross: "100", role: "user", dir: DirectionWithdrawal, wantFee: "15.00", wantNet: "85.00"},
		{name: "exempt role", gross: "100", role: "admin", dir: DirectionWithdrawal, wantFee: "0.00", wantNet: "100.00", exempt: true},
		{name: "fee rounds to cents", gross: "10.01", role: "user", dir: DirectionDeposit, wantFee: "1.50", wantNet: "8.51"},
		{name: "zero gross", gross: "0", role: "user", dir: DirectionWithdrawal, wantFee: "0.00", wantNet: "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := policy.Quote(decimal.RequireFromString(tt.gross), tt.role, tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFee, q.Fee.StringFixed(2))
			assert.Equal(t, tt.wantNet, q.Net.StringFixed(2))
			assert.Equal(t, tt.exempt, q.Exempt)
			assert.True(t, q.Fee.Add(q.Net).Equal(q.Gross))
		})
	}
}

func TestQuoteRejectsUnknownDirection(t *testing.T) {
	_, err := DefaultPolicy().Quote(decimal.NewFromInt(10), "user", Direction("transfer"))
	require.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestQuoteRejectsNegativeGross(t *testing.T) {
	_, err := DefaultPolicy().Quote(decimal.NewFromInt(-1), "user", DirectionDeposit)
	require.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestPolicyDefaults(t *testing.T) {
	p := NewPolicy(map[Direction]decimal.Decimal{DirectionDeposit: decimal.NewFromInt(5)}, nil)

	rate, ok := p.Rate(DirectionDeposit)
	require.True(t, ok)
	assert.Equal(t, "5", rate.String())

	rate, ok = p.Rate(DirectionWithdrawal)
	require.True(t, ok)
	assert.True(t, rate.Equal(DefaultRate))
	assert.False(t, p.Exempt("admin"))
	assert.True(t, DefaultPolicy().Exempt("admin"))
}

func TestQuoteDescribe(t *testing.T) {
	q, err := DefaultPolicy().Quote(decimal.NewFromInt(1000), "user", DirectionDeposit)
	require.NoError(t, err)
	assert.Equal(t, "fee 150.00 (15%) deducted, net 850.00", q.Describe())

	q, err = DefaultPolicy().Quote(decimal.NewFromInt(1000), "admin", DirectionDeposit)
	require.NoError(t, err)
	assert.Equal(t, "fee exempt, net 1000.00", q.Describe())
}
