package accrual

import (
	"errors"
	"testing"

	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelledger"
	ledgerErrors "github.com/danilovkiri/dk-go-depositledger/internal/service/ledger/v1/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var oneUnit = decimal.RequireFromString("1000000000000000000")

func TestInterest(t *testing.T) {
	year := modelledger.SecondsPerYear
	cases := map[string]struct {
		amount  decimal.Decimal
		elapsed uint64
		want    string
	}{
		"one full year":         {oneUnit, year, "50000000000000000"},
		"one second short":      {oneUnit, year - 1, "0"},
		"no time":               {oneUnit, 0, "0"},
		"two years":             {oneUnit, 2 * year, "100000000000000000"},
		"partial second year":   {oneUnit, 2*year - 1, "50000000000000000"},
		"floors small balances": {decimal.NewFromInt(19), year, "0"},
		"floors odd balances":   {decimal.NewFromInt(399), year, "19"},
		"zero amount":           {decimal.Zero, 10 * year, "0"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := Interest(tc.amount, tc.elapsed, modelledger.AnnualInterestRateBps)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestAccrue(t *testing.T) {
	rec := modelledger.DepositRecord{Amount: oneUnit, LastUpdate: 1000}

	updated, err := Accrue(rec, 1000+modelledger.SecondsPerYear, modelledger.AnnualInterestRateBps)
	require.NoError(t, err)
	assert.Equal(t, "1050000000000000000", updated.Amount.String())
	assert.Equal(t, 1000+modelledger.SecondsPerYear, updated.LastUpdate)

	// input is never mutated
	assert.Equal(t, oneUnit.String(), rec.Amount.String())
	assert.Equal(t, uint64(1000), rec.LastUpdate)
}

func TestAccrueZeroAmountOnlyAdvances(t *testing.T) {
	rec := modelledger.NewRecord(0)
	updated, err := Accrue(rec, 5*modelledger.SecondsPerYear, modelledger.AnnualInterestRateBps)
	require.NoError(t, err)
	assert.True(t, updated.Amount.IsZero())
	assert.Equal(t, 5*modelledger.SecondsPerYear, updated.LastUpdate)
}

func TestAccrueRejectsClockRegression(t *testing.T) {
	rec := modelledger.DepositRecord{Amount: oneUnit, LastUpdate: 500}
	_, err := Accrue(rec, 499, modelledger.AnnualInterestRateBps)
	var tsErr *ledgerErrors.InvalidTimestampError
	require.True(t, errors.As(err, &tsErr))
	assert.Equal(t, uint64(500), tsErr.LastUpdate)
	assert.Equal(t, uint64(499), tsErr.Now)
}

func TestAccrueSameTimestampIsIdempotent(t *testing.T) {
	rec := modelledger.DepositRecord{Amount: oneUnit, LastUpdate: 42}
	first, err := Accrue(rec, 42, modelledger.AnnualInterestRateBps)
	require.NoError(t, err)
	second, err := Accrue(first, 42, modelledger.AnnualInterestRateBps)
	require.NoError(t, err)
	assert.True(t, second.Amount.Equal(rec.Amount))
}
