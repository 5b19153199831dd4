package guard

import (
	"errors"
	"testing"

	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelledger"
	ledgerErrors "github.com/danilovkiri/dk-go-depositledger/internal/service/ledger/v1/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeBoundary(t *testing.T) {
	balance := decimal.NewFromInt(100)
	assert.NoError(t, Authorize(balance, decimal.NewFromInt(60), modelledger.MaxWithdrawalRateBps))
	assert.NoError(t, Authorize(balance, decimal.NewFromInt(1), modelledger.MaxWithdrawalRateBps))

	err := Authorize(balance, decimal.NewFromInt(61), modelledger.MaxWithdrawalRateBps)
	var limitErr *ledgerErrors.ExceedsWithdrawalLimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, "60", limitErr.Limit.String())
	assert.Equal(t, "61", limitErr.Requested.String())
}

func TestLimitFloors(t *testing.T) {
	assert.Equal(t, "0", Limit(decimal.NewFromInt(1), modelledger.MaxWithdrawalRateBps).String())
	assert.Equal(t, "5", Limit(decimal.NewFromInt(9), modelledger.MaxWithdrawalRateBps).String())
	assert.Equal(t, "0", Limit(decimal.Zero, modelledger.MaxWithdrawalRateBps).String())
	assert.Equal(t, "600000000000000000",
		Limit(decimal.RequireFromString("1000000000000000000"), modelledger.MaxWithdrawalRateBps).String())
}

func TestAuthorizeWeiScale(t *testing.T) {
	balance := decimal.RequireFromString("1000000000000000000")
	assert.NoError(t, Authorize(balance, decimal.RequireFromString("600000000000000000"), modelledger.MaxWithdrawalRateBps))
	assert.Error(t, Authorize(balance, decimal.RequireFromString("610000000000000000"), modelledger.MaxWithdrawalRateBps))
}
