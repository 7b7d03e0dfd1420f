package quote

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/memecurve/internal/curve"
	"github.com/rovshanmuradov/memecurve/internal/pricing"
	"github.com/rovshanmuradov/memecurve/internal/types"
)

func activeSnapshot(t *testing.T) curve.Snapshot {
	t.Helper()
	c, err := curve.New(curve.Metadata{Index: 1, Name: "Quote", Symbol: "QT"}, curve.Params{
		BaseReserveVirtual: types.Units(100),
		MaxSupply:          types.Units(1_000_000_000),
		FeeBps:             100,
	}, nil)
	require.NoError(t, err)
	s := c.Snapshot()

	// two holders buy in so there is something to sell
	for i := 0; i < 2; i++ {
		res, err := pricing.QuoteBuy(s, types.Units(20), false)
		require.NoError(t, err)
		s.State.BaseReserveReal = res.NewBaseReserveReal
		s.State.TokenReserveReal = res.NewTokenReserveReal
	}
	return s
}

func TestToleranceValidation(t *testing.T) {
	s := activeSnapshot(t)
	for _, tol := range []uint64{0, 10_001} {
		_, err := BuyIn(s, types.Units(1), tol)
		assert.Error(t, err, "tolerance %d", tol)
	}
	_, err := BuyIn(s, types.Units(1), 10_000)
	assert.NoError(t, err)
}

func TestBuyInMatchesPricing(t *testing.T) {
	s := activeSnapshot(t)
	q, err := BuyIn(s, types.Units(5), 9800)
	require.NoError(t, err)

	res, err := pricing.QuoteBuy(s, types.Units(5), false)
	require.NoError(t, err)
	assert.Equal(t, res.TokenOut.Dec(), q.Output.Dec())
	assert.Equal(t, types.MinAmountOut(res.TokenOut, 9800).Dec(), q.MinOutput.Dec())
	assert.False(t, q.Naive.Lt(q.Output))
	assert.Equal(t, new(uint256.Int).Sub(q.Naive, q.Output).Dec(), q.Slippage.Dec())
	assert.Equal(t, types.MustParseUnits("0.05").Dec(), q.Fee.Dec())
}

func TestPriceImpactGrowsWithSize(t *testing.T) {
	s := activeSnapshot(t)
	small, err := BuyIn(s, types.Units(1), 9800)
	require.NoError(t, err)
	large, err := BuyIn(s, types.Units(100), 9800)
	require.NoError(t, err)
	assert.Greater(t, large.SlippageBps, small.SlippageBps)
	assert.Less(t, large.SlippageBps, uint64(types.BpsDenominator))
}

func TestSellInToleranceScenario(t *testing.T) {
	s := activeSnapshot(t)
	now := time.Unix(1_700_000_000, 0)
	amount := types.Units(10_000_000)

	q, err := SellIn(s, amount, 9700)
	require.NoError(t, err)
	want := new(big.Int).Mul(q.Output.ToBig(), big.NewInt(9700))
	want.Quo(want, big.NewInt(10_000))
	assert.Equal(t, want.String(), q.MinOutput.Dec())

	_, err = pricing.Sell(s, pricing.SellParams{TokenIn: amount, MinBaseOut: q.MinOutput, Now: now})
	require.NoError(t, err)

	tight, err := SellIn(s, amount, 9999)
	require.NoError(t, err)

	// another holder sells first and moves the price against us
	other, err := pricing.QuoteSell(s, types.Units(50_000_000))
	require.NoError(t, err)
	s.State.BaseReserveReal = other.NewBaseReserveReal
	s.State.TokenReserveReal = other.NewTokenReserveReal

	_, err = pricing.Sell(s, pricing.SellParams{TokenIn: amount, MinBaseOut: tight.MinOutput, Now: now})
	assert.True(t, errors.Is(err, types.ErrSlippageExceeded))
}

func TestExactOutputQuotes(t *testing.T) {
	s := activeSnapshot(t)

	tokens := types.Units(1_000_000)
	bo, err := BuyOut(s, tokens, 9900)
	require.NoError(t, err)
	assert.Equal(t, types.MinAmountOut(tokens, 9900).Dec(), bo.MinOutput.Dec())
	assert.False(t, bo.Output.Lt(bo.Naive))

	buy, err := pricing.QuoteBuy(s, bo.Output, false)
	require.NoError(t, err)
	assert.False(t, buy.TokenOut.Lt(tokens))

	base := types.Units(1)
	so, err := SellOut(s, base, 9900)
	require.NoError(t, err)
	sell, err := pricing.QuoteSell(s, so.Output)
	require.NoError(t, err)
	assert.False(t, sell.BaseOut.Lt(base))
	assert.False(t, so.Output.Lt(so.Naive))
}

func TestQuoteErrorsPassThrough(t *testing.T) {
	s := activeSnapshot(t)
	_, err := SellIn(s, types.Units(999_000_000), 9800)
	assert.True(t, errors.Is(err, types.ErrInsufficientReserve))

	s.State.Graduated = true
	_, err = BuyIn(s, types.Units(1), 9800)
	assert.True(t, errors.Is(err, types.ErrGraduated))
}
