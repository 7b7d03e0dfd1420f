package pricing

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/memecurve/internal/curve"
	"github.com/rovshanmuradov/memecurve/internal/types"
)

var (
	virtualBase = types.Units(100)
	maxSupply   = types.Units(1_000_000_000)
)

func newSnapshot(t *testing.T, feeBps uint64, virtualToken, seed *uint256.Int) curve.Snapshot {
	t.Helper()
	c, err := curve.New(curve.Metadata{Index: 1, Name: "Meme 0", Symbol: "MEME0"}, curve.Params{
		BaseReserveVirtual:  virtualBase,
		TokenReserveVirtual: virtualToken,
		MaxSupply:           maxSupply,
		FeeBps:              feeBps,
		Split:               curve.FeeSplit{CreatorBps: 2000, ReferrerBps: 1000},
	}, seed)
	require.NoError(t, err)
	return c.Snapshot()
}

func applyBuy(s curve.Snapshot, r BuyResult) curve.Snapshot {
	s.State.BaseReserveReal = r.NewBaseReserveReal
	s.State.TokenReserveReal = r.NewTokenReserveReal
	if r.Graduates {
		s.State.Graduated = true
	}
	return s
}

func applySell(s curve.Snapshot, r SellResult) curve.Snapshot {
	s.State.BaseReserveReal = r.NewBaseReserveReal
	s.State.TokenReserveReal = r.NewTokenReserveReal
	return s
}

func TestBuySingleTradeMatchesFormula(t *testing.T) {
	s := newSnapshot(t, 100, nil, nil)
	x := types.Units(10)

	res, err := QuoteBuy(s, x, false)
	require.NoError(t, err)

	// tokenOut = S - ceil(V*S / (V + X*(1-f)))
	v, S := virtualBase.ToBig(), maxSupply.ToBig()
	net := new(big.Int).Sub(x.ToBig(), new(big.Int).Div(x.ToBig(), big.NewInt(100)))
	num := new(big.Int).Mul(v, S)
	den := new(big.Int).Add(v, net)
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	want := new(big.Int).Sub(S, q)

	assert.Equal(t, want.String(), res.TokenOut.Dec())
	assert.Equal(t, types.Units(10).Dec(), res.BaseIn.Dec())
	assert.True(t, res.Refund.IsZero())
	assert.Equal(t, types.MustParseUnits("0.1").Dec(), res.Fee.Total.Dec())
	assert.Equal(t, types.MustParseUnits("9.9").Dec(), res.NewBaseReserveReal.Dec())
	assert.False(t, res.Graduates)
}

func TestBuyRejectsSlippageAndDeadline(t *testing.T) {
	s := newSnapshot(t, 100, nil, nil)
	now := time.Unix(1_700_000_000, 0)

	quote, err := QuoteBuy(s, types.Units(1), false)
	require.NoError(t, err)

	_, err = Buy(s, BuyParams{
		BaseIn:      types.Units(1),
		MinTokenOut: new(uint256.Int).AddUint64(quote.TokenOut, 1),
		Now:         now,
	})
	assert.True(t, errors.Is(err, types.ErrSlippageExceeded))

	_, err = Buy(s, BuyParams{
		BaseIn:      types.Units(1),
		MinTokenOut: quote.TokenOut,
		Deadline:    now.Add(-time.Second),
		Now:         now,
	})
	assert.True(t, errors.Is(err, types.ErrExpired))

	res, err := Buy(s, BuyParams{
		BaseIn:      types.Units(1),
		MinTokenOut: quote.TokenOut,
		Deadline:    now,
		Now:         now,
	})
	require.NoError(t, err)
	assert.Equal(t, quote.TokenOut.Dec(), res.TokenOut.Dec())
}

func TestZeroFeeRoundTrip(t *testing.T) {
	amounts := []string{"0.000001", "1", "10", "99.5", "1000", "250000"}
	for _, a := range amounts {
		t.Run(a, func(t *testing.T) {
			s := newSnapshot(t, 0, nil, nil)
			in := types.MustParseUnits(a)

			buy, err := QuoteBuy(s, in, false)
			require.NoError(t, err)
			s = applyBuy(s, buy)

			sell, err := QuoteSell(s, buy.TokenOut)
			require.NoError(t, err)

			assert.False(t, sell.BaseOut.Gt(in), "curve paid out more than it received")
			diff := new(uint256.Int).Sub(in, sell.BaseOut)
			assert.True(t, diff.Cmp(uint256.NewInt(2)) <= 0, "round trip lost %s wei", diff.Dec())
		})
	}
}

func TestSellFeeIsBaseDenominated(t *testing.T) {
	s := newSnapshot(t, 100, nil, nil)
	buy, err := QuoteBuy(s, types.Units(10), false)
	require.NoError(t, err)
	s = applyBuy(s, buy)

	sell, err := QuoteSell(s, buy.TokenOut)
	require.NoError(t, err)

	assert.Equal(t, Fee(sell.GrossOut, 100).Dec(), sell.Fee.Total.Dec())
	assert.Equal(t, new(uint256.Int).Sub(sell.GrossOut, sell.Fee.Total).Dec(), sell.BaseOut.Dec())
	assert.True(t, sell.Fee.Referrer.IsZero())
	assert.True(t, sell.NewBaseReserveReal.IsZero() || sell.NewBaseReserveReal.Lt(types.Units(1)))
}

func TestSellMoreThanCirculating(t *testing.T) {
	s := newSnapshot(t, 100, nil, nil)
	buy, err := QuoteBuy(s, types.Units(1), false)
	require.NoError(t, err)
	s = applyBuy(s, buy)

	_, err = QuoteSell(s, new(uint256.Int).AddUint64(buy.TokenOut, 1))
	assert.True(t, errors.Is(err, types.ErrInsufficientReserve))
}

func TestFloorHoldsAcrossRandomTrades(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := newSnapshot(t, 100, types.Units(300_000_000), types.MustParseUnits("0.1"))
	held := types.Zero()
	lastFloor := FloorReserve(s)

	for i := 0; i < 400 && !s.State.Graduated; i++ {
		if rng.Intn(3) > 0 || held.IsZero() {
			in := types.MustParseUnits("0.5")
			in.Mul(in, uint256.NewInt(uint64(rng.Intn(40)+1)))
			res, err := QuoteBuy(s, in, rng.Intn(2) == 0)
			require.NoError(t, err)
			s = applyBuy(s, res)
			held.Add(held, res.TokenOut)

			// selling supply out of the curve only raises the floor
			floor := FloorReserve(s)
			assert.False(t, floor.Lt(lastFloor), "step %d: floor decreased on buy", i)
			lastFloor = floor
			continue
		}

		amt := new(uint256.Int).Div(held, uint256.NewInt(uint64(rng.Intn(4)+1)))
		if amt.IsZero() {
			continue
		}
		res, err := QuoteSell(s, amt)
		require.NoError(t, err)
		s = applySell(s, res)
		held.Sub(held, amt)

		lastFloor = FloorReserve(s)
		assert.False(t, s.State.BaseReserveReal.Lt(lastFloor), "step %d: reserve below floor", i)
	}
}

func TestSellRejectedWhenReserveUnderFloor(t *testing.T) {
	s := newSnapshot(t, 100, nil, nil)
	buy, err := QuoteBuy(s, types.Units(10), false)
	require.NoError(t, err)
	s = applyBuy(s, buy)

	// резерв вдвое меньше пола: K ниже начального
	s.State.BaseReserveReal = new(uint256.Int).Div(s.State.BaseReserveReal, uint256.NewInt(2))
	require.True(t, s.State.BaseReserveReal.Lt(FloorReserve(s)))

	_, err = QuoteSell(s, types.Units(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrBelowFloor))
	assert.Contains(t, err.Error(), "< floor")
}

func TestQuotesReportOverflow(t *testing.T) {
	s := newSnapshot(t, 100, nil, nil)
	s.State.BaseReserveReal = new(uint256.Int).Lsh(uint256.NewInt(1), 200)

	_, err := QuoteBuy(s, types.Units(1), false)
	assert.True(t, errors.Is(err, types.ErrOverflow))
	_, err = BuyExactOut(s, types.Units(1))
	assert.True(t, errors.Is(err, types.ErrOverflow))
	_, err = SellExactOut(s, types.Units(1))
	assert.True(t, errors.Is(err, types.ErrOverflow))

	// без комиссии вход целиком ложится в B и переполняет его
	s = newSnapshot(t, 0, nil, nil)
	all := new(uint256.Int).Not(types.Zero())
	_, err = QuoteBuy(s, all, false)
	assert.True(t, errors.Is(err, types.ErrInvalidAmount), "got %v", err)
}

func TestBuyExactRemainingGraduates(t *testing.T) {
	s := newSnapshot(t, 100, types.Units(250_000_000), nil)
	remaining := s.State.TokenReserveReal.Clone()

	need, err := BuyExactOut(s, remaining)
	require.NoError(t, err)

	res, err := QuoteBuy(s, need, false)
	require.NoError(t, err)
	assert.True(t, res.Graduates)
	assert.Equal(t, remaining.Dec(), res.TokenOut.Dec())
	assert.True(t, res.NewTokenReserveReal.IsZero())
	assert.True(t, res.Refund.IsZero())

	// overpaying clamps to the remaining reserve and refunds the excess
	over := new(uint256.Int).Add(need, types.Units(1))
	res, err = QuoteBuy(s, over, false)
	require.NoError(t, err)
	assert.True(t, res.Graduates)
	assert.Equal(t, remaining.Dec(), res.TokenOut.Dec())
	assert.Equal(t, types.Units(1).Dec(), res.Refund.Dec())
	assert.Equal(t, over.Dec(), new(uint256.Int).Add(res.BaseIn, res.Refund).Dec())

	s = applyBuy(s, res)
	_, err = QuoteBuy(s, types.Units(1), false)
	assert.True(t, errors.Is(err, types.ErrGraduated))
	_, err = QuoteSell(s, types.Units(1))
	assert.True(t, errors.Is(err, types.ErrGraduated))
}

func TestGraduationUnreachableWithoutVirtualTokens(t *testing.T) {
	s := newSnapshot(t, 0, nil, nil)
	res, err := QuoteBuy(s, types.Units(1_000_000_000), false)
	require.NoError(t, err)
	assert.False(t, res.Graduates)
	assert.True(t, res.NewTokenReserveReal.Gt(types.Zero()))
}

func TestExactOutInverses(t *testing.T) {
	s := newSnapshot(t, 100, nil, nil)

	want := types.Units(1_000_000)
	gross, err := BuyExactOut(s, want)
	require.NoError(t, err)
	buy, err := QuoteBuy(s, gross, false)
	require.NoError(t, err)
	assert.False(t, buy.TokenOut.Lt(want))

	s = applyBuy(s, buy)
	base := types.MustParseUnits("0.05")
	tokens, err := SellExactOut(s, base)
	require.NoError(t, err)
	sell, err := QuoteSell(s, tokens)
	require.NoError(t, err)
	assert.False(t, sell.BaseOut.Lt(base))

	_, err = SellExactOut(s, types.Units(1000))
	assert.True(t, errors.Is(err, types.ErrInsufficientReserve))
}

func TestSplitFee(t *testing.T) {
	split := curve.FeeSplit{ProtocolBps: 7000, CreatorBps: 2000, ReferrerBps: 1000}

	with := SplitFee(uint256.NewInt(1000), split, true)
	assert.Equal(t, uint64(100), with.Referrer.Uint64())
	assert.Equal(t, uint64(200), with.Creator.Uint64())
	assert.Equal(t, uint64(700), with.Protocol.Uint64())

	without := SplitFee(uint256.NewInt(1000), split, false)
	assert.True(t, without.Referrer.IsZero())
	assert.Equal(t, uint64(800), without.Protocol.Uint64())
}

func TestPrices(t *testing.T) {
	s := newSnapshot(t, 100, nil, nil)
	// 100 base over 1e9 tokens
	assert.Equal(t, "100000000000", FloorPrice(s).Dec())
	assert.Equal(t, FloorPrice(s).Dec(), MarketPrice(s).Dec())
	assert.True(t, FloorReserve(s).IsZero())

	buy, err := QuoteBuy(s, types.Units(10), false)
	require.NoError(t, err)
	s = applyBuy(s, buy)
	assert.True(t, MarketPrice(s).Gt(FloorPrice(s)))
	assert.False(t, s.State.BaseReserveReal.Lt(FloorReserve(s)))
}
