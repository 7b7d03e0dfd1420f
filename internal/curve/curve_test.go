package curve

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/memecurve/internal/types"
)

func testParams() Params {
	return Params{
		BaseReserveVirtual:  types.Units(30),
		TokenReserveVirtual: types.Units(250_000_000),
		MaxSupply:           types.Units(1_000_000_000),
		FeeBps:              100,
		Split:               FeeSplit{ProtocolBps: 7000, CreatorBps: 2000, ReferrerBps: 1000},
	}
}

func pow2(n uint) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(1), n)
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, testParams().Validate())

	k, err := testParams().InitialK()
	require.NoError(t, err)
	want := new(uint256.Int).Mul(types.Units(30), types.Units(1_250_000_000))
	assert.Equal(t, want.Dec(), k.Dec())

	tests := []struct {
		name     string
		mutate   func(*Params)
		overflow bool
	}{
		{"zero virtual base", func(p *Params) { p.BaseReserveVirtual = types.Zero() }, false},
		{"nil max supply", func(p *Params) { p.MaxSupply = nil }, false},
		{"fee 100%", func(p *Params) { p.FeeBps = types.BpsDenominator }, false},
		{"split over 100%", func(p *Params) { p.Split.CreatorBps = 9000 }, false},
		{"above headroom", func(p *Params) { p.MaxSupply = pow2(150) }, true},
		{"product overflow", func(p *Params) { p.BaseReserveVirtual = pow2(180) }, true},
		{"sum overflow", func(p *Params) { p.MaxSupply = new(uint256.Int).Not(types.Zero()) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.overflow, errors.Is(err, types.ErrOverflow))

			_, err = New(Metadata{Index: 1}, p, nil)
			assert.Error(t, err)
		})
	}
}

func TestKReportsOverflow(t *testing.T) {
	c, err := New(Metadata{Index: 7}, testParams(), nil)
	require.NoError(t, err)

	s := c.Snapshot()
	k, err := s.K()
	require.NoError(t, err)
	initial, err := s.Params.InitialK()
	require.NoError(t, err)
	assert.Equal(t, initial.Dec(), k.Dec())

	s.State.BaseReserveReal = pow2(200)
	_, err = s.K()
	assert.ErrorIs(t, err, types.ErrOverflow)
	assert.ErrorIs(t, s.Validate(), types.ErrInvalidAmount)

	s.State.BaseReserveReal = new(uint256.Int).Not(types.Zero())
	_, err = s.K()
	assert.ErrorIs(t, err, types.ErrOverflow)
}

func TestNewRejectsOversizedSeed(t *testing.T) {
	_, err := New(Metadata{Index: 1}, testParams(), pow2(200))
	assert.ErrorIs(t, err, types.ErrInvalidAmount)

	c, err := New(Metadata{Index: 1}, testParams(), types.Units(1))
	require.NoError(t, err)
	assert.Equal(t, types.Units(1).Dec(), c.Snapshot().State.BaseReserveReal.Dec())
}

func TestCommitKeepsHeadroomAndGraduation(t *testing.T) {
	c, err := New(Metadata{Index: 3}, testParams(), nil)
	require.NoError(t, err)

	c.Lock()
	defer c.Unlock()

	next := c.SnapshotLocked().State
	next.BaseReserveReal = pow2(120)
	assert.ErrorIs(t, c.Commit(next), types.ErrInvalidAmount)
	assert.True(t, c.SnapshotLocked().State.BaseReserveReal.IsZero())

	next = c.SnapshotLocked().State
	next.Graduated = true
	require.NoError(t, c.Commit(next))

	next = c.SnapshotLocked().State
	next.Graduated = false
	assert.Error(t, c.Commit(next))
	assert.True(t, c.SnapshotLocked().State.Graduated)
}

func TestClaimantsSkipsEmptyBalances(t *testing.T) {
	a, b, z := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	s := State{Fees: map[solana.PublicKey]*uint256.Int{
		a: types.Units(1),
		b: types.Units(2),
		z: types.Zero(),
	}}

	got := s.Claimants()
	require.Len(t, got, 2)
	assert.NotContains(t, got, z)
	assert.True(t, got[0].String() < got[1].String())
}
