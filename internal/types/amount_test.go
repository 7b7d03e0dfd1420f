package types

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDivUp(t *testing.T) {
	pow2 := func(n uint) *uint256.Int { return new(uint256.Int).Lsh(uint256.NewInt(1), n) }

	tests := []struct {
		name    string
		x, y, d *uint256.Int
		want    string
	}{
		{"rounds up", Amount(7), Amount(3), Amount(2), "11"},
		{"exact", Amount(6), Amount(3), Amount(2), "9"},
		{"exact wide product", pow2(200), pow2(100), pow2(150), pow2(150).Dec()},
		// 2^400 не помещается в 256 бит, остаток ненулевой
		{"wide remainder", pow2(200), pow2(200), new(uint256.Int).AddUint64(pow2(200), 1),
			"1606938044258990275541962092341162602522202993782792835301376"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MulDivUp(tt.x, tt.y, tt.d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Dec())
		})
	}

	_, err := MulDivUp(Amount(1), Amount(1), Zero())
	assert.Error(t, err)
	_, err = MulDivUp(pow2(255), pow2(255), Amount(1))
	assert.Error(t, err)
}

func TestDivUpAndGrossUp(t *testing.T) {
	q, err := DivUp(Amount(10), Amount(3))
	require.NoError(t, err)
	assert.Equal(t, "4", q.Dec())

	gross, err := GrossUpBps(Units(99), 100)
	require.NoError(t, err)
	assert.Equal(t, Units(99).Dec(), new(uint256.Int).Sub(gross, ApplyBps(gross, 100)).Dec())
}
