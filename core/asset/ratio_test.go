package asset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRatio(t *testing.T) {
	tests := []struct {
		name     string
		received int64
		promised int64
		isOne    bool
		wantErr  bool
	}{
		{name: "full return", received: 100, promised: 100, isOne: true},
		{name: "shortfall", received: 90, promised: 100, isOne: false},
		{name: "zero promised is identity", received: 50, promised: 0, isOne: true},
		{name: "surplus is clamped", received: 150, promised: 100, isOne: true},
		{name: "zero received", received: 0, promised: 100, isOne: false},
		{name: "negative received", received: -1, promised: 100, wantErr: true},
		{name: "negative promised", received: 1, promised: -100, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRatio(tt.received, tt.promised)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.isOne, r.IsOne())
		})
	}
}

func TestRatioApply(t *testing.T) {
	// 190 received of 200 promised: 95%.
	r, err := NewRatio(190, 200)
	require.NoError(t, err)

	got, err := r.Apply(80)
	require.NoError(t, err)
	require.Equal(t, int64(76), got)

	got, err = r.Apply(120)
	require.NoError(t, err)
	require.Equal(t, int64(114), got)

	// Sums exactly to the received amount for these inputs.
	require.Equal(t, int64(190), int64(76+114))
}

func TestRatioApplyFloorsTowardZero(t *testing.T) {
	// 1/3: the result must be floored, never rounded up.
	r, err := NewRatio(1, 3)
	require.NoError(t, err)

	got, err := r.Apply(100)
	require.NoError(t, err)
	require.Equal(t, int64(33), got)

	got, err = r.Apply(1)
	require.NoError(t, err)
	require.Equal(t, int64(0), got)
}

func TestRatioApplyIdentity(t *testing.T) {
	r := OneRatio()

	got, err := r.Apply(1<<62 + 12345)
	require.NoError(t, err)
	require.Equal(t, int64(1<<62+12345), got)
}

func TestRatioApplyLargeAmounts(t *testing.T) {
	// Amounts near the int64 ceiling must not overflow mid-calculation.
	r, err := NewRatio(90, 100)
	require.NoError(t, err)

	const amount = int64(9_000_000_000_000_000_000)
	got, err := r.Apply(amount)
	require.NoError(t, err)
	require.Equal(t, int64(8_100_000_000_000_000_000), got)
}

func TestRatioApplyRejectsNegative(t *testing.T) {
	r := OneRatio()
	_, err := r.Apply(-5)
	require.Error(t, err)

	var zero Ratio
	_, err = zero.Apply(5)
	require.Error(t, err)
}

func TestValidateID(t *testing.T) {
	require.NoError(t, ValidateID("0x00000000000000000000000000000000000000aa"))
	require.Error(t, ValidateID("stETH"))
	require.Error(t, ValidateID(""))
}
