package math_test

import (
	"math"
	"testing"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	vmath "github.com/filecoin-project/vesting-actors/actors/util/math"
)

func TestCheckedTokenArithmetic(t *testing.T) {
	t.Run("max token amount is 2^256-1", func(t *testing.T) {
		assert.Equal(t, 256, vmath.MaxTokenAmount.BitLen())
		assert.True(t, vmath.InTokenRange(vmath.MaxTokenAmount))
		assert.False(t, vmath.InTokenRange(big.Add(vmath.MaxTokenAmount, big.NewInt(1))))
		assert.False(t, vmath.InTokenRange(big.NewInt(-1)))
	})

	t.Run("add within range", func(t *testing.T) {
		sum, err := vmath.CheckedAdd(abi.NewTokenAmount(40), abi.NewTokenAmount(2))
		require.NoError(t, err)
		assert.Equal(t, abi.NewTokenAmount(42), sum)

		sum, err = vmath.CheckedAdd(big.Sub(vmath.MaxTokenAmount, big.NewInt(1)), big.NewInt(1))
		require.NoError(t, err)
		assert.True(t, sum.Equals(vmath.MaxTokenAmount))
	})

	t.Run("add overflows", func(t *testing.T) {
		_, err := vmath.CheckedAdd(vmath.MaxTokenAmount, big.NewInt(1))
		assert.True(t, xerrors.Is(err, vmath.ErrOverflow))
	})

	t.Run("sub underflows", func(t *testing.T) {
		diff, err := vmath.CheckedSub(abi.NewTokenAmount(10), abi.NewTokenAmount(10))
		require.NoError(t, err)
		assert.True(t, diff.IsZero())

		_, err = vmath.CheckedSub(abi.NewTokenAmount(10), abi.NewTokenAmount(11))
		assert.True(t, xerrors.Is(err, vmath.ErrUnderflow))
	})

	t.Run("mul overflows", func(t *testing.T) {
		half := big.Lsh(big.NewInt(1), 128)
		_, err := vmath.CheckedMul(half, half)
		assert.True(t, xerrors.Is(err, vmath.ErrOverflow))

		p, err := vmath.CheckedMul(half, big.Sub(half, big.NewInt(1)))
		require.NoError(t, err)
		assert.Equal(t, 256, p.BitLen())
	})

	t.Run("mul div truncates", func(t *testing.T) {
		q, err := vmath.CheckedMulDiv(abi.NewTokenAmount(1000), abi.NewTokenAmount(1), abi.NewTokenAmount(3))
		require.NoError(t, err)
		assert.Equal(t, abi.NewTokenAmount(333), q)

		_, err = vmath.CheckedMulDiv(abi.NewTokenAmount(1), abi.NewTokenAmount(1), big.Zero())
		assert.Error(t, err)
	})
}

func TestCheckedAddEpochs(t *testing.T) {
	e, err := vmath.CheckedAddEpochs(100, 20)
	require.NoError(t, err)
	assert.Equal(t, abi.ChainEpoch(120), e)

	_, err = vmath.CheckedAddEpochs(math.MaxInt64, 1)
	assert.True(t, xerrors.Is(err, vmath.ErrOverflow))

	_, err = vmath.CheckedAddEpochs(math.MinInt64, -1)
	assert.True(t, xerrors.Is(err, vmath.ErrOverflow))

	e, err = vmath.CheckedAddEpochs(math.MaxInt64, 0)
	require.NoError(t, err)
	assert.Equal(t, abi.ChainEpoch(math.MaxInt64), e)
}
