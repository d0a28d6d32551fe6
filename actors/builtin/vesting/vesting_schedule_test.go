package vesting_test

import (
	"math"
	"testing"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/vesting-actors/actors/builtin/vesting"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	vmath "github.com/filecoin-project/vesting-actors/actors/util/math"
	tutil "github.com/filecoin-project/vesting-actors/support/testing"
)

const t0 = abi.ChainEpoch(1000)

type scheduleSpec struct {
	start, cliffDuration, duration, slicePeriod abi.ChainEpoch
	revocable                                   bool
	amount                                      int64
}

func (s scheduleSpec) build(t *testing.T) *vesting.VestingSchedule {
	schedule, err := vesting.NewVestingSchedule(tutil.NewIDAddr(t, 101), s.start, s.cliffDuration, s.duration,
		s.slicePeriod, s.revocable, abi.NewTokenAmount(s.amount))
	require.NoError(t, err)
	return schedule
}

func requireCode(t *testing.T, expected exitcode.ExitCode, err error) {
	require.Error(t, err)
	assert.Equal(t, expected, exitcode.Unwrap(err, exitcode.Ok), "unexpected exit code for %s", err)
}

// Compares amounts by value. Equal big integers may differ in internal representation.
func assertAmount(t testing.TB, expected, actual abi.TokenAmount, msgAndArgs ...interface{}) {
	assert.Equal(t, expected.String(), actual.String(), msgAndArgs...)
}

func vestedAt(t *testing.T, s *vesting.VestingSchedule, now abi.ChainEpoch) abi.TokenAmount {
	vested, err := s.VestedAmount(now)
	require.NoError(t, err)
	return vested
}

func releasableAt(t *testing.T, s *vesting.VestingSchedule, now abi.ChainEpoch) abi.TokenAmount {
	releasable, err := s.ReleasableAmount(now)
	require.NoError(t, err)
	return releasable
}

func TestNewVestingSchedule(t *testing.T) {
	beneficiary := tutil.NewIDAddr(t, 101)

	t.Run("computes cliff", func(t *testing.T) {
		s, err := vesting.NewVestingSchedule(beneficiary, t0, 100, 1000, 10, true, abi.NewTokenAmount(1000))
		require.NoError(t, err)
		assert.Equal(t, t0+100, s.Cliff)
		assert.Equal(t, t0+1000, s.End())
		assert.True(t, s.Released.IsZero())
		assert.True(t, s.VestedAtRevocation.IsZero())
		assert.False(t, s.Revoked)
		assert.Equal(t, vesting.StatusPending, s.Status())
	})

	for _, tc := range []struct {
		desc                                        string
		start, cliffDuration, duration, slicePeriod abi.ChainEpoch
		amount                                      abi.TokenAmount
		code                                        exitcode.ExitCode
	}{
		{"zero duration", t0, 0, 0, 1, abi.NewTokenAmount(1), exitcode.ErrIllegalArgument},
		{"negative duration", t0, 0, -5, 1, abi.NewTokenAmount(1), exitcode.ErrIllegalArgument},
		{"zero slice period", t0, 0, 100, 0, abi.NewTokenAmount(1), exitcode.ErrIllegalArgument},
		{"slice longer than duration", t0, 0, 100, 101, abi.NewTokenAmount(1), exitcode.ErrIllegalArgument},
		{"zero amount", t0, 0, 100, 1, abi.NewTokenAmount(0), exitcode.ErrIllegalArgument},
		{"negative amount", t0, 0, 100, 1, abi.NewTokenAmount(-1), exitcode.ErrIllegalArgument},
		{"negative cliff", t0, -1, 100, 1, abi.NewTokenAmount(1), exitcode.ErrIllegalArgument},
		{"negative start", -1, 0, 100, 1, abi.NewTokenAmount(1), exitcode.ErrIllegalArgument},
		{"amount beyond 256 bits", t0, 0, 100, 1, big.Add(vmath.MaxTokenAmount, big.NewInt(1)), vesting.ErrOverflow},
		{"end beyond epoch range", math.MaxInt64 - 10, 0, 100, 1, abi.NewTokenAmount(1), vesting.ErrOverflow},
		{"cliff beyond epoch range", math.MaxInt64 - 10, 100, 5, 1, abi.NewTokenAmount(1), vesting.ErrOverflow},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := vesting.NewVestingSchedule(beneficiary, tc.start, tc.cliffDuration, tc.duration, tc.slicePeriod, true, tc.amount)
			requireCode(t, tc.code, err)
		})
	}
}

func TestVestedAmount(t *testing.T) {
	t.Run("linear with unit slices", func(t *testing.T) {
		s := scheduleSpec{start: t0, duration: 1000, slicePeriod: 1, amount: 1000}.build(t)
		assertAmount(t, big.Zero(), vestedAt(t, s, 0))
		assertAmount(t, big.Zero(), vestedAt(t, s, t0))
		assertAmount(t, abi.NewTokenAmount(1), vestedAt(t, s, t0+1))
		assertAmount(t, abi.NewTokenAmount(500), vestedAt(t, s, t0+500))
		assertAmount(t, abi.NewTokenAmount(999), vestedAt(t, s, t0+999))
		assertAmount(t, abi.NewTokenAmount(1000), vestedAt(t, s, t0+1000))
		assertAmount(t, abi.NewTokenAmount(1000), vestedAt(t, s, t0+100000))
	})

	t.Run("nothing vests before the cliff", func(t *testing.T) {
		s := scheduleSpec{start: t0, cliffDuration: 100, duration: 1000, slicePeriod: 1, amount: 1000}.build(t)
		for _, now := range []abi.ChainEpoch{0, t0, t0 + 50, t0 + 99} {
			assertAmount(t, big.Zero(), vestedAt(t, s, now), "epoch %d", now)
			assertAmount(t, big.Zero(), releasableAt(t, s, now), "epoch %d", now)
		}
		// At the cliff the amount accrued since start becomes available at once.
		assertAmount(t, abi.NewTokenAmount(100), vestedAt(t, s, t0+100))
		assertAmount(t, abi.NewTokenAmount(101), vestedAt(t, s, t0+101))
	})

	t.Run("quantized to whole slices", func(t *testing.T) {
		s := scheduleSpec{start: t0, duration: 1000, slicePeriod: 100, amount: 1000}.build(t)
		assertAmount(t, big.Zero(), vestedAt(t, s, t0+99))
		for slice := abi.ChainEpoch(1); slice < 10; slice++ {
			boundary := t0 + slice*100
			expected := abi.NewTokenAmount(int64(slice) * 100)
			assertAmount(t, expected, vestedAt(t, s, boundary))
			assertAmount(t, expected, vestedAt(t, s, boundary+50))
			assertAmount(t, expected, vestedAt(t, s, boundary+99))
		}
		assertAmount(t, abi.NewTokenAmount(1000), vestedAt(t, s, t0+1000))
	})

	t.Run("duration not a multiple of slice period", func(t *testing.T) {
		s := scheduleSpec{start: t0, duration: 250, slicePeriod: 100, amount: 1000}.build(t)
		assertAmount(t, abi.NewTokenAmount(400), vestedAt(t, s, t0+100))
		assertAmount(t, abi.NewTokenAmount(800), vestedAt(t, s, t0+249))
		assertAmount(t, abi.NewTokenAmount(1000), vestedAt(t, s, t0+250))
	})

	t.Run("truncates without loss at completion", func(t *testing.T) {
		s := scheduleSpec{start: t0, duration: 3, slicePeriod: 1, amount: 7}.build(t)
		assertAmount(t, abi.NewTokenAmount(2), vestedAt(t, s, t0+1))
		assertAmount(t, abi.NewTokenAmount(4), vestedAt(t, s, t0+2))
		assertAmount(t, abi.NewTokenAmount(7), vestedAt(t, s, t0+3))
	})

	t.Run("releasable is monotonic", func(t *testing.T) {
		s := scheduleSpec{start: t0, cliffDuration: 30, duration: 997, slicePeriod: 7, amount: 123457}.build(t)
		prev := big.Zero()
		for now := t0 - 10; now <= t0+1010; now++ {
			vested := vestedAt(t, s, now)
			require.True(t, vested.GreaterThanEqual(prev), "vested decreased at %d", now)
			require.True(t, vested.LessThanEqual(s.AmountTotal))
			prev = vested
		}
		assertAmount(t, s.AmountTotal, prev)
	})

	t.Run("overflow is detected", func(t *testing.T) {
		s, err := vesting.NewVestingSchedule(tutil.NewIDAddr(t, 101), t0, 0, 10, 1, false, vmath.MaxTokenAmount)
		require.NoError(t, err)
		_, err = s.VestedAmount(t0 + 5)
		requireCode(t, vesting.ErrOverflow, err)

		// The terminal amount needs no multiplication.
		assertAmount(t, vmath.MaxTokenAmount, vestedAt(t, s, t0+10))
	})
}

func TestScheduleRelease(t *testing.T) {
	t.Run("releases up to the vested amount", func(t *testing.T) {
		s := scheduleSpec{start: t0, duration: 1000, slicePeriod: 1, amount: 1000}.build(t)
		assertAmount(t, abi.NewTokenAmount(500), releasableAt(t, s, t0+500))

		require.NoError(t, s.Release(abi.NewTokenAmount(200), t0+500))
		assertAmount(t, abi.NewTokenAmount(200), s.Released)
		assertAmount(t, abi.NewTokenAmount(300), releasableAt(t, s, t0+500))
		assert.Equal(t, vesting.StatusPartiallyReleased, s.Status())
		assertAmount(t, abi.NewTokenAmount(800), s.Outstanding())

		require.NoError(t, s.Release(abi.NewTokenAmount(300), t0+500))
		assertAmount(t, big.Zero(), releasableAt(t, s, t0+500))
	})

	t.Run("rejects more than releasable without truncating", func(t *testing.T) {
		s := scheduleSpec{start: t0, duration: 1000, slicePeriod: 1, amount: 1000}.build(t)
		requireCode(t, vesting.ErrExceedsReleasable, s.Release(abi.NewTokenAmount(501), t0+500))
		assert.True(t, s.Released.IsZero())
	})

	t.Run("rejects release before the cliff", func(t *testing.T) {
		s := scheduleSpec{start: t0, cliffDuration: 100, duration: 1000, slicePeriod: 1, amount: 1000}.build(t)
		requireCode(t, vesting.ErrExceedsReleasable, s.Release(abi.NewTokenAmount(1), t0+50))
		require.NoError(t, s.Release(abi.NewTokenAmount(1), t0+101))
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		s := scheduleSpec{start: t0, duration: 1000, slicePeriod: 1, amount: 1000}.build(t)
		requireCode(t, exitcode.ErrIllegalArgument, s.Release(abi.NewTokenAmount(0), t0+500))
		requireCode(t, exitcode.ErrIllegalArgument, s.Release(abi.NewTokenAmount(-1), t0+500))
	})

	t.Run("fully released", func(t *testing.T) {
		s := scheduleSpec{start: t0, duration: 1000, slicePeriod: 1, amount: 1000}.build(t)
		require.NoError(t, s.Release(abi.NewTokenAmount(1000), t0+2000))
		assert.Equal(t, vesting.StatusFullyReleased, s.Status())
		outstanding := s.Outstanding()
		assert.True(t, outstanding.IsZero())
		requireCode(t, vesting.ErrExceedsReleasable, s.Release(abi.NewTokenAmount(1), t0+3000))
	})
}

func TestScheduleRevoke(t *testing.T) {
	t.Run("freezes vesting at revocation", func(t *testing.T) {
		s := scheduleSpec{start: t0, duration: 1000, slicePeriod: 1, revocable: true, amount: 1000}.build(t)
		unvested, err := s.Revoke(t0 + 300)
		require.NoError(t, err)
		assertAmount(t, abi.NewTokenAmount(700), unvested)
		assert.True(t, s.Revoked)
		assertAmount(t, abi.NewTokenAmount(300), s.VestedAtRevocation)
		assert.Equal(t, vesting.StatusRevoked, s.Status())
		assertAmount(t, abi.NewTokenAmount(300), s.ReservationCap())

		for _, now := range []abi.ChainEpoch{t0 + 300, t0 + 301, t0 + 999, t0 + 5000} {
			assertAmount(t, abi.NewTokenAmount(300), releasableAt(t, s, now), "epoch %d", now)
		}
	})

	t.Run("vested remainder stays releasable until settled", func(t *testing.T) {
		s := scheduleSpec{start: t0, duration: 1000, slicePeriod: 1, revocable: true, amount: 1000}.build(t)
		require.NoError(t, s.Release(abi.NewTokenAmount(100), t0+100))
		unvested, err := s.Revoke(t0 + 300)
		require.NoError(t, err)
		assertAmount(t, abi.NewTokenAmount(700), unvested)
		assertAmount(t, abi.NewTokenAmount(200), s.Outstanding())

		requireCode(t, vesting.ErrExceedsReleasable, s.Release(abi.NewTokenAmount(201), t0+900))
		require.NoError(t, s.Release(abi.NewTokenAmount(200), t0+900))
		assert.True(t, s.Settled())
		requireCode(t, vesting.ErrScheduleSettled, s.Release(abi.NewTokenAmount(1), t0+900))
	})

	t.Run("revoked before the cliff is settled at once", func(t *testing.T) {
		s := scheduleSpec{start: t0, cliffDuration: 100, duration: 1000, slicePeriod: 1, revocable: true, amount: 1000}.build(t)
		unvested, err := s.Revoke(t0 + 50)
		require.NoError(t, err)
		assertAmount(t, abi.NewTokenAmount(1000), unvested)
		assert.True(t, s.Settled())
		requireCode(t, vesting.ErrScheduleSettled, s.Release(abi.NewTokenAmount(1), t0+500))
	})

	t.Run("revoked after completion frees nothing", func(t *testing.T) {
		s := scheduleSpec{start: t0, duration: 1000, slicePeriod: 1, revocable: true, amount: 1000}.build(t)
		unvested, err := s.Revoke(t0 + 1500)
		require.NoError(t, err)
		assert.True(t, unvested.IsZero())
		assertAmount(t, abi.NewTokenAmount(1000), releasableAt(t, s, t0+1500))
	})

	t.Run("irrevocable", func(t *testing.T) {
		s := scheduleSpec{start: t0, duration: 1000, slicePeriod: 1, revocable: false, amount: 1000}.build(t)
		_, err := s.Revoke(t0 + 300)
		requireCode(t, vesting.ErrNotRevocable, err)
		assert.False(t, s.Revoked)
	})

	t.Run("only once", func(t *testing.T) {
		s := scheduleSpec{start: t0, duration: 1000, slicePeriod: 1, revocable: true, amount: 1000}.build(t)
		_, err := s.Revoke(t0 + 300)
		require.NoError(t, err)
		_, err = s.Revoke(t0 + 400)
		requireCode(t, vesting.ErrAlreadyRevoked, err)
		assertAmount(t, abi.NewTokenAmount(300), s.VestedAtRevocation)
	})
}

func TestScheduleStatusNames(t *testing.T) {
	assert.Equal(t, "Pending", vesting.StatusPending.String())
	assert.Equal(t, "PartiallyReleased", vesting.StatusPartiallyReleased.String())
	assert.Equal(t, "FullyReleased", vesting.StatusFullyReleased.String())
	assert.Equal(t, "Revoked", vesting.StatusRevoked.String())
	assert.Equal(t, "Unknown", vesting.ScheduleStatus(99).String())
}
