package vesting

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"

	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	vmath "github.com/filecoin-project/vesting-actors/actors/util/math"
)

// VestingSchedule is a grant of tokens to one beneficiary that vests linearly in whole slices
// between Start and Start+Duration, with nothing vested before Cliff.
type VestingSchedule struct {
	Beneficiary addr.Address // ID address
	Cliff       abi.ChainEpoch
	Start       abi.ChainEpoch
	Duration    abi.ChainEpoch
	SlicePeriod abi.ChainEpoch
	Revocable   bool
	AmountTotal abi.TokenAmount
	Released    abi.TokenAmount
	Revoked     bool
	// Vested amount at the revocation epoch. Zero until revoked.
	VestedAtRevocation abi.TokenAmount
}

type ScheduleStatus int64

const (
	// Nothing released yet.
	StatusPending ScheduleStatus = iota
	// Some but not all of the grant released.
	StatusPartiallyReleased
	// The entire grant released.
	StatusFullyReleased
	// Revoked. Vesting is frozen at VestedAtRevocation.
	StatusRevoked
)

func (s ScheduleStatus) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusPartiallyReleased:
		return "PartiallyReleased"
	case StatusFullyReleased:
		return "FullyReleased"
	case StatusRevoked:
		return "Revoked"
	default:
		return "Unknown"
	}
}

// NewVestingSchedule validates schedule parameters and builds an unreleased, unrevoked schedule.
func NewVestingSchedule(beneficiary addr.Address, start, cliffDuration, duration, slicePeriod abi.ChainEpoch,
	revocable bool, amount abi.TokenAmount) (*VestingSchedule, error) {
	if start < 0 {
		return nil, exitcode.ErrIllegalArgument.Wrapf("negative start %d", start)
	}
	if cliffDuration < 0 {
		return nil, exitcode.ErrIllegalArgument.Wrapf("negative cliff duration %d", cliffDuration)
	}
	if duration <= 0 {
		return nil, exitcode.ErrIllegalArgument.Wrapf("duration %d must be positive", duration)
	}
	if slicePeriod < MinSlicePeriod {
		return nil, exitcode.ErrIllegalArgument.Wrapf("slice period %d must be at least %d", slicePeriod, MinSlicePeriod)
	}
	if duration < slicePeriod {
		return nil, exitcode.ErrIllegalArgument.Wrapf("duration %d shorter than slice period %d", duration, slicePeriod)
	}
	if amount.Sign() <= 0 {
		return nil, exitcode.ErrIllegalArgument.Wrapf("amount %v must be positive", amount)
	}
	if !vmath.InTokenRange(amount) {
		return nil, ErrOverflow.Wrapf("amount %v exceeds %d bits", amount, vmath.TokenAmountBits)
	}
	cliff, err := vmath.CheckedAddEpochs(start, cliffDuration)
	if err != nil {
		return nil, codeArithmetic(err, "cliff")
	}
	if _, err := vmath.CheckedAddEpochs(start, duration); err != nil {
		return nil, codeArithmetic(err, "end")
	}

	return &VestingSchedule{
		Beneficiary:        beneficiary,
		Cliff:              cliff,
		Start:              start,
		Duration:           duration,
		SlicePeriod:        slicePeriod,
		Revocable:          revocable,
		AmountTotal:        amount,
		Released:           big.Zero(),
		Revoked:            false,
		VestedAtRevocation: big.Zero(),
	}, nil
}

// End is the epoch at which the whole grant has vested.
func (s *VestingSchedule) End() abi.ChainEpoch {
	return s.Start + s.Duration
}

// VestedAmount computes the amount vested at an epoch.
// Revoked schedules report the amount vested when they were revoked, whatever the epoch.
func (s *VestingSchedule) VestedAmount(now abi.ChainEpoch) (abi.TokenAmount, error) {
	if now < s.Cliff {
		return big.Zero(), nil
	}
	if s.Revoked {
		return s.VestedAtRevocation, nil
	}
	return s.linearVested(now)
}

// Vested amount ignoring revocation.
func (s *VestingSchedule) linearVested(now abi.ChainEpoch) (abi.TokenAmount, error) {
	if now < s.Cliff || now < s.Start {
		return big.Zero(), nil
	}
	if now >= s.End() {
		return s.AmountTotal, nil
	}
	elapsed := now - s.Start
	vestedEpochs := (elapsed / s.SlicePeriod) * s.SlicePeriod
	vested, err := vmath.CheckedMulDiv(s.AmountTotal, big.NewInt(int64(vestedEpochs)), big.NewInt(int64(s.Duration)))
	if err != nil {
		return big.Zero(), codeArithmetic(err, "vested amount of %v at epoch %d", s.AmountTotal, now)
	}
	return vested, nil
}

// ReleasableAmount is the vested amount not yet released.
func (s *VestingSchedule) ReleasableAmount(now abi.ChainEpoch) (abi.TokenAmount, error) {
	vested, err := s.VestedAmount(now)
	if err != nil {
		return big.Zero(), err
	}
	releasable, err := vmath.CheckedSub(vested, s.Released)
	if err != nil {
		return big.Zero(), codeArithmetic(err, "releasable amount")
	}
	return releasable, nil
}

// ReservationCap is the most that can ever be released from the schedule.
func (s *VestingSchedule) ReservationCap() abi.TokenAmount {
	if s.Revoked {
		return s.VestedAtRevocation
	}
	return s.AmountTotal
}

// Outstanding is the amount the schedule still holds in reserve.
func (s *VestingSchedule) Outstanding() abi.TokenAmount {
	return big.Sub(s.ReservationCap(), s.Released)
}

// Settled reports whether a revoked schedule has nothing left to release.
func (s *VestingSchedule) Settled() bool {
	return s.Revoked && s.Released.GreaterThanEqual(s.VestedAtRevocation)
}

func (s *VestingSchedule) Status() ScheduleStatus {
	switch {
	case s.Revoked:
		return StatusRevoked
	case s.Released.GreaterThanEqual(s.AmountTotal):
		return StatusFullyReleased
	case s.Released.Sign() > 0:
		return StatusPartiallyReleased
	default:
		return StatusPending
	}
}

// Release records a payout of amount at epoch now.
// Rejects requests beyond the releasable amount rather than truncating them.
func (s *VestingSchedule) Release(amount abi.TokenAmount, now abi.ChainEpoch) error {
	if amount.Sign() <= 0 {
		return exitcode.ErrIllegalArgument.Wrapf("release amount %v must be positive", amount)
	}
	if s.Settled() {
		return ErrScheduleSettled.Wrapf("revoked schedule has released all %v vested", s.VestedAtRevocation)
	}
	releasable, err := s.ReleasableAmount(now)
	if err != nil {
		return err
	}
	if amount.GreaterThan(releasable) {
		return ErrExceedsReleasable.Wrapf("requested %v exceeds releasable %v", amount, releasable)
	}
	released, err := vmath.CheckedAdd(s.Released, amount)
	if err != nil {
		return codeArithmetic(err, "released")
	}
	s.Released = released
	return nil
}

// Revoke freezes vesting at epoch now and returns the unvested amount no longer owed.
func (s *VestingSchedule) Revoke(now abi.ChainEpoch) (abi.TokenAmount, error) {
	if !s.Revocable {
		return big.Zero(), ErrNotRevocable.Wrapf("schedule is not revocable")
	}
	if s.Revoked {
		return big.Zero(), ErrAlreadyRevoked.Wrapf("schedule already revoked")
	}
	vested, err := s.linearVested(now)
	if err != nil {
		return big.Zero(), err
	}
	unvested, err := vmath.CheckedSub(s.AmountTotal, vested)
	if err != nil {
		return big.Zero(), codeArithmetic(err, "unvested amount")
	}
	s.Revoked = true
	s.VestedAtRevocation = vested
	return unvested, nil
}
