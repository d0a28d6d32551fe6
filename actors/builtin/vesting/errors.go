package vesting

import (
	"golang.org/x/xerrors"

	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	vmath "github.com/filecoin-project/vesting-actors/actors/util/math"
)

// Exit codes for rejections specific to vesting.
const (
	// A release requested more than the schedule's releasable amount.
	ErrExceedsReleasable = exitcode.FirstActorSpecificExitCode + iota
	// A withdrawal requested more than the unreserved balance.
	ErrExceedsWithdrawable
	// Revocation of a schedule created as irrevocable.
	ErrNotRevocable
	// Revocation of a schedule that is already revoked.
	ErrAlreadyRevoked
	// Release from a revoked schedule whose vested amount is fully released.
	ErrScheduleSettled
	// An amount or epoch computation exceeded its representable range.
	ErrOverflow
)

// Attaches the exit code matching an arithmetic failure.
// Overflow maps to ErrOverflow, underflow indicates broken accounting and maps to ErrIllegalState.
func codeArithmetic(err error, msg string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	args = append(args, err)
	switch {
	case xerrors.Is(err, vmath.ErrOverflow):
		return ErrOverflow.Wrapf(msg+": %w", args...)
	case xerrors.Is(err, vmath.ErrUnderflow):
		return exitcode.ErrIllegalState.Wrapf(msg+": %w", args...)
	default:
		return xerrors.Errorf(msg+": %w", args...)
	}
}
