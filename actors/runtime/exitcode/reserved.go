package exitcode

import (
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/xerrors"
)

type ExitCode int64

func (x ExitCode) IsSuccess() bool {
	return x == Ok
}

func (x ExitCode) IsError() bool {
	return !x.IsSuccess()
}

// Whether an exit code indicates a message send failure.
// A send failure means that the caller's CallSeqNum is not incremented and the caller has not paid
// gas fees for the message (because the caller doesn't exist or can't afford it).
// A receipt with send failure does not indicate that the message (or another one carrying the same CallSeqNum)
// could not apply in the future, against a different state.
func (x ExitCode) IsSendFailure() bool {
	return x == SysErrSenderInvalid || x == SysErrSenderStateInvalid
}

// A non-canonical string representation for human inspection.
func (x ExitCode) String() string {
	name, ok := names[x]
	if ok {
		return fmt.Sprintf("%s(%d)", name, x)
	}
	return strconv.FormatInt(int64(x), 10)
}

// Implement error to trigger Go compiler checking of exit code return values.
func (x ExitCode) Error() string {
	return x.String()
}

// Wrapf attaches an error message, and possibly an error, to the exit
// code.
//
//    err := ErrIllegalArgument.Wrapf("my description: %w", err)
//    exitcode.Unwrap(exitcode.ErrIllegalState, err) == exitcode.ErrIllegalArgument
func (x ExitCode) Wrapf(msg string, args ...interface{}) error {
	return &wrapped{
		exitCode: x,
		cause:    xerrors.Errorf(msg, args...),
	}
}

type wrapped struct {
	exitCode ExitCode
	cause    error
}

func (w *wrapped) String() string {
	return w.Error()
}

func (w *wrapped) Error() string {
	// Don't include the exit code. That will be handled by the runtime and
	// this error has likely been wrapped multiple times.
	return w.cause.Error()
}

// implements the interface required by errors.As
func (w *wrapped) As(target interface{}) bool {
	return errors.As(w.exitCode, target) || errors.As(w.cause, target)
}

// implements the interface required by errors.Is
func (w *wrapped) Is(target error) bool {
	if _, ok := target.(ExitCode); ok {
		// If the target is an exit code, make sure we shadow lower exit
		// codes.
		return w.exitCode == target
	}
	return errors.Is(w.cause, target)
}

// Unwrap extracts an exit code from an error, defaulting to the passed default
// exit code.
//
//    err := ErrIllegalState.WithContext("my description: %w", err)
//    exitcode.Unwrap(exitcode.ErrIllegalArgument, err) == exitcode.ErrIllegalState
func Unwrap(err error, defaultExitCode ExitCode) (code ExitCode) {
	if errors.As(err, &code) {
		return code
	}
	return defaultExitCode
}

const (
	Ok = ExitCode(0)
	// None of the system error codes are used by actors; they are raised by the VM only.

	// Indicates that the actor identified as the sender of a message is not valid as a message sender:
	// - not present in the state tree
	// - not an account actor (for top-level messages)
	// - code CID is not found or invalid
	// (not found in the state tree, not an account, has no code).
	SysErrSenderInvalid = ExitCode(1)

	// Indicates that the sender of a message is not in a state to send the message:
	// - invocation out of sequence (mismatched CallSeqNum)
	// - insufficient funds to cover execution
	SysErrSenderStateInvalid = ExitCode(2)

	// Indicates failure to find a method in an actor.
	SysErrInvalidMethod = ExitCode(3)

	// Indicates the message receiver trapped (panicked).
	SysErrIllegalInstruction = ExitCode(4)

	// Indicates that the receiver of a message is not valid (and cannot be implicitly created).
	SysErrInvalidReceiver = ExitCode(5)

	// Indicates that a message sender was not in a state to send the message,
	// including attempting to transfer value it does not have.
	SysErrInsufficientFunds = ExitCode(6)

	// Indicates message execution (including subcalls) used more gas than the specified limit.
	SysErrOutOfGas = ExitCode(7)

	// Indicates a message execution is forbidden for the caller by runtime caller validation.
	SysErrForbidden = ExitCode(8)

	// Indicates actor code performed a disallowed operation. Disallowed operations include:
	// - mutating state outside of a state acquisition block
	// - failing to invoke caller validation
	// - aborting with a reserved exit code (including success or a system error).
	SysErrorIllegalActor = ExitCode(9)

	// Indicates an invalid argument passed to a runtime method.
	SysErrorIllegalArgument = ExitCode(10)

	// Indicates an object failed to de/serialize for storage.
	SysErrSerialization = ExitCode(11)

	// Reserved exit codes, do not use.
	SysErrorReserved3 = ExitCode(12)
	SysErrorReserved4 = ExitCode(13)
	SysErrorReserved5 = ExitCode(14)

	// Indicates something broken within the VM.
	SysErrInternal = ExitCode(15)
)

// The initial range of exit codes is reserved for system errors.
// Actors may define codes starting with this one.
const FirstActorErrorCode = ExitCode(16)
