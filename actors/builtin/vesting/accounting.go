package vesting

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"

	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	vmath "github.com/filecoin-project/vesting-actors/actors/util/math"
)

// Balance accounting: the tokens held against the tokens reserved for schedules.
// The state's TokenBalance and ReservedAmount change only through these methods.

// Withdrawable is the balance not reserved for any schedule.
func (st *State) Withdrawable() abi.TokenAmount {
	return big.Sub(st.TokenBalance, st.ReservedAmount)
}

// Deposit credits tokens received from outside.
func (st *State) Deposit(amount abi.TokenAmount) error {
	if amount.Sign() <= 0 {
		return exitcode.ErrIllegalArgument.Wrapf("deposit amount %v must be positive", amount)
	}
	balance, err := vmath.CheckedAdd(st.TokenBalance, amount)
	if err != nil {
		return codeArithmetic(err, "deposit of %v", amount)
	}
	st.TokenBalance = balance
	return nil
}

// Withdraw debits unreserved tokens paid to the administrator.
func (st *State) Withdraw(amount abi.TokenAmount) error {
	if amount.Sign() <= 0 {
		return exitcode.ErrIllegalArgument.Wrapf("withdrawal amount %v must be positive", amount)
	}
	if withdrawable := st.Withdrawable(); amount.GreaterThan(withdrawable) {
		return ErrExceedsWithdrawable.Wrapf("requested %v exceeds withdrawable %v", amount, withdrawable)
	}
	balance, err := vmath.CheckedSub(st.TokenBalance, amount)
	if err != nil {
		return codeArithmetic(err, "withdrawal of %v", amount)
	}
	st.TokenBalance = balance
	return nil
}

// Earmarks unreserved tokens for a new schedule.
func (st *State) reserve(amount abi.TokenAmount) error {
	if withdrawable := st.Withdrawable(); amount.GreaterThan(withdrawable) {
		return exitcode.ErrInsufficientFunds.Wrapf("schedule amount %v exceeds withdrawable %v", amount, withdrawable)
	}
	reserved, err := vmath.CheckedAdd(st.ReservedAmount, amount)
	if err != nil {
		return codeArithmetic(err, "reservation of %v", amount)
	}
	st.ReservedAmount = reserved
	return nil
}

// Returns reserved tokens to the withdrawable balance.
func (st *State) unreserve(amount abi.TokenAmount) error {
	reserved, err := vmath.CheckedSub(st.ReservedAmount, amount)
	if err != nil {
		return codeArithmetic(err, "unreservation of %v", amount)
	}
	st.ReservedAmount = reserved
	return nil
}

// Pays reserved tokens out of the balance.
func (st *State) payOutReserved(amount abi.TokenAmount) error {
	if err := st.unreserve(amount); err != nil {
		return err
	}
	balance, err := vmath.CheckedSub(st.TokenBalance, amount)
	if err != nil {
		return codeArithmetic(err, "payout of %v", amount)
	}
	st.TokenBalance = balance
	return nil
}
