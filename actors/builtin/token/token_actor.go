package token

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/runtime"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
)

// Actor is a fungible token ledger.
// Balances move by direct transfer, or by a spender drawing on an allowance granted by the owner.
type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
		2:                         a.Mint,
		3:                         a.Transfer,
		4:                         a.Approve,
		5:                         a.TransferFrom,
		6:                         a.BalanceOf,
		7:                         a.Allowance,
		8:                         a.TotalSupply,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.TokenActorCodeID
}

func (a Actor) IsSingleton() bool {
	return false
}

func (a Actor) State() cbor.Er {
	return new(State)
}

var _ runtime.VMActor = Actor{}

// Names of events emitted by the token actor.
const (
	EventTransfer = "Transfer"
	EventApproval = "Approval"
)

type ConstructorParams struct {
	Minter addr.Address
	Name   string
	Symbol string
}

func (a Actor) Constructor(rt runtime.Runtime, params *ConstructorParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.InitActorAddr)
	minter := builtin.ResolveToIDAddr(rt, params.Minter)

	st, err := ConstructState(adt.AsStore(rt), minter, params.Name, params.Symbol)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to construct state")
	rt.StateCreate(st)
	return nil
}

type MintParams struct {
	To     addr.Address
	Amount abi.TokenAmount
}

func (a Actor) Mint(rt runtime.Runtime, params *MintParams) *abi.EmptyValue {
	var st State
	rt.StateReadonly(&st)
	rt.ValidateImmediateCallerIs(st.Minter)
	to := builtin.ResolveToIDAddr(rt, params.To)

	rt.StateTransaction(&st, func() {
		err := st.Mint(adt.AsStore(rt), to, params.Amount)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to mint %v to %v", params.Amount, to)
	})
	rt.EmitEvent(EventTransfer, &TransferEvent{From: rt.Receiver(), To: to, Amount: params.Amount})
	return nil
}

type TransferParams struct {
	To     addr.Address
	Amount abi.TokenAmount
}

func (a Actor) Transfer(rt runtime.Runtime, params *TransferParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	from := rt.Caller()
	to := builtin.ResolveToIDAddr(rt, params.To)

	var st State
	rt.StateTransaction(&st, func() {
		err := st.Transfer(adt.AsStore(rt), from, to, params.Amount)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to transfer %v from %v to %v", params.Amount, from, to)
	})
	builtin.ActorLog(rt, a, rtt.DEBUG, "transferred %v from %v to %v", params.Amount, from, to)
	rt.EmitEvent(EventTransfer, &TransferEvent{From: from, To: to, Amount: params.Amount})
	return nil
}

type ApproveParams struct {
	Spender addr.Address
	Amount  abi.TokenAmount
}

func (a Actor) Approve(rt runtime.Runtime, params *ApproveParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	owner := rt.Caller()
	spender := builtin.ResolveToIDAddr(rt, params.Spender)

	var st State
	rt.StateTransaction(&st, func() {
		err := st.Approve(adt.AsStore(rt), owner, spender, params.Amount)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to approve %v for %v", params.Amount, spender)
	})
	rt.EmitEvent(EventApproval, &ApprovalEvent{Owner: owner, Spender: spender, Amount: params.Amount})
	return nil
}

type TransferFromParams struct {
	From   addr.Address
	To     addr.Address
	Amount abi.TokenAmount
}

// TransferFrom moves tokens out of an owner's balance, spending the caller's allowance.
func (a Actor) TransferFrom(rt runtime.Runtime, params *TransferFromParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	spender := rt.Caller()
	from := builtin.ResolveToIDAddr(rt, params.From)
	to := builtin.ResolveToIDAddr(rt, params.To)

	var st State
	rt.StateTransaction(&st, func() {
		store := adt.AsStore(rt)
		err := st.SpendAllowance(store, from, spender, params.Amount)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to spend allowance of %v", spender)
		err = st.Transfer(store, from, to, params.Amount)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to transfer %v from %v to %v", params.Amount, from, to)
	})
	rt.EmitEvent(EventTransfer, &TransferEvent{From: from, To: to, Amount: params.Amount})
	return nil
}

func (a Actor) BalanceOf(rt runtime.Runtime, owner *addr.Address) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)

	resolved, ok := rt.ResolveAddress(*owner)
	if !ok {
		zero := abi.NewTokenAmount(0)
		return &zero
	}
	balance, err := st.BalanceOf(adt.AsStore(rt), resolved)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load balance of %v", resolved)
	return &balance
}

type AllowanceParams struct {
	Owner   addr.Address
	Spender addr.Address
}

func (a Actor) Allowance(rt runtime.Runtime, params *AllowanceParams) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)

	owner, ok1 := rt.ResolveAddress(params.Owner)
	spender, ok2 := rt.ResolveAddress(params.Spender)
	if !ok1 || !ok2 {
		zero := abi.NewTokenAmount(0)
		return &zero
	}
	allowance, err := st.Allowance(adt.AsStore(rt), owner, spender)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load allowance")
	return &allowance
}

func (a Actor) TotalSupply(rt runtime.Runtime, _ *abi.EmptyValue) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)
	return &st.Supply
}

type TransferEvent struct {
	From   addr.Address
	To     addr.Address
	Amount abi.TokenAmount
}

type ApprovalEvent struct {
	Owner   addr.Address
	Spender addr.Address
	Amount  abi.TokenAmount
}
