package vesting

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/runtime"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
)

// Actor grants tokens held on a token ledger to beneficiaries over time.
// An administrator creates schedules against the unreserved balance, may revoke revocable
// schedules, and may withdraw whatever no schedule reserves.
type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
		2:                         a.CreateVestingSchedule,
		3:                         a.Release,
		4:                         a.Revoke,
		5:                         a.Withdraw,
		6:                         a.Deposit,
		7:                         a.TransferOwnership,
		8:                         a.GetVestingSchedule,
		9:                         a.GetWithdrawableAmount,
		10:                        a.ComputeNextVestingScheduleIDForHolder,
		11:                        a.ComputeVestingScheduleIDForAddressAndIndex,
		12:                        a.ComputeReleasableAmount,
		13:                        a.GetVestingSchedulesCountByBeneficiary,
		14:                        a.GetVestingIDAtIndex,
		15:                        a.GetVestingScheduleByAddressAndIndex,
		16:                        a.GetLastVestingScheduleForHolder,
		17:                        a.GetVestingSchedulesCount,
		18:                        a.GetVestingSchedulesTotalAmount,
		19:                        a.GetToken,
		20:                        a.GetAdmin,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.VestingActorCodeID
}

func (a Actor) IsSingleton() bool {
	return false
}

func (a Actor) State() cbor.Er {
	return new(State)
}

var _ runtime.VMActor = Actor{}

type ConstructorParams struct {
	Admin addr.Address
	Token addr.Address
}

func (a Actor) Constructor(rt runtime.Runtime, params *ConstructorParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.InitActorAddr)
	admin := builtin.ResolveToIDAddr(rt, params.Admin)
	tokenAddr := builtin.ResolveToIDAddr(rt, params.Token)

	st, err := ConstructState(adt.AsStore(rt), admin, tokenAddr)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to construct state")
	rt.StateCreate(st)
	return nil
}

type CreateVestingScheduleParams struct {
	Beneficiary   addr.Address
	Start         abi.ChainEpoch
	CliffDuration abi.ChainEpoch
	Duration      abi.ChainEpoch
	SlicePeriod   abi.ChainEpoch
	Revocable     bool
	Amount        abi.TokenAmount
}

// CreateVestingSchedule reserves tokens for a new schedule. No tokens move.
func (a Actor) CreateVestingSchedule(rt runtime.Runtime, params *CreateVestingScheduleParams) *ScheduleID {
	var st State
	rt.StateReadonly(&st)
	rt.ValidateImmediateCallerIs(st.Admin)

	schedule, err := NewVestingSchedule(builtin.ResolveToIDAddr(rt, params.Beneficiary), params.Start,
		params.CliffDuration, params.Duration, params.SlicePeriod, params.Revocable, params.Amount)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalArgument, "invalid vesting schedule")

	var id ScheduleID
	rt.StateTransaction(&st, func() {
		id, err = st.CreateSchedule(adt.AsStore(rt), schedule)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to create vesting schedule for %v", schedule.Beneficiary)
	})

	builtin.ActorLog(rt, a, rtt.INFO, "created schedule %v for %v of %v", id, schedule.Beneficiary, schedule.AmountTotal)
	rt.EmitEvent(EventScheduleCreated, &ScheduleCreatedEvent{
		ID:          id,
		Beneficiary: schedule.Beneficiary,
		Amount:      schedule.AmountTotal,
	})
	return &id
}

type ReleaseParams struct {
	ID     ScheduleID
	Amount abi.TokenAmount
}

// Release pays vested tokens to the schedule's beneficiary.
// The beneficiary or the administrator may release.
func (a Actor) Release(rt runtime.Runtime, params *ReleaseParams) *abi.EmptyValue {
	var st State
	rt.StateReadonly(&st)
	schedule, err := st.MustGetSchedule(adt.AsStore(rt), params.ID)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load schedule %v", params.ID)
	rt.ValidateImmediateCallerIs(schedule.Beneficiary, st.Admin)

	builtin.RequireParam(rt, params.Amount.Sign() > 0, "release amount %v must be positive", params.Amount)

	rt.StateTransaction(&st, func() {
		_, err = st.ReleaseFromSchedule(adt.AsStore(rt), params.ID, params.Amount, rt.CurrEpoch())
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to release %v from schedule %v", params.Amount, params.ID)
	})

	// Accounting is committed first. A failed transfer aborts the message, discarding it.
	code := rt.Send(st.Token, builtin.MethodsToken.Transfer, &token.TransferParams{
		To:     schedule.Beneficiary,
		Amount: params.Amount,
	}, big.Zero(), nil)
	builtin.RequireSuccess(rt, code, "failed to transfer %v to beneficiary %v", params.Amount, schedule.Beneficiary)

	rt.EmitEvent(EventTokensReleased, &TokensReleasedEvent{ID: params.ID, Amount: params.Amount})
	return nil
}

// Revoke stops vesting of a revocable schedule. Tokens vested so far remain releasable.
func (a Actor) Revoke(rt runtime.Runtime, id *ScheduleID) *abi.EmptyValue {
	var st State
	rt.StateReadonly(&st)
	rt.ValidateImmediateCallerIs(st.Admin)

	var unvested abi.TokenAmount
	rt.StateTransaction(&st, func() {
		var err error
		unvested, err = st.RevokeSchedule(adt.AsStore(rt), *id, rt.CurrEpoch())
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to revoke schedule %v", *id)
	})

	builtin.ActorLog(rt, a, rtt.INFO, "revoked schedule %v, unreserved %v", *id, unvested)
	rt.EmitEvent(EventScheduleRevoked, &ScheduleRevokedEvent{ID: *id})
	return nil
}

// Withdraw pays unreserved tokens to the administrator.
func (a Actor) Withdraw(rt runtime.Runtime, amount *abi.TokenAmount) *abi.EmptyValue {
	var st State
	rt.StateReadonly(&st)
	rt.ValidateImmediateCallerIs(st.Admin)

	rt.StateTransaction(&st, func() {
		err := st.Withdraw(*amount)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to withdraw %v", *amount)
	})

	code := rt.Send(st.Token, builtin.MethodsToken.Transfer, &token.TransferParams{
		To:     st.Admin,
		Amount: *amount,
	}, big.Zero(), nil)
	builtin.RequireSuccess(rt, code, "failed to transfer %v to admin %v", *amount, st.Admin)

	rt.EmitEvent(EventTokensWithdrawn, &TokensWithdrawnEvent{Amount: *amount})
	return nil
}

// Deposit pulls tokens from the caller, who must have approved this actor to spend them.
func (a Actor) Deposit(rt runtime.Runtime, amount *abi.TokenAmount) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	builtin.RequireParam(rt, amount.Sign() > 0, "deposit amount %v must be positive", *amount)

	var st State
	rt.StateReadonly(&st)
	code := rt.Send(st.Token, builtin.MethodsToken.TransferFrom, &token.TransferFromParams{
		From:   rt.Caller(),
		To:     rt.Receiver(),
		Amount: *amount,
	}, big.Zero(), nil)
	builtin.RequireSuccess(rt, code, "failed to transfer %v from %v", *amount, rt.Caller())

	rt.StateTransaction(&st, func() {
		err := st.Deposit(*amount)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to credit deposit of %v", *amount)
	})

	rt.EmitEvent(EventTokensDeposited, &TokensDepositedEvent{From: rt.Caller(), Amount: *amount})
	return nil
}

func (a Actor) TransferOwnership(rt runtime.Runtime, newAdmin *addr.Address) *abi.EmptyValue {
	var st State
	rt.StateReadonly(&st)
	rt.ValidateImmediateCallerIs(st.Admin)
	resolved := builtin.ResolveToIDAddr(rt, *newAdmin)

	rt.StateTransaction(&st, func() {
		st.Admin = resolved
	})
	builtin.ActorLog(rt, a, rtt.INFO, "ownership transferred to %v", resolved)
	return nil
}

//
// Queries
//

func (a Actor) GetVestingSchedule(rt runtime.Runtime, id *ScheduleID) *VestingSchedule {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)
	schedule, err := st.MustGetSchedule(adt.AsStore(rt), *id)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load schedule %v", *id)
	return schedule
}

func (a Actor) GetWithdrawableAmount(rt runtime.Runtime, _ *abi.EmptyValue) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)
	withdrawable := st.Withdrawable()
	return &withdrawable
}

func (a Actor) ComputeNextVestingScheduleIDForHolder(rt runtime.Runtime, holder *addr.Address) *ScheduleID {
	rt.ValidateImmediateCallerAcceptAny()
	beneficiary := builtin.ResolveToIDAddr(rt, *holder)
	var st State
	rt.StateReadonly(&st)
	id, err := st.NextScheduleID(adt.AsStore(rt), beneficiary)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to compute next schedule id for %v", beneficiary)
	return &id
}

type HolderIndexParams struct {
	Holder addr.Address
	Index  uint64
}

// ComputeVestingScheduleIDForAddressAndIndex derives an identifier without consulting state.
func (a Actor) ComputeVestingScheduleIDForAddressAndIndex(rt runtime.Runtime, params *HolderIndexParams) *ScheduleID {
	rt.ValidateImmediateCallerAcceptAny()
	id := ScheduleIDForHolder(builtin.ResolveToIDAddr(rt, params.Holder), params.Index)
	return &id
}

func (a Actor) ComputeReleasableAmount(rt runtime.Runtime, id *ScheduleID) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)
	schedule, err := st.MustGetSchedule(adt.AsStore(rt), *id)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load schedule %v", *id)
	releasable, err := schedule.ReleasableAmount(rt.CurrEpoch())
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to compute releasable amount of %v", *id)
	return &releasable
}

func (a Actor) GetVestingSchedulesCountByBeneficiary(rt runtime.Runtime, holder *addr.Address) *cbg.CborInt {
	rt.ValidateImmediateCallerAcceptAny()
	beneficiary := builtin.ResolveToIDAddr(rt, *holder)
	var st State
	rt.StateReadonly(&st)
	count, err := st.HolderScheduleCount(adt.AsStore(rt), beneficiary)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to count schedules of %v", beneficiary)
	ret := cbg.CborInt(count)
	return &ret
}

func (a Actor) GetVestingIDAtIndex(rt runtime.Runtime, index *cbg.CborInt) *ScheduleID {
	rt.ValidateImmediateCallerAcceptAny()
	builtin.RequireParam(rt, *index >= 0, "negative index %d", *index)
	var st State
	rt.StateReadonly(&st)
	id, err := st.ScheduleIDAt(adt.AsStore(rt), uint64(*index))
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load schedule id at %d", *index)
	return &id
}

func (a Actor) GetVestingScheduleByAddressAndIndex(rt runtime.Runtime, params *HolderIndexParams) *VestingSchedule {
	rt.ValidateImmediateCallerAcceptAny()
	id := ScheduleIDForHolder(builtin.ResolveToIDAddr(rt, params.Holder), params.Index)
	var st State
	rt.StateReadonly(&st)
	schedule, err := st.MustGetSchedule(adt.AsStore(rt), id)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load schedule %d of %v", params.Index, params.Holder)
	return schedule
}

func (a Actor) GetLastVestingScheduleForHolder(rt runtime.Runtime, holder *addr.Address) *VestingSchedule {
	rt.ValidateImmediateCallerAcceptAny()
	beneficiary := builtin.ResolveToIDAddr(rt, *holder)
	var st State
	rt.StateReadonly(&st)
	_, schedule, err := st.LastScheduleForHolder(adt.AsStore(rt), beneficiary)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load last schedule of %v", beneficiary)
	return schedule
}

func (a Actor) GetVestingSchedulesCount(rt runtime.Runtime, _ *abi.EmptyValue) *cbg.CborInt {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)
	count, err := st.ScheduleCount(adt.AsStore(rt))
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to count schedules")
	ret := cbg.CborInt(count)
	return &ret
}

// GetVestingSchedulesTotalAmount is the amount reserved for all schedules.
func (a Actor) GetVestingSchedulesTotalAmount(rt runtime.Runtime, _ *abi.EmptyValue) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)
	return &st.ReservedAmount
}

func (a Actor) GetToken(rt runtime.Runtime, _ *abi.EmptyValue) *addr.Address {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)
	return &st.Token
}

func (a Actor) GetAdmin(rt runtime.Runtime, _ *abi.EmptyValue) *addr.Address {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)
	return &st.Admin
}
