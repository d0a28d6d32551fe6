package test

import (
	"bytes"
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/builtin/vesting"
	"github.com/filecoin-project/vesting-actors/actors/puppet"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/support/vm"
)

func TestRefusedTransferScenario(t *testing.T) {
	ctx := context.Background()
	v := vm.NewVMWithBuiltins(ctx, t)
	addrs := vm.CreateAccounts(t, v, 2, big.Zero())
	admin, alice := addrs[0], addrs[1]

	// The puppet stands in for the token ledger.
	ledger := vm.CreatePuppet(t, v)
	vestingAddr := vm.CreateVesting(t, v, admin, ledger)
	v.SetEpoch(t0)

	deposit := abi.NewTokenAmount(1000)
	vm.ApplyOk(t, v, admin, vestingAddr, big.Zero(), builtin.MethodsVesting.Deposit, &deposit)

	ret := vm.ApplyOk(t, v, admin, vestingAddr, big.Zero(), builtin.MethodsVesting.CreateVestingSchedule, &vesting.CreateVestingScheduleParams{
		Beneficiary: alice,
		Start:       t0,
		Duration:    1000,
		SlicePeriod: 1,
		Amount:      abi.NewTokenAmount(1000),
	})
	id := *ret.(*vesting.ScheduleID)

	v.SetEpoch(t0 + 500)
	refuse := cbg.CborInt(exitcode.ErrInsufficientFunds)
	vm.ApplyOk(t, v, admin, ledger, big.Zero(), puppet.MethodsPuppet.SetAbortCode, &refuse)

	release := &vesting.ReleaseParams{ID: id, Amount: abi.NewTokenAmount(200)}
	vm.ApplyCode(t, v, alice, vestingAddr, big.Zero(), builtin.MethodsVesting.Release, release, exitcode.ErrInsufficientFunds)
	vm.ExpectInvocation{
		To:       vestingAddr,
		Method:   builtin.MethodsVesting.Release,
		Exitcode: exitcode.ErrInsufficientFunds,
		From:     vm.ExpectAddress(alice),
		SubInvocations: []vm.ExpectInvocation{{
			To:       ledger,
			Method:   builtin.MethodsToken.Transfer,
			Exitcode: exitcode.ErrInsufficientFunds,
			Params:   vm.ExpectObject(&token.TransferParams{To: alice, Amount: abi.NewTokenAmount(200)}),
		}},
	}.Matches(t, v.LastInvocation())

	// The release accounting committed before the transfer was discarded with the message.
	var st vesting.State
	require.NoError(t, v.GetState(vestingAddr, &st))
	schedule, err := st.MustGetSchedule(v.Store(), id)
	require.NoError(t, err)
	assertAmount(t, 0, schedule.Released)
	assertAmount(t, 1000, st.ReservedAmount)
	assertAmount(t, 1000, st.TokenBalance)

	allow := cbg.CborInt(0)
	vm.ApplyOk(t, v, admin, ledger, big.Zero(), puppet.MethodsPuppet.SetAbortCode, &allow)
	vm.ApplyOk(t, v, alice, vestingAddr, big.Zero(), builtin.MethodsVesting.Release, release)

	require.NoError(t, v.GetState(vestingAddr, &st))
	schedule, err = st.MustGetSchedule(v.Store(), id)
	require.NoError(t, err)
	assertAmount(t, 200, schedule.Released)
	assertAmount(t, 800, st.TokenBalance)

	// The deposit pull and the successful payout.
	var ps puppet.State
	require.NoError(t, v.GetState(ledger, &ps))
	assert.Equal(t, uint64(2), ps.Calls)
	assert.Equal(t, []string{vesting.EventTokensDeposited, vesting.EventScheduleCreated, vesting.EventTokensReleased}, vm.EventNames(v))

	vm.AssertStateInvariants(t, v)
}

func TestActorAdminScenario(t *testing.T) {
	ctx := context.Background()
	v := vm.NewVMWithBuiltins(ctx, t)
	addrs := vm.CreateAccounts(t, v, 3, big.Zero())
	minter, operator, alice := addrs[0], addrs[1], addrs[2]

	// Administration is delegated to an actor, driven by the operator.
	admin := vm.CreatePuppet(t, v)
	tokenAddr := vm.CreateToken(t, v, minter, "Vested", "VST")
	vestingAddr := vm.CreateVesting(t, v, admin, tokenAddr)
	v.SetEpoch(t0)

	vm.ApplyOk(t, v, minter, tokenAddr, big.Zero(), builtin.MethodsToken.Mint, &token.MintParams{
		To:     admin,
		Amount: abi.NewTokenAmount(1000),
	})
	forward := func(to addr.Address, method abi.MethodNum, params cbor.Marshaler, code exitcode.ExitCode) {
		vm.ApplyCode(t, v, operator, admin, big.Zero(), puppet.MethodsPuppet.Send, &puppet.SendParams{
			To:     to,
			Value:  big.Zero(),
			Method: method,
			Params: encode(t, params),
		}, code)
	}

	forward(tokenAddr, builtin.MethodsToken.Approve, &token.ApproveParams{Spender: vestingAddr, Amount: abi.NewTokenAmount(1000)}, exitcode.Ok)
	amount := abi.NewTokenAmount(1000)
	forward(vestingAddr, builtin.MethodsVesting.Deposit, &amount, exitcode.Ok)

	create := &vesting.CreateVestingScheduleParams{
		Beneficiary: alice,
		Start:       t0,
		Duration:    100,
		SlicePeriod: 10,
		Revocable:   true,
		Amount:      abi.NewTokenAmount(600),
	}
	// The operator's key is not the administrator.
	vm.ApplyCode(t, v, operator, vestingAddr, big.Zero(), builtin.MethodsVesting.CreateVestingSchedule, create, exitcode.ErrForbidden)
	forward(vestingAddr, builtin.MethodsVesting.CreateVestingSchedule, create, exitcode.Ok)

	id := vesting.ScheduleIDForHolder(alice, 0)
	v.SetEpoch(t0 + 35)
	forward(vestingAddr, builtin.MethodsVesting.Revoke, &id, exitcode.Ok)

	// 3 of 10 slices vested before revocation; the rest returns to the withdrawable pool.
	withdraw := abi.NewTokenAmount(600 - 180 + 400)
	forward(vestingAddr, builtin.MethodsVesting.Withdraw, &withdraw, exitcode.Ok)
	vm.ExpectInvocation{
		To:       admin,
		Method:   puppet.MethodsPuppet.Send,
		Exitcode: exitcode.Ok,
		SubInvocations: []vm.ExpectInvocation{{
			To:       vestingAddr,
			Method:   builtin.MethodsVesting.Withdraw,
			Exitcode: exitcode.Ok,
			From:     vm.ExpectAddress(admin),
			SubInvocations: []vm.ExpectInvocation{{
				To:       tokenAddr,
				Method:   builtin.MethodsToken.Transfer,
				Exitcode: exitcode.Ok,
				Params:   vm.ExpectObject(&token.TransferParams{To: admin, Amount: withdraw}),
			}},
		}},
	}.Matches(t, v.LastInvocation())

	// A failed forward aborts the puppet with the callee's code.
	forward(vestingAddr, builtin.MethodsVesting.Withdraw, &withdraw, vesting.ErrExceedsWithdrawable)

	vm.ApplyOk(t, v, alice, vestingAddr, big.Zero(), builtin.MethodsVesting.Release, &vesting.ReleaseParams{
		ID:     id,
		Amount: abi.NewTokenAmount(180),
	})

	ret := vm.ApplyOk(t, v, minter, tokenAddr, big.Zero(), builtin.MethodsToken.BalanceOf, &admin)
	assertAmount(t, 820, *ret.(*abi.TokenAmount))
	ret = vm.ApplyOk(t, v, minter, tokenAddr, big.Zero(), builtin.MethodsToken.BalanceOf, &alice)
	assertAmount(t, 180, *ret.(*abi.TokenAmount))
	ret = vm.ApplyOk(t, v, minter, tokenAddr, big.Zero(), builtin.MethodsToken.BalanceOf, &vestingAddr)
	assertAmount(t, 0, *ret.(*abi.TokenAmount))

	vm.AssertStateInvariants(t, v)
}

func encode(t *testing.T, v cbor.Marshaler) []byte {
	buf := new(bytes.Buffer)
	require.NoError(t, v.MarshalCBOR(buf))
	return buf.Bytes()
}
