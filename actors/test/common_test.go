package test

import (
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/builtin/vesting"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/support/vm"
)

// Epoch at which scenarios begin.
const t0 = abi.ChainEpoch(1000)

type scenario struct {
	v       *vm.VM
	minter  addr.Address
	admin   addr.Address
	alice   addr.Address
	bob     addr.Address
	token   addr.Address
	vesting addr.Address
}

// Sets up accounts, a token, and a vesting actor administered by admin, with funded tokens minted to the admin
// and deposited into custody.
func setupScenario(t *testing.T, funded int64) *scenario {
	ctx := context.Background()
	v := vm.NewVMWithBuiltins(ctx, t)
	addrs := vm.CreateAccounts(t, v, 4, big.Zero())
	s := &scenario{
		v:      v,
		minter: addrs[0],
		admin:  addrs[1],
		alice:  addrs[2],
		bob:    addrs[3],
	}
	s.token = vm.CreateToken(t, v, s.minter, "Vested", "VST")
	s.vesting = vm.CreateVesting(t, v, s.admin, s.token)
	v.SetEpoch(t0)

	if funded > 0 {
		s.mint(t, s.admin, funded)
		s.approve(t, s.admin, s.vesting, funded)
		s.deposit(t, s.admin, funded)
	}
	return s
}

//
// Token
//

func (s *scenario) mint(t *testing.T, to addr.Address, amount int64) {
	vm.ApplyOk(t, s.v, s.minter, s.token, big.Zero(), builtin.MethodsToken.Mint, &token.MintParams{
		To:     to,
		Amount: abi.NewTokenAmount(amount),
	})
}

func (s *scenario) approve(t *testing.T, owner, spender addr.Address, amount int64) {
	vm.ApplyOk(t, s.v, owner, s.token, big.Zero(), builtin.MethodsToken.Approve, &token.ApproveParams{
		Spender: spender,
		Amount:  abi.NewTokenAmount(amount),
	})
}

func (s *scenario) balanceOf(t *testing.T, owner addr.Address) abi.TokenAmount {
	ret := vm.ApplyOk(t, s.v, s.minter, s.token, big.Zero(), builtin.MethodsToken.BalanceOf, &owner)
	balance, ok := ret.(*abi.TokenAmount)
	require.True(t, ok)
	return *balance
}

//
// Vesting
//

func (s *scenario) deposit(t *testing.T, from addr.Address, amount int64) {
	a := abi.NewTokenAmount(amount)
	vm.ApplyOk(t, s.v, from, s.vesting, big.Zero(), builtin.MethodsVesting.Deposit, &a)
}

func (s *scenario) createSchedule(t *testing.T, beneficiary addr.Address, start, cliff, duration, slice abi.ChainEpoch, revocable bool, amount int64) vesting.ScheduleID {
	ret := vm.ApplyOk(t, s.v, s.admin, s.vesting, big.Zero(), builtin.MethodsVesting.CreateVestingSchedule, &vesting.CreateVestingScheduleParams{
		Beneficiary:   beneficiary,
		Start:         start,
		CliffDuration: cliff,
		Duration:      duration,
		SlicePeriod:   slice,
		Revocable:     revocable,
		Amount:        abi.NewTokenAmount(amount),
	})
	id, ok := ret.(*vesting.ScheduleID)
	require.True(t, ok)
	return *id
}

func (s *scenario) release(t *testing.T, from addr.Address, id vesting.ScheduleID, amount int64) {
	vm.ApplyOk(t, s.v, from, s.vesting, big.Zero(), builtin.MethodsVesting.Release, &vesting.ReleaseParams{
		ID:     id,
		Amount: abi.NewTokenAmount(amount),
	})
}

func (s *scenario) releaseCode(t *testing.T, from addr.Address, id vesting.ScheduleID, amount int64, code exitcode.ExitCode) {
	vm.ApplyCode(t, s.v, from, s.vesting, big.Zero(), builtin.MethodsVesting.Release, &vesting.ReleaseParams{
		ID:     id,
		Amount: abi.NewTokenAmount(amount),
	}, code)
}

func (s *scenario) revoke(t *testing.T, id vesting.ScheduleID) {
	vm.ApplyOk(t, s.v, s.admin, s.vesting, big.Zero(), builtin.MethodsVesting.Revoke, &id)
}

func (s *scenario) withdraw(t *testing.T, amount int64) {
	a := abi.NewTokenAmount(amount)
	vm.ApplyOk(t, s.v, s.admin, s.vesting, big.Zero(), builtin.MethodsVesting.Withdraw, &a)
}

func (s *scenario) releasable(t *testing.T, id vesting.ScheduleID) abi.TokenAmount {
	ret := vm.ApplyOk(t, s.v, s.alice, s.vesting, big.Zero(), builtin.MethodsVesting.ComputeReleasableAmount, &id)
	amount, ok := ret.(*abi.TokenAmount)
	require.True(t, ok)
	return *amount
}

func (s *scenario) withdrawable(t *testing.T) abi.TokenAmount {
	ret := vm.ApplyOk(t, s.v, s.alice, s.vesting, big.Zero(), builtin.MethodsVesting.GetWithdrawableAmount, nil)
	amount, ok := ret.(*abi.TokenAmount)
	require.True(t, ok)
	return *amount
}

func (s *scenario) vestingState(t *testing.T) *vesting.State {
	var st vesting.State
	require.NoError(t, s.v.GetState(s.vesting, &st))
	return &st
}

func assertAmount(t testing.TB, expected int64, actual abi.TokenAmount, msgAndArgs ...interface{}) {
	assert.Equal(t, abi.NewTokenAmount(expected).String(), actual.String(), msgAndArgs...)
}
