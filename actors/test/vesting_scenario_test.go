package test

import (
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	rtt "github.com/filecoin-project/go-state-types/rt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/builtin/vesting"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/support/vm"
)

func TestVestingLifecycle(t *testing.T) {
	s := setupScenario(t, 1000)
	assertAmount(t, 1000, s.balanceOf(t, s.vesting))
	assertAmount(t, 0, s.balanceOf(t, s.admin))

	id := s.createSchedule(t, s.alice, t0, 0, 1000, 1, true, 1000)
	assert.Equal(t, vesting.ScheduleIDForHolder(s.alice, 0), id)
	assertAmount(t, 0, s.withdrawable(t))
	// Creating a schedule moves no tokens.
	assertAmount(t, 1000, s.balanceOf(t, s.vesting))

	// Halfway through, half has vested.
	s.v.SetEpoch(t0 + 500)
	assertAmount(t, 500, s.releasable(t, id))
	s.release(t, s.alice, id, 500)

	vm.ExpectInvocation{
		To:     s.vesting,
		Method: builtin.MethodsVesting.Release,
		SubInvocations: []vm.ExpectInvocation{{
			To:     s.token,
			Method: builtin.MethodsToken.Transfer,
			From:   vm.ExpectAddress(s.vesting),
			Params: vm.ExpectObject(&token.TransferParams{To: s.alice, Amount: abi.NewTokenAmount(500)}),
		}},
	}.Matches(t, s.v.LastInvocation())

	assertAmount(t, 500, s.balanceOf(t, s.alice))
	assertAmount(t, 500, s.balanceOf(t, s.vesting))
	assertAmount(t, 0, s.releasable(t, id))

	// Revocation freezes vesting at 750. The unvested 250 becomes withdrawable.
	s.v.SetEpoch(t0 + 750)
	s.revoke(t, id)
	assertAmount(t, 250, s.withdrawable(t))
	assertAmount(t, 250, s.releasable(t, id))

	// Time passing after revocation vests nothing more.
	s.v.SetEpoch(t0 + 2000)
	assertAmount(t, 250, s.releasable(t, id))

	// The admin may release the remainder on alice's behalf. Tokens go to alice.
	s.release(t, s.admin, id, 250)
	assertAmount(t, 750, s.balanceOf(t, s.alice))
	s.releaseCode(t, s.alice, id, 1, vesting.ErrScheduleSettled)

	s.withdraw(t, 250)
	assertAmount(t, 250, s.balanceOf(t, s.admin))
	assertAmount(t, 0, s.balanceOf(t, s.vesting))

	st := s.vestingState(t)
	assertAmount(t, 0, st.TokenBalance)
	assertAmount(t, 0, st.ReservedAmount)

	summary, msgs := vesting.CheckStateInvariants(st, s.v.Store())
	assert.True(t, msgs.IsEmpty(), msgs.Messages())
	assert.Equal(t, 1, summary.CountsByStatus[vesting.StatusRevoked])
	revoked, err := summary.Revoked.IsSet(0)
	require.NoError(t, err)
	assert.True(t, revoked)

	p := message.NewPrinter(language.English) // For readable large numbers
	t.Log(p.Sprintf("alice received %d, admin withdrew %d", s.balanceOf(t, s.alice).Int64(), s.balanceOf(t, s.admin).Int64()))

	assert.Equal(t, []string{
		token.EventTransfer, token.EventApproval, token.EventTransfer, vesting.EventTokensDeposited,
		vesting.EventScheduleCreated,
		token.EventTransfer, vesting.EventTokensReleased,
		vesting.EventScheduleRevoked,
		token.EventTransfer, vesting.EventTokensReleased,
		token.EventTransfer, vesting.EventTokensWithdrawn,
	}, vm.EventNames(s.v))

	vm.AssertStateInvariants(t, s.v)
}

func TestCliffScenario(t *testing.T) {
	s := setupScenario(t, 1000)
	id := s.createSchedule(t, s.alice, t0, 200, 1000, 1, false, 1000)

	s.v.SetEpoch(t0 + 199)
	assertAmount(t, 0, s.releasable(t, id))
	s.releaseCode(t, s.alice, id, 1, vesting.ErrExceedsReleasable)

	s.v.SetEpoch(t0 + 200)
	assertAmount(t, 200, s.releasable(t, id))

	s.v.SetEpoch(t0 + 1000)
	s.release(t, s.alice, id, 1000)
	assertAmount(t, 1000, s.balanceOf(t, s.alice))

	// Irrevocable schedules cannot be revoked.
	vm.ApplyCode(t, s.v, s.admin, s.vesting, big.Zero(), builtin.MethodsVesting.Revoke, &id, vesting.ErrNotRevocable)
	vm.AssertStateInvariants(t, s.v)
}

func TestInsufficientFundsScenario(t *testing.T) {
	s := setupScenario(t, 1000)
	s.createSchedule(t, s.alice, t0, 0, 1000, 1, false, 600)
	next := vesting.ScheduleIDForHolder(s.bob, 0)

	vm.ApplyCode(t, s.v, s.admin, s.vesting, big.Zero(), builtin.MethodsVesting.CreateVestingSchedule, &vesting.CreateVestingScheduleParams{
		Beneficiary: s.bob,
		Start:       t0,
		Duration:    1000,
		SlicePeriod: 1,
		Amount:      abi.NewTokenAmount(401),
	}, exitcode.ErrInsufficientFunds)

	// No identifier is consumed by the failed creation.
	ret := vm.ApplyOk(t, s.v, s.bob, s.vesting, big.Zero(), builtin.MethodsVesting.ComputeNextVestingScheduleIDForHolder, &s.bob)
	assert.Equal(t, next, *ret.(*vesting.ScheduleID))

	id := s.createSchedule(t, s.bob, t0, 0, 1000, 1, false, 400)
	assert.Equal(t, next, id)
	assertAmount(t, 0, s.withdrawable(t))
	vm.AssertStateInvariants(t, s.v)
}

func TestDepositRollsBack(t *testing.T) {
	t.Run("without allowance", func(t *testing.T) {
		s := setupScenario(t, 0)
		s.mint(t, s.admin, 100)
		events := len(s.v.Events())
		prior := s.v.StateRoot()

		a := abi.NewTokenAmount(100)
		vm.ApplyCode(t, s.v, s.admin, s.vesting, big.Zero(), builtin.MethodsVesting.Deposit, &a, exitcode.ErrInsufficientFunds)

		assert.Equal(t, prior, s.v.StateRoot())
		assert.Equal(t, events, len(s.v.Events()))
		assertAmount(t, 0, s.vestingState(t).TokenBalance)
		assertAmount(t, 100, s.balanceOf(t, s.admin))
	})

	t.Run("allowance spent by a failed transfer is restored", func(t *testing.T) {
		s := setupScenario(t, 0)
		s.mint(t, s.admin, 50)
		s.approve(t, s.admin, s.vesting, 100)
		prior := s.v.StateRoot()

		a := abi.NewTokenAmount(100)
		vm.ApplyCode(t, s.v, s.admin, s.vesting, big.Zero(), builtin.MethodsVesting.Deposit, &a, exitcode.ErrInsufficientFunds)
		assert.Equal(t, prior, s.v.StateRoot())

		vm.ExpectInvocation{
			To:       s.vesting,
			Method:   builtin.MethodsVesting.Deposit,
			Exitcode: exitcode.ErrInsufficientFunds,
			SubInvocations: []vm.ExpectInvocation{{
				To:       s.token,
				Method:   builtin.MethodsToken.TransferFrom,
				Exitcode: exitcode.ErrInsufficientFunds,
			}},
		}.Matches(t, s.v.LastInvocation())

		ret := vm.ApplyOk(t, s.v, s.admin, s.token, big.Zero(), builtin.MethodsToken.Allowance, &token.AllowanceParams{
			Owner:   s.admin,
			Spender: s.vesting,
		})
		assertAmount(t, 100, *ret.(*abi.TokenAmount))
		vm.AssertStateInvariants(t, s.v)
	})
}

func TestFailedReleaseLeavesCustody(t *testing.T) {
	s := setupScenario(t, 1000)
	id := s.createSchedule(t, s.alice, t0, 0, 1000, 1, true, 1000)
	s.v.SetEpoch(t0 + 100)
	prior := s.v.StateRoot()

	s.releaseCode(t, s.alice, id, 101, vesting.ErrExceedsReleasable)
	s.releaseCode(t, s.bob, id, 1, exitcode.ErrForbidden)
	s.releaseCode(t, s.alice, vesting.ScheduleIDForHolder(s.bob, 0), 1, exitcode.ErrNotFound)

	assert.Equal(t, prior, s.v.StateRoot())
	assertAmount(t, 0, s.balanceOf(t, s.alice))
	assertAmount(t, 1000, s.balanceOf(t, s.vesting))
	vm.AssertStateInvariants(t, s.v)
}

func TestBeneficiaryByKeyAddress(t *testing.T) {
	s := setupScenario(t, 1000)

	ret := vm.ApplyOk(t, s.v, s.alice, s.alice, big.Zero(), builtin.MethodsAccount.PubkeyAddress, nil)
	pubkey := *ret.(*addr.Address)
	require.Equal(t, addr.BLS, pubkey.Protocol())

	// Schedules and identifiers are keyed by the resolved ID address.
	id := s.createSchedule(t, pubkey, t0, 0, 100, 10, false, 100)
	assert.Equal(t, vesting.ScheduleIDForHolder(s.alice, 0), id)

	ret = vm.ApplyOk(t, s.v, s.bob, s.vesting, big.Zero(), builtin.MethodsVesting.GetVestingSchedulesCountByBeneficiary, &pubkey)
	assert.EqualValues(t, 1, *ret.(*cbg.CborInt))

	s.v.SetEpoch(t0 + 55)
	assertAmount(t, 50, s.releasable(t, id))
	s.release(t, s.alice, id, 50)
	assertAmount(t, 50, s.balanceOf(t, pubkey))
	vm.AssertStateInvariants(t, s.v)
}

func TestOwnershipTransferScenario(t *testing.T) {
	s := setupScenario(t, 1000)
	s.v.SetLogLevel(rtt.INFO)
	vm.ApplyOk(t, s.v, s.admin, s.vesting, big.Zero(), builtin.MethodsVesting.TransferOwnership, &s.bob)

	a := abi.NewTokenAmount(100)
	vm.ApplyCode(t, s.v, s.admin, s.vesting, big.Zero(), builtin.MethodsVesting.Withdraw, &a, exitcode.ErrForbidden)
	vm.ApplyOk(t, s.v, s.bob, s.vesting, big.Zero(), builtin.MethodsVesting.Withdraw, &a)
	assertAmount(t, 100, s.balanceOf(t, s.bob))
	assertAmount(t, 900, s.withdrawable(t))

	ret := vm.ApplyOk(t, s.v, s.alice, s.vesting, big.Zero(), builtin.MethodsVesting.GetAdmin, nil)
	assert.Equal(t, s.bob, *ret.(*addr.Address))
	assert.Contains(t, s.v.Logs(), s.vesting.String()+": ownership transferred to "+s.bob.String())
	vm.AssertStateInvariants(t, s.v)
}
