package vm

import (
	"bytes"
	"fmt"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/account"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/builtin/vesting"
	"github.com/filecoin-project/vesting-actors/actors/puppet"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
)

//
// Message application
//

// Applies a message, requiring it to succeed, and returns its return value.
func ApplyOk(t testing.TB, vm *VM, from, to addr.Address, value abi.TokenAmount, method abi.MethodNum, params cbor.Marshaler) cbor.Marshaler {
	return ApplyCode(t, vm, from, to, value, method, params, exitcode.Ok)
}

// Applies a message, requiring it to exit with the given code.
func ApplyCode(t testing.TB, vm *VM, from, to addr.Address, value abi.TokenAmount, method abi.MethodNum, params cbor.Marshaler, code exitcode.ExitCode) cbor.Marshaler {
	result, err := vm.ApplyMessage(from, to, value, method, params)
	require.NoError(t, err)
	require.Equal(t, code, result.Code, "unexpected exit code applying method %d to %v", method, to)
	return result.Ret
}

// Decodes a message return value into out.
func DecodeReturn(t testing.TB, ret cbor.Marshaler, out cbor.Unmarshaler) {
	require.NotNil(t, ret)
	var buf bytes.Buffer
	require.NoError(t, ret.MarshalCBOR(&buf))
	require.NoError(t, out.UnmarshalCBOR(&buf))
}

// Names of the events recorded by successful messages, in order.
func EventNames(vm *VM) []string {
	names := make([]string, len(vm.Events()))
	for i, evt := range vm.Events() {
		names[i] = evt.Name
	}
	return names
}

//
// Invocation expectations
//

func ExpectObject(v cbor.Marshaler) *objectExpectation {
	return &objectExpectation{v}
}

// distinguishes a non-expectation from an expectation of nil
type objectExpectation struct {
	val cbor.Marshaler
}

func ExpectAddress(a addr.Address) *addr.Address                 { return &a }
func ExpectExitCode(code exitcode.ExitCode) *exitcode.ExitCode { return &code }

// match by cbor encoding to avoid inconsistencies in internal representations of effectively equal objects
func (oe objectExpectation) matches(obj cbor.Marshaler) bool {
	if oe.val == nil || obj == nil {
		return oe.val == nil && obj == nil
	}
	buf1 := new(bytes.Buffer)
	oe.val.MarshalCBOR(buf1) // nolint: errcheck
	buf2 := new(bytes.Buffer)
	obj.MarshalCBOR(buf2) // nolint: errcheck
	return bytes.Equal(buf1.Bytes(), buf2.Bytes())
}

type ExpectInvocation struct {
	To       addr.Address
	Method   abi.MethodNum
	Exitcode exitcode.ExitCode

	From           *addr.Address
	Params         *objectExpectation
	Ret            *objectExpectation
	SubInvocations []ExpectInvocation
}

func (ei ExpectInvocation) Matches(t testing.TB, invocation *Invocation) {
	ei.matches(t, "", invocation)
}

func (ei ExpectInvocation) matches(t testing.TB, breadcrumb string, invocation *Invocation) {
	identifier := fmt.Sprintf("%s[%s:%d]", breadcrumb, invocation.Msg.To, invocation.Msg.Method)

	// mismatch of to or method probably indicates skipped message or messages out of order. halt.
	require.Equal(t, ei.To, invocation.Msg.To, "%s unexpected `to` address", identifier)
	require.Equal(t, ei.Method, invocation.Msg.Method, "%s unexpected method", identifier)

	// other expectations are optional
	if ei.From != nil {
		assert.Equal(t, *ei.From, invocation.Msg.From, "%s unexpected from address", identifier)
	}
	if ei.Params != nil {
		assert.True(t, ei.Params.matches(invocation.Msg.Params), "%s params aren't equal (%v != %v)", identifier, ei.Params.val, invocation.Msg.Params)
	}
	if ei.SubInvocations != nil {
		for i, invk := range invocation.SubInvocations {
			subidentifier := fmt.Sprintf("%s%d:", identifier, i)
			require.Greater(t, len(ei.SubInvocations), i, "%s unexpected subinvocation [%s:%d]", subidentifier, invk.Msg.To, invk.Msg.Method)
			ei.SubInvocations[i].matches(t, subidentifier, invk)
		}
		if missing := len(ei.SubInvocations) - len(invocation.SubInvocations); missing > 0 {
			expected := ei.SubInvocations[len(invocation.SubInvocations)]
			require.Failf(t, "missing invocation", "%s%d: expected invocation [%s:%d]", identifier, len(invocation.SubInvocations), expected.To, expected.Method)
		}
	}

	// expect results
	assert.Equal(t, ei.Exitcode, invocation.Exitcode, "%s unexpected exitcode", identifier)
	if ei.Ret != nil {
		assert.True(t, ei.Ret.matches(invocation.Ret), "%s unexpected return value (%v != %v)", identifier, ei.Ret.val, invocation.Ret)
	}
}

//
// State invariants
//

// Checks the state invariants of every actor in the VM, by code.
// Actors are checked concurrently, then vesting custody is checked against the token ledgers.
func CheckStateInvariants(vm *VM) (*builtin.MessageAccumulator, error) {
	type entry struct {
		a   addr.Address
		act *TestActor
	}
	var entries []entry
	if err := vm.ForEachActor(func(a addr.Address, act *TestActor) error {
		entries = append(entries, entry{a, act})
		return nil
	}); err != nil {
		return nil, err
	}

	accs := make([]*builtin.MessageAccumulator, len(entries))
	tokenSummaries := make([]*token.StateSummary, len(entries))
	vestingStates := make([]*vesting.State, len(entries))

	grp, ctx := errgroup.WithContext(vm.ctx)
	for i, e := range entries {
		i, e := i, e
		grp.Go(func() error {
			acc := &builtin.MessageAccumulator{}
			accs[i] = acc
			switch {
			case e.act.Code.Equals(builtin.AccountActorCodeID):
				var st account.State
				if err := vm.store.Get(ctx, e.act.Head, &st); err != nil {
					return xerrors.Errorf("failed to load account %v: %w", e.a, err)
				}
				_, msgs := account.CheckStateInvariants(&st)
				acc.AddAll(msgs)
			case e.act.Code.Equals(builtin.TokenActorCodeID):
				var st token.State
				if err := vm.store.Get(ctx, e.act.Head, &st); err != nil {
					return xerrors.Errorf("failed to load token %v: %w", e.a, err)
				}
				summary, msgs := token.CheckStateInvariants(&st, vm.store)
				tokenSummaries[i] = summary
				acc.AddAll(msgs)
			case e.act.Code.Equals(builtin.VestingActorCodeID):
				var st vesting.State
				if err := vm.store.Get(ctx, e.act.Head, &st); err != nil {
					return xerrors.Errorf("failed to load vesting %v: %w", e.a, err)
				}
				_, msgs := vesting.CheckStateInvariants(&st, vm.store)
				vestingStates[i] = &st
				acc.AddAll(msgs)
			case e.act.Code.Equals(puppet.PuppetActorCodeID):
				var st puppet.State
				if err := vm.store.Get(ctx, e.act.Head, &st); err != nil {
					return xerrors.Errorf("failed to load puppet %v: %w", e.a, err)
				}
			default:
				acc.Addf("unexpected actor code %v", e.act.Code)
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	acc := &builtin.MessageAccumulator{}
	ledgers := make(map[addr.Address]*token.StateSummary)
	puppets := make(map[addr.Address]bool)
	for i, e := range entries {
		acc.WithPrefix("%s %v: ", builtin.ActorNameByCode(e.act.Code), e.a).AddAll(accs[i])
		if tokenSummaries[i] != nil {
			ledgers[e.a] = tokenSummaries[i]
		}
		if e.act.Code.Equals(puppet.PuppetActorCodeID) {
			puppets[e.a] = true
		}
	}

	// A vesting actor's accounted balance never exceeds what its token ledger holds for it.
	for i, e := range entries {
		st := vestingStates[i]
		if st == nil {
			continue
		}
		if puppets[st.Token] {
			// Custody held on a stand-in ledger cannot be checked.
			continue
		}
		vacc := acc.WithPrefix("vesting %v: ", e.a)
		ledger, ok := ledgers[st.Token]
		if !ok {
			vacc.Addf("token %v is not a token actor", st.Token)
			continue
		}
		held, ok := ledger.Balances[e.a]
		if !ok {
			held = big.Zero()
		}
		vacc.Require(st.TokenBalance.LessThanEqual(held), "accounted balance %v exceeds custody %v", st.TokenBalance, held)
	}
	return acc, nil
}

// Requires that all actor state invariants hold.
func AssertStateInvariants(t testing.TB, vm *VM) {
	msgs, err := CheckStateInvariants(vm)
	require.NoError(t, err)
	assert.True(t, msgs.IsEmpty(), "state invariants violated:\n%s", msgs.Messages())
}
