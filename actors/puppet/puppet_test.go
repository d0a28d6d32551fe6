package puppet_test

import (
	"bytes"
	"testing"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/puppet"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/support/mock"
	tutil "github.com/filecoin-project/vesting-actors/support/testing"
)

func TestExports(t *testing.T) {
	mock.CheckActorExports(t, puppet.Actor{})
}

func TestPuppet(t *testing.T) {
	actor := puppet.Actor{}
	receiver := tutil.NewIDAddr(t, 100)
	caller := tutil.NewIDAddr(t, 101)
	target := tutil.NewIDAddr(t, 102)

	construct := func(t *testing.T) *mock.Runtime {
		rt := mock.NewBuilder(receiver).
			WithCaller(builtin.InitActorAddr, builtin.InitActorCodeID).
			Build(t)
		rt.ExpectValidateCallerAddr(builtin.InitActorAddr)
		rt.Call(actor.Constructor, nil)
		rt.Verify()
		rt.SetCaller(caller, builtin.AccountActorCodeID)
		return rt
	}

	t.Run("send forwards encoded params", func(t *testing.T) {
		rt := construct(t)
		transfer := &token.TransferParams{To: target, Amount: abi.NewTokenAmount(5)}
		buf := new(bytes.Buffer)
		require.NoError(t, transfer.MarshalCBOR(buf))

		rt.ExpectValidateCallerAny()
		rt.ExpectSend(target, builtin.MethodsToken.Transfer, transfer, big.Zero(), nil, exitcode.Ok)
		rt.Call(actor.Send, &puppet.SendParams{
			To:     target,
			Value:  big.Zero(),
			Method: builtin.MethodsToken.Transfer,
			Params: buf.Bytes(),
		})
		rt.Verify()
	})

	t.Run("send propagates failure", func(t *testing.T) {
		rt := construct(t)
		rt.ExpectValidateCallerAny()
		rt.ExpectSend(target, builtin.MethodsToken.TotalSupply, nil, big.Zero(), nil, exitcode.ErrInsufficientFunds)
		rt.ExpectAbort(exitcode.ErrInsufficientFunds, func() {
			rt.Call(actor.Send, &puppet.SendParams{
				To:     target,
				Value:  big.Zero(),
				Method: builtin.MethodsToken.TotalSupply,
			})
		})
		rt.Verify()
	})

	t.Run("respond succeeds until an abort code is set", func(t *testing.T) {
		rt := construct(t)
		rt.ExpectValidateCallerAny()
		rt.Call(actor.Respond, &cbg.Deferred{})
		rt.Verify()

		code := cbg.CborInt(exitcode.ErrInsufficientFunds)
		rt.ExpectValidateCallerAny()
		rt.Call(actor.SetAbortCode, &code)
		rt.Verify()

		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrInsufficientFunds, func() {
			rt.Call(actor.Respond, &cbg.Deferred{})
		})
		rt.Verify()

		var st puppet.State
		rt.GetState(&st)
		assert.Equal(t, uint64(exitcode.ErrInsufficientFunds), st.AbortCode)
		assert.Equal(t, uint64(1), st.Calls)
	})

	t.Run("rejects negative abort code", func(t *testing.T) {
		rt := construct(t)
		code := cbg.CborInt(-1)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
			rt.Call(actor.SetAbortCode, &code)
		})
		rt.Verify()
	})
}
