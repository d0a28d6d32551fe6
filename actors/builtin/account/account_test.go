package account_test

import (
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/account"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/support/mock"
	tutil "github.com/filecoin-project/vesting-actors/support/testing"
)

type constructorTestCase struct {
	desc     string
	addr     addr.Address
	exitCode exitcode.ExitCode
}

func TestAccountactor(t *testing.T) {
	actor := account.Actor{}

	receiver := tutil.NewIDAddr(t, 100)
	builder := mock.NewBuilder(receiver).
		WithCaller(builtin.SystemActorAddr, builtin.SystemActorCodeID)

	testCases := []constructorTestCase{
		{
			desc:     "happy path construct SECP256K1 address",
			addr:     tutil.NewSECP256K1Addr(t, "secpaddress"),
			exitCode: exitcode.Ok,
		},
		{
			desc:     "happy path construct BLS address",
			addr:     tutil.NewBLSAddr(t, 1),
			exitCode: exitcode.Ok,
		},
		{
			desc:     "fail to construct account actor using ID address",
			addr:     tutil.NewIDAddr(t, 1),
			exitCode: exitcode.ErrIllegalArgument,
		},
		{
			desc:     "fail to construct account actor using Actor address",
			addr:     tutil.NewActorAddr(t, "actoraddress"),
			exitCode: exitcode.ErrIllegalArgument,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			rt := builder.Build(t)
			rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)

			if tc.exitCode.IsSuccess() {
				rt.Call(actor.Constructor, &tc.addr)

				var st account.State
				rt.GetState(&st)
				assert.Equal(t, tc.addr, st.Address)

				rt.ExpectValidateCallerAny()
				pubkeyAddress := rt.Call(actor.PubkeyAddress, nil).(*addr.Address)
				assert.Equal(t, tc.addr, *pubkeyAddress)

				_, msgs := account.CheckStateInvariants(&st)
				require.True(t, msgs.IsEmpty(), msgs.Messages())
			} else {
				rt.ExpectAbort(tc.exitCode, func() {
					rt.Call(actor.Constructor, &tc.addr)
				})
			}
			rt.Verify()
		})
	}

	t.Run("only the system actor may construct", func(t *testing.T) {
		rt := builder.Build(t)
		rt.SetCaller(tutil.NewIDAddr(t, 101), builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
		key := tutil.NewBLSAddr(t, 2)
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(actor.Constructor, &key)
		})
		rt.Verify()
	})
}
