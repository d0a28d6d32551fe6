package puppet

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/runtime"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
)

// Actor is a programmable actor for tests. It forwards arbitrary messages on behalf of a test,
// and can stand in for another actor by answering its method numbers with success or a configured
// exit code.
type Actor struct{}

var PuppetActorCodeID = func() cid.Cid {
	builder := cid.V1Builder{Codec: cid.Raw, MhType: mh.IDENTITY}
	c, err := builder.Sum([]byte("vestingactors/1/puppet"))
	if err != nil {
		panic(err)
	}
	return c
}()

// Method numbers answered by Respond.
const (
	MinRespondMethod = abi.MethodNum(3)
	MaxRespondMethod = abi.MethodNum(8)
)

var MethodsPuppet = struct {
	Constructor  abi.MethodNum
	Send         abi.MethodNum
	SetAbortCode abi.MethodNum
}{builtin.MethodConstructor, 2, MaxRespondMethod + 1}

func (a Actor) Exports() []interface{} {
	exports := []interface{}{
		builtin.MethodConstructor: a.Constructor,
		2:                         a.Send,
	}
	for m := MinRespondMethod; m <= MaxRespondMethod; m++ {
		exports = append(exports, a.Respond)
	}
	return append(exports, a.SetAbortCode)
}

func (a Actor) Code() cid.Cid {
	return PuppetActorCodeID
}

func (a Actor) State() cbor.Er {
	return new(State)
}

func (a Actor) IsSingleton() bool {
	return false
}

var _ runtime.VMActor = Actor{}

type State struct {
	// Exit code with which Respond aborts. Zero means success.
	AbortCode uint64
	// Number of successful Respond calls.
	Calls uint64
}

func (a Actor) Constructor(rt runtime.Runtime, _ *abi.EmptyValue) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.InitActorAddr)
	rt.StateCreate(&State{})
	return nil
}

type SendParams struct {
	To     addr.Address
	Value  abi.TokenAmount
	Method abi.MethodNum
	Params []byte
}

// Send forwards a message with pre-encoded parameters, aborting with the callee's exit code on failure.
func (a Actor) Send(rt runtime.Runtime, params *SendParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	var p cbor.Marshaler
	if len(params.Params) > 0 {
		p = &cbg.Deferred{Raw: params.Params}
	}
	code := rt.Send(params.To, params.Method, p, params.Value, nil)
	builtin.RequireSuccess(rt, code, "failed to send method %d to %v", params.Method, params.To)
	return nil
}

// Respond accepts any parameters, then succeeds or aborts with the configured code.
func (a Actor) Respond(rt runtime.Runtime, _ *cbg.Deferred) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateTransaction(&st, func() {
		if st.AbortCode == 0 {
			st.Calls++
		}
	})
	if st.AbortCode != 0 {
		rt.Abortf(exitcode.ExitCode(st.AbortCode), "puppet configured to abort")
	}
	return nil
}

func (a Actor) SetAbortCode(rt runtime.Runtime, code *cbg.CborInt) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	if *code < 0 {
		rt.Abortf(exitcode.ErrIllegalArgument, "negative exit code %d", *code)
	}
	var st State
	rt.StateTransaction(&st, func() {
		st.AbortCode = uint64(*code)
	})
	return nil
}
