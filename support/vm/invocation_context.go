package vm

import (
	"bytes"
	"context"
	"fmt"
	"reflect"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"
	ipldformat "github.com/ipfs/go-ipld-format"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/runtime"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
)

var typeOfRuntimeInterface = reflect.TypeOf((*runtime.Runtime)(nil)).Elem()
var typeOfCborUnmarshaler = reflect.TypeOf((*cbor.Unmarshaler)(nil)).Elem()
var typeOfCborMarshaler = reflect.TypeOf((*cbor.Marshaler)(nil)).Elem()

// InternalMessage is a message being executed, at the top level or as a send between actors.
type InternalMessage struct {
	From   addr.Address
	To     addr.Address
	Value  abi.TokenAmount
	Method abi.MethodNum
	Params cbor.Marshaler
}

// Invocation records a message and the messages it sent in turn.
type Invocation struct {
	Msg            InternalMessage
	Exitcode       exitcode.ExitCode
	Ret            cbor.Marshaler
	SubInvocations []*Invocation
}

// invocationContext implements the runtime for a single message, applying state changes directly to the VM.
type invocationContext struct {
	vm              *VM
	msg             InternalMessage
	callerValidated bool
	inTransaction   bool
	events          []Event
	invocation      *Invocation
}

var _ runtime.Runtime = (*invocationContext)(nil)

type abort struct {
	code exitcode.ExitCode
	msg  string
}

func (a abort) String() string {
	return fmt.Sprintf("abort(%v): %s", a.code, a.msg)
}

func newInvocationContext(vm *VM, msg InternalMessage) *invocationContext {
	return &invocationContext{
		vm:         vm,
		msg:        msg,
		invocation: &Invocation{Msg: msg},
	}
}

// invoke executes the message, recovering aborts into exit codes.
// State changes are not rolled back here; that is the responsibility of the sender.
func (ic *invocationContext) invoke() (ret cbor.Marshaler, errcode exitcode.ExitCode) {
	defer func() {
		if r := recover(); r != nil {
			a, ok := r.(abort)
			if !ok {
				panic(r)
			}
			ret = nil
			errcode = a.code
			ic.events = nil
		}
		ic.invocation.Ret = ret
		ic.invocation.Exitcode = errcode
	}()

	to, found := ic.vm.NormalizeAddress(ic.msg.To)
	if !found {
		ic.Abortf(exitcode.SysErrInvalidReceiver, "receiver %v not found", ic.msg.To)
	}
	ic.msg.To = to
	toActor, found, err := ic.vm.GetActor(to)
	if err != nil {
		ic.Abortf(exitcode.SysErrInternal, "failed to load receiver %v: %s", to, err)
	}
	if !found {
		ic.Abortf(exitcode.SysErrInvalidReceiver, "receiver %v not found", to)
	}

	code, err := ic.vm.transfer(ic.msg.From, to, ic.msg.Value)
	if err != nil {
		ic.Abortf(exitcode.SysErrInternal, "failed to transfer %v from %v to %v: %s", ic.msg.Value, ic.msg.From, to, err)
	}
	if !code.IsSuccess() {
		ic.Abortf(code, "failed to transfer %v from %v to %v", ic.msg.Value, ic.msg.From, to)
	}

	if ic.msg.Method == builtin.MethodSend {
		return nil, exitcode.Ok
	}

	impl, ok := ic.vm.actorImpls[toActor.Code]
	if !ok {
		ic.Abortf(exitcode.SysErrorIllegalActor, "no implementation for code %v", toActor.Code)
	}

	exports := impl.Exports()
	if uint64(ic.msg.Method) >= uint64(len(exports)) || exports[ic.msg.Method] == nil {
		ic.Abortf(exitcode.SysErrInvalidMethod, "no method %d on %v", ic.msg.Method, builtin.ActorNameByCode(toActor.Code))
	}
	meth := reflect.ValueOf(exports[ic.msg.Method])
	ic.checkMethodType(meth)

	param := reflect.New(meth.Type().In(1).Elem())
	if ic.msg.Params != nil {
		var buf bytes.Buffer
		if err := ic.msg.Params.MarshalCBOR(&buf); err != nil {
			ic.Abortf(exitcode.SysErrSerialization, "failed to encode params: %s", err)
		}
		if err := param.Interface().(cbor.Unmarshaler).UnmarshalCBOR(&buf); err != nil {
			ic.Abortf(exitcode.SysErrSerialization, "failed to decode params as %v: %s", param.Type(), err)
		}
	}

	out := meth.Call([]reflect.Value{reflect.ValueOf(ic), param})
	if !ic.callerValidated {
		ic.Abortf(exitcode.SysErrorIllegalActor, "method %d returned without validating caller", ic.msg.Method)
	}
	if out[0].IsNil() {
		return nil, exitcode.Ok
	}
	return out[0].Interface().(cbor.Marshaler), exitcode.Ok
}

func (ic *invocationContext) checkMethodType(meth reflect.Value) {
	t := meth.Type()
	ok := t.Kind() == reflect.Func &&
		t.NumIn() == 2 &&
		t.In(0) == typeOfRuntimeInterface &&
		t.In(1).Kind() == reflect.Ptr &&
		t.In(1).Implements(typeOfCborUnmarshaler) &&
		t.NumOut() == 1 &&
		t.Out(0).Implements(typeOfCborMarshaler)
	if !ok {
		ic.Abortf(exitcode.SysErrorIllegalActor, "method %d has invalid signature %v", ic.msg.Method, t)
	}
}

//
// Message
//

func (ic *invocationContext) Caller() addr.Address {
	return ic.msg.From
}

func (ic *invocationContext) Receiver() addr.Address {
	return ic.msg.To
}

func (ic *invocationContext) ValueReceived() abi.TokenAmount {
	return ic.msg.Value
}

//
// Caller validation
//

func (ic *invocationContext) ValidateImmediateCallerAcceptAny() {
	ic.assertf(!ic.callerValidated, exitcode.SysErrorIllegalActor, "caller validated twice")
	ic.callerValidated = true
}

func (ic *invocationContext) ValidateImmediateCallerIs(addrs ...addr.Address) {
	ic.assertf(!ic.callerValidated, exitcode.SysErrorIllegalActor, "caller validated twice")
	ic.callerValidated = true
	for _, a := range addrs {
		if a == ic.msg.From {
			return
		}
	}
	ic.Abortf(exitcode.ErrForbidden, "caller %v is not one of %v", ic.msg.From, addrs)
}

func (ic *invocationContext) ValidateImmediateCallerType(types ...cid.Cid) {
	ic.assertf(!ic.callerValidated, exitcode.SysErrorIllegalActor, "caller validated twice")
	ic.callerValidated = true
	code, ok := ic.GetActorCodeCID(ic.msg.From)
	if ok {
		for _, t := range types {
			if t.Equals(code) {
				return
			}
		}
	}
	ic.Abortf(exitcode.ErrForbidden, "caller type %v is not one of %v", code, types)
}

//
// Chain and actor table
//

func (ic *invocationContext) CurrEpoch() abi.ChainEpoch {
	return ic.vm.currentEpoch
}

func (ic *invocationContext) CurrentBalance() abi.TokenAmount {
	act := ic.loadActor()
	return act.Balance
}

func (ic *invocationContext) ResolveAddress(address addr.Address) (addr.Address, bool) {
	return ic.vm.NormalizeAddress(address)
}

func (ic *invocationContext) GetActorCodeCID(a addr.Address) (cid.Cid, bool) {
	act, found, err := ic.vm.GetActor(a)
	if err != nil {
		ic.Abortf(exitcode.SysErrInternal, "failed to load actor %v: %s", a, err)
	}
	if !found {
		return cid.Undef, false
	}
	return act.Code, true
}

func (ic *invocationContext) loadActor() *TestActor {
	act, found, err := ic.vm.GetActor(ic.msg.To)
	if err != nil {
		ic.Abortf(exitcode.SysErrInternal, "failed to load actor %v: %s", ic.msg.To, err)
	}
	if !found {
		ic.Abortf(exitcode.SysErrInternal, "actor %v not found", ic.msg.To)
	}
	return act
}

func (ic *invocationContext) storeActor(act *TestActor) {
	if err := ic.vm.setActor(ic.msg.To, act); err != nil {
		ic.Abortf(exitcode.SysErrInternal, "failed to store actor %v: %s", ic.msg.To, err)
	}
}

//
// Sends
//

func (ic *invocationContext) Send(to addr.Address, method abi.MethodNum, params cbor.Marshaler, value abi.TokenAmount, out cbor.Er) exitcode.ExitCode {
	ic.assertf(!ic.inTransaction, exitcode.SysErrorIllegalActor, "side-effect within transaction")

	prior, err := ic.vm.checkpoint()
	if err != nil {
		ic.Abortf(exitcode.SysErrInternal, "failed to checkpoint before send: %s", err)
	}

	sub := newInvocationContext(ic.vm, InternalMessage{
		From:   ic.msg.To,
		To:     to,
		Value:  value,
		Method: method,
		Params: params,
	})
	ret, code := sub.invoke()
	ic.invocation.SubInvocations = append(ic.invocation.SubInvocations, sub.invocation)

	if !code.IsSuccess() {
		if err := ic.vm.rollback(prior); err != nil {
			ic.Abortf(exitcode.SysErrInternal, "failed to roll back send: %s", err)
		}
		return code
	}
	ic.events = append(ic.events, sub.events...)

	if out != nil && ret != nil {
		var buf bytes.Buffer
		if err := ret.MarshalCBOR(&buf); err != nil {
			ic.Abortf(exitcode.ErrSerialization, "failed to encode return value: %s", err)
		}
		if err := out.UnmarshalCBOR(&buf); err != nil {
			ic.Abortf(exitcode.ErrSerialization, "failed to decode return value into %T: %s", out, err)
		}
	}
	return code
}

func (ic *invocationContext) Abortf(errExitCode exitcode.ExitCode, msg string, args ...interface{}) {
	panic(abort{errExitCode, fmt.Sprintf(msg, args...)})
}

func (ic *invocationContext) assertf(predicate bool, code exitcode.ExitCode, msg string, args ...interface{}) {
	if !predicate {
		ic.Abortf(code, msg, args...)
	}
}

func (ic *invocationContext) EmitEvent(name string, payload cbor.Marshaler) {
	ic.events = append(ic.events, Event{Emitter: ic.msg.To, Name: name, Payload: payload})
}

func (ic *invocationContext) Context() context.Context {
	return ic.vm.ctx
}

func (ic *invocationContext) StartSpan(_ string) func() {
	return func() {}
}

func (ic *invocationContext) Log(level rtt.LogLevel, msg string, args ...interface{}) {
	if level >= ic.vm.logLevel {
		ic.vm.logs = append(ic.vm.logs, fmt.Sprintf("%v: %s", ic.msg.To, fmt.Sprintf(msg, args...)))
	}
}

//
// Store
//

func (ic *invocationContext) StoreGet(c cid.Cid, o cbor.Unmarshaler) bool {
	if err := ic.vm.store.Get(ic.vm.ctx, c, o); err != nil {
		if xerrors.Is(err, ipldformat.ErrNotFound) {
			return false
		}
		ic.Abortf(exitcode.ErrSerialization, "failed to load %v: %s", c, err)
	}
	return true
}

func (ic *invocationContext) StorePut(x cbor.Marshaler) cid.Cid {
	c, err := ic.vm.store.Put(ic.vm.ctx, x)
	if err != nil {
		ic.Abortf(exitcode.ErrSerialization, "failed to store object: %s", err)
	}
	return c
}

//
// State
//

func (ic *invocationContext) StateCreate(obj cbor.Marshaler) {
	act := ic.loadActor()
	ic.assertf(act.Head.Equals(EmptyObjectCid), exitcode.SysErrorIllegalActor, "state already initialized")
	act.Head = ic.StorePut(obj)
	ic.storeActor(act)
}

func (ic *invocationContext) StateReadonly(obj cbor.Unmarshaler) {
	act := ic.loadActor()
	if !ic.StoreGet(act.Head, obj) {
		ic.Abortf(exitcode.SysErrInternal, "failed to load state of %v", ic.msg.To)
	}
}

func (ic *invocationContext) StateTransaction(obj cbor.Er, f func()) {
	ic.assertf(!ic.inTransaction, exitcode.SysErrorIllegalActor, "nested transaction")
	ic.StateReadonly(obj)

	ic.inTransaction = true
	f()
	ic.inTransaction = false

	act := ic.loadActor()
	act.Head = ic.StorePut(obj)
	ic.storeActor(act)
}
