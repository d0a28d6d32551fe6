package vm

import (
	"context"
	"fmt"
	"io"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"
	ipldcbor "github.com/ipfs/go-ipld-cbor"
	mh "github.com/multiformats/go-multihash"
	"github.com/pkg/errors"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/account"
	"github.com/filecoin-project/vesting-actors/actors/runtime"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
	"github.com/filecoin-project/vesting-actors/support/ipld"
)


// VM is a simplified message execution framework for the purposes of testing inter-actor interaction.
// The VM maintains actor state and can be used to simulate message validation for a single block or tipset.
// The VM does not track gas charges or reject messages from non-principal senders.
type VM struct {
	ctx    context.Context
	store  adt.Store
	blocks ipld.BlockGetter // Optional, for state export.

	currentEpoch abi.ChainEpoch

	actorImpls  map[cid.Cid]runtime.VMActor
	stateRoot   cid.Cid  // The last committed root.
	actors      *adt.Map // The current (not necessarily committed) root node.
	actorsDirty bool

	// Key addresses resolved to ID addresses. Entries are only added outside of message execution.
	addresses map[addr.Address]addr.Address
	nextID    abi.ActorID

	logLevel    rtt.LogLevel
	logs        []string
	events      []Event
	invocations []*Invocation
}

// EmptyObjectCid is the head of an actor whose constructor has not yet created its state.
var EmptyObjectCid cid.Cid

func init() {
	obj, err := ipldcbor.WrapObject(map[string]string{}, mh.SHA2_256, -1)
	if err != nil {
		panic(err)
	}
	EmptyObjectCid = obj.Cid()
}

// ActorsBitwidth is the bitwidth of the actor table HAMT.
const ActorsBitwidth = adt.DefaultHamtBitwidth

// Event is an event emitted by a message that completed successfully.
type Event struct {
	Emitter addr.Address
	Name    string
	Payload cbor.Marshaler
}

// MessageResult is the outcome of a top-level message.
type MessageResult struct {
	Ret  cbor.Marshaler
	Code exitcode.ExitCode
}

// NewVM creates a new VM with the given actor implementations and an empty state tree.
func NewVM(ctx context.Context, actorImpls []runtime.VMActor, store adt.Store) (*VM, error) {
	actors, err := adt.MakeEmptyMap(store, ActorsBitwidth)
	if err != nil {
		return nil, err
	}
	root, err := actors.Root()
	if err != nil {
		return nil, err
	}
	lookup := make(map[cid.Cid]runtime.VMActor, len(actorImpls))
	for _, impl := range actorImpls {
		lookup[impl.Code()] = impl
	}

	return &VM{
		ctx:        ctx,
		store:      store,
		actorImpls: lookup,
		stateRoot:  root,
		actors:     actors,
		addresses:  make(map[addr.Address]addr.Address),
		nextID:     abi.ActorID(builtin.FirstNonSingletonActorId),
		logLevel:   rtt.WARN,
	}, nil
}

// NewVMAtRoot loads a VM over an existing actor table, such as one imported from a CAR.
// Key addresses are recovered from account actor state.
func NewVMAtRoot(ctx context.Context, actorImpls []runtime.VMActor, store adt.Store, root cid.Cid) (*VM, error) {
	vm, err := NewVM(ctx, actorImpls, store)
	if err != nil {
		return nil, err
	}
	if err := vm.rollback(root); err != nil {
		return nil, err
	}
	err = vm.ForEachActor(func(a addr.Address, act *TestActor) error {
		id, err := addr.IDFromAddress(a)
		if err != nil {
			return err
		}
		if abi.ActorID(id) >= vm.nextID {
			vm.nextID = abi.ActorID(id) + 1
		}
		if act.Code.Equals(builtin.AccountActorCodeID) {
			var st account.State
			if err := store.Get(ctx, act.Head, &st); err != nil {
				return errors.Wrapf(err, "failed to load account %v", a)
			}
			vm.addresses[st.Address] = a
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to index actors at %v", root)
	}
	return vm, nil
}

func (vm *VM) Store() adt.Store {
	return vm.store
}

func (vm *VM) GetEpoch() abi.ChainEpoch {
	return vm.currentEpoch
}

// SetEpoch advances the VM clock.
func (vm *VM) SetEpoch(epoch abi.ChainEpoch) {
	vm.currentEpoch = epoch
}

func (vm *VM) SetLogLevel(level rtt.LogLevel) {
	vm.logLevel = level
}

// Logs returns log lines recorded by actors at or above the VM's log level.
func (vm *VM) Logs() []string {
	return vm.logs
}

// Events returns the events of all successful messages, in order.
func (vm *VM) Events() []Event {
	return vm.events
}

// Invocations returns the invocation trees of all top-level messages applied.
func (vm *VM) Invocations() []*Invocation {
	return vm.invocations
}

// LastInvocation returns the invocation tree of the most recent top-level message.
func (vm *VM) LastInvocation() *Invocation {
	if len(vm.invocations) == 0 {
		return nil
	}
	return vm.invocations[len(vm.invocations)-1]
}

//
// Actor table
//

func (vm *VM) GetActor(a addr.Address) (*TestActor, bool, error) {
	na, found := vm.NormalizeAddress(a)
	if !found {
		return nil, false, nil
	}
	var act TestActor
	found, err := vm.actors.Get(adt.AddrKey(na), &act)
	return &act, found, err
}

// setActor sets the actor to a value without committing the change.
func (vm *VM) setActor(a addr.Address, actor *TestActor) error {
	if err := vm.actors.Put(adt.AddrKey(a), actor); err != nil {
		return err
	}
	vm.actorsDirty = true
	return nil
}

// GetState loads the state of the actor at an address into out.
func (vm *VM) GetState(a addr.Address, out cbor.Unmarshaler) error {
	act, found, err := vm.GetActor(a)
	if err != nil {
		return err
	}
	if !found {
		return errors.Errorf("actor %v not found", a)
	}
	return vm.store.Get(vm.ctx, act.Head, out)
}

// ForEachActor iterates the actor table in HAMT order.
func (vm *VM) ForEachActor(fn func(a addr.Address, act *TestActor) error) error {
	var act TestActor
	return vm.actors.ForEach(&act, func(k string) error {
		a, err := addr.NewFromBytes([]byte(k))
		if err != nil {
			return err
		}
		cpy := act
		return fn(a, &cpy)
	})
}

// NormalizeAddress resolves an address to its ID form.
func (vm *VM) NormalizeAddress(a addr.Address) (addr.Address, bool) {
	if a.Protocol() == addr.ID {
		return a, true
	}
	id, found := vm.addresses[a]
	return id, found
}

// InstallActor creates an actor with an initial state and balance, bypassing its constructor.
// If key is not the zero address it is registered as resolving to the new ID address.
func (vm *VM) InstallActor(code cid.Cid, key addr.Address, state cbor.Marshaler, balance abi.TokenAmount) (addr.Address, error) {
	idAddr, err := addr.NewIDAddress(uint64(vm.nextID))
	if err != nil {
		return addr.Undef, err
	}
	vm.nextID++

	head, err := vm.store.Put(vm.ctx, state)
	if err != nil {
		return addr.Undef, errors.Wrapf(err, "failed to store state of %v", idAddr)
	}
	if err := vm.setActor(idAddr, &TestActor{Code: code, Head: head, Balance: balance}); err != nil {
		return addr.Undef, err
	}
	if key != addr.Undef {
		vm.addresses[key] = idAddr
	}
	if _, err := vm.checkpoint(); err != nil {
		return addr.Undef, err
	}
	return idAddr, nil
}

// ExportState writes the committed actor table and all state reachable from it to w as a CAR.
func (vm *VM) ExportState(w io.Writer) error {
	if vm.blocks == nil {
		return errors.New("VM has no block store to export from")
	}
	root, err := vm.checkpoint()
	if err != nil {
		return err
	}
	return ipld.ExportCar(w, vm.blocks, root)
}

// checkpoint flushes the actor table, returning its root.
func (vm *VM) checkpoint() (cid.Cid, error) {
	if !vm.actorsDirty {
		return vm.stateRoot, nil
	}
	root, err := vm.actors.Root()
	if err != nil {
		return cid.Undef, errors.Wrapf(err, "failed to flush actors")
	}
	vm.stateRoot = root
	vm.actorsDirty = false
	return root, nil
}

// rollback discards uncommitted changes, restoring the actor table at root.
func (vm *VM) rollback(root cid.Cid) error {
	actors, err := adt.AsMap(vm.store, root, ActorsBitwidth)
	if err != nil {
		return errors.Wrapf(err, "failed to load actors at %v", root)
	}
	vm.actors = actors
	vm.stateRoot = root
	vm.actorsDirty = false
	return nil
}

// StateRoot returns the root of the committed actor table.
func (vm *VM) StateRoot() cid.Cid {
	return vm.stateRoot
}

//
// Message execution
//

// ExecActor constructs a new actor of the given code, as if on behalf of the init actor, and returns its ID address.
func (vm *VM) ExecActor(code cid.Cid, params cbor.Marshaler) (addr.Address, MessageResult, error) {
	if _, ok := vm.actorImpls[code]; !ok {
		return addr.Undef, MessageResult{}, errors.Errorf("no implementation for code %v", code)
	}
	prior, err := vm.checkpoint()
	if err != nil {
		return addr.Undef, MessageResult{}, err
	}
	idAddr, err := addr.NewIDAddress(uint64(vm.nextID))
	if err != nil {
		return addr.Undef, MessageResult{}, err
	}
	if err := vm.setActor(idAddr, &TestActor{Code: code, Head: EmptyObjectCid, Balance: big.Zero()}); err != nil {
		return addr.Undef, MessageResult{}, err
	}

	msg := InternalMessage{
		From:   builtin.InitActorAddr,
		To:     idAddr,
		Value:  big.Zero(),
		Method: builtin.MethodConstructor,
		Params: params,
	}
	result, err := vm.applyTopLevel(prior, msg)
	if err != nil {
		return addr.Undef, result, err
	}
	if result.Code.IsSuccess() {
		vm.nextID++
	}
	return idAddr, result, nil
}

// ApplyMessage applies a top-level message from an account actor.
// All state changes are discarded if the message fails.
func (vm *VM) ApplyMessage(from, to addr.Address, value abi.TokenAmount, method abi.MethodNum, params cbor.Marshaler) (MessageResult, error) {
	prior, err := vm.checkpoint()
	if err != nil {
		return MessageResult{}, err
	}
	fromID, ok := vm.NormalizeAddress(from)
	if !ok {
		return MessageResult{Code: exitcode.SysErrSenderInvalid}, nil
	}
	msg := InternalMessage{
		From:   fromID,
		To:     to,
		Value:  value,
		Method: method,
		Params: params,
	}
	return vm.applyTopLevel(prior, msg)
}

func (vm *VM) applyTopLevel(prior cid.Cid, msg InternalMessage) (MessageResult, error) {
	ic := newInvocationContext(vm, msg)
	ret, code := ic.invoke()

	vm.invocations = append(vm.invocations, ic.invocation)
	if !code.IsSuccess() {
		if err := vm.rollback(prior); err != nil {
			return MessageResult{}, err
		}
		return MessageResult{Code: code}, nil
	}
	if _, err := vm.checkpoint(); err != nil {
		return MessageResult{}, err
	}
	vm.events = append(vm.events, ic.events...)
	return MessageResult{Ret: ret, Code: code}, nil
}

func (vm *VM) transfer(from, to addr.Address, value abi.TokenAmount) (exitcode.ExitCode, error) {
	if value.IsZero() {
		return exitcode.Ok, nil
	}
	if value.Sign() < 0 {
		return exitcode.SysErrForbidden, nil
	}
	fromActor, found, err := vm.GetActor(from)
	if err != nil {
		return exitcode.Ok, err
	}
	if !found {
		return exitcode.SysErrSenderInvalid, nil
	}
	toActor, found, err := vm.GetActor(to)
	if err != nil {
		return exitcode.Ok, err
	}
	if !found {
		return exitcode.SysErrInvalidReceiver, nil
	}
	if fromActor.Balance.LessThan(value) {
		return exitcode.SysErrInsufficientFunds, nil
	}
	fromActor.Balance = big.Sub(fromActor.Balance, value)
	toActor.Balance = big.Add(toActor.Balance, value)
	if err := vm.setActor(from, fromActor); err != nil {
		return exitcode.Ok, err
	}
	return exitcode.Ok, vm.setActor(to, toActor)
}

func (vm *VM) String() string {
	return fmt.Sprintf("VM{epoch: %d, root: %v}", vm.currentEpoch, vm.stateRoot)
}

// TestActor is an entry in the actor table.
type TestActor struct {
	Head    cid.Cid
	Code    cid.Cid
	Balance abi.TokenAmount
}
