package vm

import (
	"context"
	"io"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	cid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/account"
	"github.com/filecoin-project/vesting-actors/actors/builtin/exported"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/builtin/vesting"
	"github.com/filecoin-project/vesting-actors/actors/puppet"
	"github.com/filecoin-project/vesting-actors/actors/runtime"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
	"github.com/filecoin-project/vesting-actors/support/ipld"
	actor_testing "github.com/filecoin-project/vesting-actors/support/testing"
)

//
// Genesis like setup
//

// Creates a new VM over an in-memory store, able to execute all built-in actors and the puppet.
// The system and init actors are emulated rather than installed.
func NewVMWithBuiltins(ctx context.Context, t testing.TB) *VM {
	blocks := ipld.NewMetricsBlockStore(ipld.NewBlockStoreInMemory())
	vm, err := NewVM(ctx, testActors(), adt.WrapBlockStore(ctx, blocks))
	require.NoError(t, err)
	vm.blocks = blocks
	return vm
}

// Loads a VM from a CAR written by ExportState.
func ImportVM(ctx context.Context, t testing.TB, r io.Reader) *VM {
	blocks := ipld.NewBlockStoreInMemory()
	roots, err := ipld.ImportCar(r, blocks)
	require.NoError(t, err)
	require.Len(t, roots, 1)

	vm, err := NewVMAtRoot(ctx, testActors(), adt.WrapBlockStore(ctx, blocks), roots[0])
	require.NoError(t, err)
	vm.blocks = blocks
	return vm
}

// Returns the block store metrics of a VM created by NewVMWithBuiltins.
func StoreMetrics(vm *VM) *ipld.MetricsBlockStore {
	metrics, _ := vm.blocks.(*ipld.MetricsBlockStore)
	return metrics
}

// Creates n account actors in the VM with the given balance, returning their ID addresses.
// Each account's BLS key address is seeded by its ID, and resolves to it.
func CreateAccounts(t testing.TB, vm *VM, n int, balance abi.TokenAmount) []addr.Address {
	ids := make([]addr.Address, n)
	for i := range ids {
		pubAddr := actor_testing.NewBLSAddr(t, int64(vm.nextID))
		ids[i] = initializeActor(t, vm, &account.State{Address: pubAddr}, builtin.AccountActorCodeID, pubAddr, balance)
	}
	return ids
}

// Constructs a token actor with the given minter.
func CreateToken(t testing.TB, vm *VM, minter addr.Address, name, symbol string) addr.Address {
	return execActorOk(t, vm, builtin.TokenActorCodeID, &token.ConstructorParams{
		Minter: minter,
		Name:   name,
		Symbol: symbol,
	})
}

// Constructs a vesting actor administered by admin, with custody held on tokenAddr.
func CreateVesting(t testing.TB, vm *VM, admin, tokenAddr addr.Address) addr.Address {
	return execActorOk(t, vm, builtin.VestingActorCodeID, &vesting.ConstructorParams{
		Admin: admin,
		Token: tokenAddr,
	})
}

// Constructs a puppet actor.
func CreatePuppet(t testing.TB, vm *VM) addr.Address {
	return execActorOk(t, vm, puppet.PuppetActorCodeID, nil)
}

//
//  internal stuff
//

func testActors() []runtime.VMActor {
	return append(exported.BuiltinActors(), puppet.Actor{})
}

func execActorOk(t testing.TB, vm *VM, code cid.Cid, params cbor.Marshaler) addr.Address {
	a, result, err := vm.ExecActor(code, params)
	require.NoError(t, err)
	require.Equal(t, exitcode.Ok, result.Code, "failed to construct %s", builtin.ActorNameByCode(code))
	return a
}

func initializeActor(t testing.TB, vm *VM, state cbor.Marshaler, code cid.Cid, key addr.Address, balance abi.TokenAmount) addr.Address {
	if balance.Nil() {
		balance = big.Zero()
	}
	a, err := vm.InstallActor(code, key, state, balance)
	require.NoError(t, err)
	return a
}
