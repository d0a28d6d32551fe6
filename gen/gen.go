package main

import (
	gen "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/vesting-actors/actors/builtin/account"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/builtin/vesting"
	"github.com/filecoin-project/vesting-actors/actors/puppet"
	"github.com/filecoin-project/vesting-actors/support/vm"
)

func main() {
	// Actors
	if err := gen.WriteTupleEncodersToFile("./actors/builtin/account/cbor_gen.go", "account",
		// actor state
		account.State{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/token/cbor_gen.go", "token",
		// actor state
		token.State{},
		// method params
		token.ConstructorParams{},
		token.MintParams{},
		token.TransferParams{},
		token.ApproveParams{},
		token.TransferFromParams{},
		token.AllowanceParams{},
		// events
		token.TransferEvent{},
		token.ApprovalEvent{},
	); err != nil {
		panic(err)
	}

	// ScheduleID encodes itself as a byte string and is not generated.
	if err := gen.WriteTupleEncodersToFile("./actors/builtin/vesting/cbor_gen.go", "vesting",
		// actor state
		vesting.State{},
		vesting.VestingSchedule{},
		// method params
		vesting.ConstructorParams{},
		vesting.CreateVestingScheduleParams{},
		vesting.ReleaseParams{},
		vesting.HolderIndexParams{},
		// events
		vesting.ScheduleCreatedEvent{},
		vesting.TokensReleasedEvent{},
		vesting.ScheduleRevokedEvent{},
		vesting.TokensDepositedEvent{},
		vesting.TokensWithdrawnEvent{},
	); err != nil {
		panic(err)
	}

	// Test support
	if err := gen.WriteTupleEncodersToFile("./actors/puppet/cbor_gen.go", "puppet",
		puppet.State{},
		puppet.SendParams{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./support/vm/cbor_gen.go", "vm",
		vm.TestActor{},
	); err != nil {
		panic(err)
	}
}
