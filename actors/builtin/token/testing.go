package token

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
)

type StateSummary struct {
	Holders  int
	Supply   abi.TokenAmount
	Balances map[addr.Address]abi.TokenAmount
}

// Checks internal invariants of token state.
func CheckStateInvariants(st *State, store adt.Store) (*StateSummary, *builtin.MessageAccumulator) {
	acc := &builtin.MessageAccumulator{}
	acc.Require(st.Minter.Protocol() == addr.ID, "minter %v is not an ID address", st.Minter)
	acc.Require(st.Supply.Sign() >= 0, "negative supply %v", st.Supply)

	summary := &StateSummary{
		Supply:   st.Supply,
		Balances: make(map[addr.Address]abi.TokenAmount),
	}

	if balances, err := adt.AsBalanceTable(store, st.Balances); err != nil {
		acc.Addf("error loading balances: %v", err)
	} else {
		var balance abi.TokenAmount
		err = (*adt.Map)(balances).ForEach(&balance, func(key string) error {
			owner, err := addr.NewFromBytes([]byte(key))
			if err != nil {
				return err
			}
			acc.Require(balance.Sign() > 0, "non-positive balance %v for %v", balance, owner)
			summary.Balances[owner] = balance
			summary.Holders++
			return nil
		})
		acc.RequireNoError(err, "error iterating balances")

		total, err := balances.Total()
		acc.RequireNoError(err, "error summing balances")
		acc.Require(total.Equals(st.Supply), "sum of balances %v != supply %v", total, st.Supply)
	}

	if allowances, err := adt.AsMap(store, st.Allowances, AllowancesBitwidth); err != nil {
		acc.Addf("error loading allowances: %v", err)
	} else {
		var allowance abi.TokenAmount
		err = allowances.ForEach(&allowance, func(key string) error {
			acc.Require(allowance.Sign() > 0, "non-positive allowance %v", allowance)
			return nil
		})
		acc.RequireNoError(err, "error iterating allowances")
	}

	return summary, acc
}
