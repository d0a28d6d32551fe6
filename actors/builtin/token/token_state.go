package token

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
	vmath "github.com/filecoin-project/vesting-actors/actors/util/math"
)

// Bitwidth of the allowance HAMT.
const AllowancesBitwidth = adt.DefaultHamtBitwidth

// State of a fungible token ledger.
type State struct {
	// Sole address permitted to mint.
	Minter addr.Address
	Name   string
	Symbol string

	Balances   cid.Cid // BalanceTable
	Allowances cid.Cid // HAMT[AddrPairKey(owner, spender)]TokenAmount

	Supply abi.TokenAmount
}

func ConstructState(store adt.Store, minter addr.Address, name, symbol string) (*State, error) {
	emptyBalancesCid, err := adt.StoreEmptyMap(store, adt.BalanceTableBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty balance table: %w", err)
	}
	emptyAllowancesCid, err := adt.StoreEmptyMap(store, AllowancesBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty allowances: %w", err)
	}
	return &State{
		Minter:     minter,
		Name:       name,
		Symbol:     symbol,
		Balances:   emptyBalancesCid,
		Allowances: emptyAllowancesCid,
		Supply:     big.Zero(),
	}, nil
}

func (st *State) BalanceOf(store adt.Store, owner addr.Address) (abi.TokenAmount, error) {
	balances, err := adt.AsBalanceTable(store, st.Balances)
	if err != nil {
		return big.Zero(), xerrors.Errorf("failed to load balances: %w", err)
	}
	return balances.Get(owner)
}

// Mint creates tokens credited to an owner.
func (st *State) Mint(store adt.Store, to addr.Address, amount abi.TokenAmount) error {
	if err := requireNonNegative(amount); err != nil {
		return err
	}
	supply, err := vmath.CheckedAdd(st.Supply, amount)
	if err != nil {
		return exitcode.ErrIllegalArgument.Wrapf("minting %v: %w", amount, err)
	}
	balances, err := adt.AsBalanceTable(store, st.Balances)
	if err != nil {
		return xerrors.Errorf("failed to load balances: %w", err)
	}
	if err := balances.Add(to, amount); err != nil {
		return xerrors.Errorf("failed to credit %v: %w", to, err)
	}
	if st.Balances, err = balances.Root(); err != nil {
		return xerrors.Errorf("failed to flush balances: %w", err)
	}
	st.Supply = supply
	return nil
}

// Transfer moves tokens between owners, failing with ErrInsufficientFunds if the sender's balance is short.
func (st *State) Transfer(store adt.Store, from, to addr.Address, amount abi.TokenAmount) error {
	if err := requireNonNegative(amount); err != nil {
		return err
	}
	balances, err := adt.AsBalanceTable(store, st.Balances)
	if err != nil {
		return xerrors.Errorf("failed to load balances: %w", err)
	}
	if err := balances.MustSubtract(from, amount); err != nil {
		return exitcode.ErrInsufficientFunds.Wrapf("transfer from %v: %w", from, err)
	}
	if err := balances.Add(to, amount); err != nil {
		return xerrors.Errorf("failed to credit %v: %w", to, err)
	}
	if st.Balances, err = balances.Root(); err != nil {
		return xerrors.Errorf("failed to flush balances: %w", err)
	}
	return nil
}

func (st *State) Allowance(store adt.Store, owner, spender addr.Address) (abi.TokenAmount, error) {
	allowances, err := adt.AsMap(store, st.Allowances, AllowancesBitwidth)
	if err != nil {
		return big.Zero(), xerrors.Errorf("failed to load allowances: %w", err)
	}
	var allowance abi.TokenAmount
	found, err := allowances.Get(adt.AddrPairKey{First: owner, Second: spender}, &allowance)
	if err != nil {
		return big.Zero(), xerrors.Errorf("failed to load allowance of %v for %v: %w", spender, owner, err)
	}
	if !found {
		return big.Zero(), nil
	}
	return allowance, nil
}

// Approve sets the amount a spender may transfer on an owner's behalf. A zero amount removes the allowance.
func (st *State) Approve(store adt.Store, owner, spender addr.Address, amount abi.TokenAmount) error {
	if err := requireNonNegative(amount); err != nil {
		return err
	}
	allowances, err := adt.AsMap(store, st.Allowances, AllowancesBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load allowances: %w", err)
	}
	key := adt.AddrPairKey{First: owner, Second: spender}
	if amount.IsZero() {
		if _, err := allowances.TryDelete(key); err != nil {
			return xerrors.Errorf("failed to delete allowance of %v for %v: %w", spender, owner, err)
		}
	} else if err := allowances.Put(key, &amount); err != nil {
		return xerrors.Errorf("failed to set allowance of %v for %v: %w", spender, owner, err)
	}
	st.Allowances, err = allowances.Root()
	return err
}

// SpendAllowance consumes part of a spender's allowance, failing with ErrInsufficientFunds if it is short.
func (st *State) SpendAllowance(store adt.Store, owner, spender addr.Address, amount abi.TokenAmount) error {
	allowance, err := st.Allowance(store, owner, spender)
	if err != nil {
		return err
	}
	if amount.GreaterThan(allowance) {
		return exitcode.ErrInsufficientFunds.Wrapf("allowance %v of %v for %v less than %v", allowance, spender, owner, amount)
	}
	return st.Approve(store, owner, spender, big.Sub(allowance, amount))
}

func requireNonNegative(amount abi.TokenAmount) error {
	if amount.Sign() < 0 {
		return exitcode.ErrIllegalArgument.Wrapf("negative amount %v", amount)
	}
	return nil
}
