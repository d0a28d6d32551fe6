package vesting

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
)

// State of the vesting actor.
type State struct {
	// Administrator, an ID address.
	Admin addr.Address
	// Token ledger actor custodying the vested tokens.
	Token addr.Address

	Schedules   cid.Cid // HAMT[ScheduleID]VestingSchedule
	Holders     cid.Cid // Multimap, HAMT[addr]AMT[ScheduleID], ordered by creation
	ScheduleIDs cid.Cid // AMT[ScheduleID], every schedule in creation order

	// Tokens held on the ledger on behalf of this actor.
	TokenBalance abi.TokenAmount
	// Sum over schedules of the amount still owed: ReservationCap() - Released.
	ReservedAmount abi.TokenAmount
}

func ConstructState(store adt.Store, admin, token addr.Address) (*State, error) {
	emptySchedulesCid, err := adt.StoreEmptyMap(store, ScheduleHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty schedules map: %w", err)
	}
	emptyHoldersCid, err := adt.StoreEmptyMultimap(store, HolderIndexBitwidth, HolderIdsBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty holder index: %w", err)
	}
	emptyListCid, err := adt.StoreEmptyArray(store, ScheduleListBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty schedule list: %w", err)
	}

	return &State{
		Admin:          admin,
		Token:          token,
		Schedules:      emptySchedulesCid,
		Holders:        emptyHoldersCid,
		ScheduleIDs:    emptyListCid,
		TokenBalance:   big.Zero(),
		ReservedAmount: big.Zero(),
	}, nil
}

//
// Schedule store
//

// GetSchedule loads a schedule, reporting whether it exists.
func (st *State) GetSchedule(store adt.Store, id ScheduleID) (*VestingSchedule, bool, error) {
	schedules, err := adt.AsMap(store, st.Schedules, ScheduleHamtBitwidth)
	if err != nil {
		return nil, false, xerrors.Errorf("failed to load schedules: %w", err)
	}
	var schedule VestingSchedule
	found, err := schedules.Get(id, &schedule)
	if err != nil {
		return nil, false, xerrors.Errorf("failed to load schedule %v: %w", id, err)
	}
	if !found {
		return nil, false, nil
	}
	return &schedule, true, nil
}

// MustGetSchedule loads a schedule, failing with ErrNotFound if it does not exist.
func (st *State) MustGetSchedule(store adt.Store, id ScheduleID) (*VestingSchedule, error) {
	schedule, found, err := st.GetSchedule(store, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, exitcode.ErrNotFound.Wrapf("no vesting schedule %v", id)
	}
	return schedule, nil
}

// insertSchedule stores a new schedule, failing with ErrIllegalState if the id is already taken.
func (st *State) insertSchedule(store adt.Store, id ScheduleID, schedule *VestingSchedule) error {
	schedules, err := adt.AsMap(store, st.Schedules, ScheduleHamtBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load schedules: %w", err)
	}
	written, err := schedules.PutIfAbsent(id, schedule)
	if err != nil {
		return xerrors.Errorf("failed to store schedule %v: %w", id, err)
	}
	if !written {
		return exitcode.ErrIllegalState.Wrapf("duplicate schedule id %v", id)
	}
	st.Schedules, err = schedules.Root()
	return err
}

// updateSchedule applies a mutation to a stored schedule and writes it back.
// Nothing is written if the mutation fails.
func (st *State) updateSchedule(store adt.Store, id ScheduleID, mutate func(*VestingSchedule) error) error {
	schedules, err := adt.AsMap(store, st.Schedules, ScheduleHamtBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load schedules: %w", err)
	}
	var schedule VestingSchedule
	found, err := schedules.Get(id, &schedule)
	if err != nil {
		return xerrors.Errorf("failed to load schedule %v: %w", id, err)
	}
	if !found {
		return exitcode.ErrNotFound.Wrapf("no vesting schedule %v", id)
	}
	if err := mutate(&schedule); err != nil {
		return err
	}
	if err := schedules.Put(id, &schedule); err != nil {
		return xerrors.Errorf("failed to store schedule %v: %w", id, err)
	}
	st.Schedules, err = schedules.Root()
	return err
}

// ForEachSchedule iterates all schedules in HAMT order.
func (st *State) ForEachSchedule(store adt.Store, f func(id ScheduleID, schedule *VestingSchedule) error) error {
	schedules, err := adt.AsMap(store, st.Schedules, ScheduleHamtBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load schedules: %w", err)
	}
	var schedule VestingSchedule
	return schedules.ForEach(&schedule, func(key string) error {
		var id ScheduleID
		if len(key) != ScheduleIDLength {
			return xerrors.Errorf("schedule key has length %d", len(key))
		}
		copy(id[:], key)
		s := schedule
		return f(id, &s)
	})
}

//
// Holder index
//

// HolderScheduleCount is the number of schedules ever created for a beneficiary.
func (st *State) HolderScheduleCount(store adt.Store, beneficiary addr.Address) (uint64, error) {
	holders, err := adt.AsMultimap(store, st.Holders, HolderIndexBitwidth, HolderIdsBitwidth)
	if err != nil {
		return 0, xerrors.Errorf("failed to load holder index: %w", err)
	}
	ids, found, err := holders.Get(adt.AddrKey(beneficiary))
	if err != nil {
		return 0, xerrors.Errorf("failed to load schedules of %v: %w", beneficiary, err)
	}
	if !found {
		return 0, nil
	}
	return ids.Length(), nil
}

// NextScheduleID derives the identifier the next schedule created for a beneficiary will take.
func (st *State) NextScheduleID(store adt.Store, beneficiary addr.Address) (ScheduleID, error) {
	count, err := st.HolderScheduleCount(store, beneficiary)
	if err != nil {
		return ScheduleID{}, err
	}
	return ScheduleIDForHolder(beneficiary, count), nil
}

// recordForHolder appends an id to the beneficiary's schedules and to the global schedule list.
func (st *State) recordForHolder(store adt.Store, beneficiary addr.Address, id ScheduleID) error {
	holders, err := adt.AsMultimap(store, st.Holders, HolderIndexBitwidth, HolderIdsBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load holder index: %w", err)
	}
	if err := holders.Add(adt.AddrKey(beneficiary), &id); err != nil {
		return xerrors.Errorf("failed to index schedule %v for %v: %w", id, beneficiary, err)
	}
	if st.Holders, err = holders.Root(); err != nil {
		return xerrors.Errorf("failed to flush holder index: %w", err)
	}

	list, err := adt.AsArray(store, st.ScheduleIDs, ScheduleListBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load schedule list: %w", err)
	}
	if err := list.AppendContinuous(&id); err != nil {
		return xerrors.Errorf("failed to append schedule %v: %w", id, err)
	}
	if st.ScheduleIDs, err = list.Root(); err != nil {
		return xerrors.Errorf("failed to flush schedule list: %w", err)
	}
	return nil
}

// ScheduleCount is the number of schedules ever created.
func (st *State) ScheduleCount(store adt.Store) (uint64, error) {
	list, err := adt.AsArray(store, st.ScheduleIDs, ScheduleListBitwidth)
	if err != nil {
		return 0, xerrors.Errorf("failed to load schedule list: %w", err)
	}
	return list.Length(), nil
}

// ScheduleIDAt returns the id of the index'th schedule created, failing with ErrNotFound if out of range.
func (st *State) ScheduleIDAt(store adt.Store, index uint64) (ScheduleID, error) {
	list, err := adt.AsArray(store, st.ScheduleIDs, ScheduleListBitwidth)
	if err != nil {
		return ScheduleID{}, xerrors.Errorf("failed to load schedule list: %w", err)
	}
	var id ScheduleID
	found, err := list.Get(index, &id)
	if err != nil {
		return ScheduleID{}, xerrors.Errorf("failed to load schedule id at %d: %w", index, err)
	}
	if !found {
		return ScheduleID{}, exitcode.ErrNotFound.Wrapf("index %d out of bounds, %d schedules", index, list.Length())
	}
	return id, nil
}

// HolderScheduleIDs lists the ids of a beneficiary's schedules in creation order.
func (st *State) HolderScheduleIDs(store adt.Store, beneficiary addr.Address) ([]ScheduleID, error) {
	holders, err := adt.AsMultimap(store, st.Holders, HolderIndexBitwidth, HolderIdsBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to load holder index: %w", err)
	}
	var ids []ScheduleID
	var id ScheduleID
	err = holders.ForEach(adt.AddrKey(beneficiary), &id, func(_ int64) error {
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to iterate schedules of %v: %w", beneficiary, err)
	}
	return ids, nil
}

// LastScheduleForHolder loads the most recently created schedule of a beneficiary.
func (st *State) LastScheduleForHolder(store adt.Store, beneficiary addr.Address) (ScheduleID, *VestingSchedule, error) {
	count, err := st.HolderScheduleCount(store, beneficiary)
	if err != nil {
		return ScheduleID{}, nil, err
	}
	if count == 0 {
		return ScheduleID{}, nil, exitcode.ErrNotFound.Wrapf("no vesting schedules for %v", beneficiary)
	}
	id := ScheduleIDForHolder(beneficiary, count-1)
	schedule, err := st.MustGetSchedule(store, id)
	if err != nil {
		return ScheduleID{}, nil, err
	}
	return id, schedule, nil
}

//
// Lifecycle
//

// CreateSchedule reserves the schedule's amount and stores it under the beneficiary's next id.
// Fails with ErrInsufficientFunds if the amount exceeds the withdrawable balance.
func (st *State) CreateSchedule(store adt.Store, schedule *VestingSchedule) (ScheduleID, error) {
	if err := st.reserve(schedule.AmountTotal); err != nil {
		return ScheduleID{}, err
	}
	id, err := st.NextScheduleID(store, schedule.Beneficiary)
	if err != nil {
		return ScheduleID{}, err
	}
	if err := st.insertSchedule(store, id, schedule); err != nil {
		return ScheduleID{}, err
	}
	if err := st.recordForHolder(store, schedule.Beneficiary, id); err != nil {
		return ScheduleID{}, err
	}
	return id, nil
}

// ReleaseFromSchedule records the release of amount from a schedule at epoch now, and pays it out
// of the reservation and the token balance. Returns the schedule after release.
func (st *State) ReleaseFromSchedule(store adt.Store, id ScheduleID, amount abi.TokenAmount, now abi.ChainEpoch) (*VestingSchedule, error) {
	var released VestingSchedule
	err := st.updateSchedule(store, id, func(schedule *VestingSchedule) error {
		if err := schedule.Release(amount, now); err != nil {
			return xerrors.Errorf("schedule %v: %w", id, err)
		}
		released = *schedule
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := st.payOutReserved(amount); err != nil {
		return nil, err
	}
	return &released, nil
}

// RevokeSchedule freezes a schedule's vesting at epoch now and releases its unvested
// remainder from the reservation. Returns the unvested amount.
func (st *State) RevokeSchedule(store adt.Store, id ScheduleID, now abi.ChainEpoch) (abi.TokenAmount, error) {
	unvested := big.Zero()
	err := st.updateSchedule(store, id, func(schedule *VestingSchedule) error {
		var err error
		unvested, err = schedule.Revoke(now)
		if err != nil {
			return xerrors.Errorf("schedule %v: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return big.Zero(), err
	}
	if err := st.unreserve(unvested); err != nil {
		return big.Zero(), err
	}
	return unvested, nil
}
