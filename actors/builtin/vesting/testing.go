package vesting

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-bitfield"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
)

type StateSummary struct {
	ScheduleCount  int
	Outstanding    abi.TokenAmount
	Withdrawable   abi.TokenAmount
	CountsByStatus map[ScheduleStatus]int
	// Creation-order indices of revoked schedules.
	Revoked bitfield.BitField
}

// Checks internal invariants of vesting state.
func CheckStateInvariants(st *State, store adt.Store) (*StateSummary, *builtin.MessageAccumulator) {
	acc := &builtin.MessageAccumulator{}
	acc.Require(st.Admin.Protocol() == addr.ID, "admin %v is not an ID address", st.Admin)
	acc.Require(st.TokenBalance.Sign() >= 0, "negative token balance %v", st.TokenBalance)
	acc.Require(st.ReservedAmount.Sign() >= 0, "negative reserved amount %v", st.ReservedAmount)
	acc.Require(st.TokenBalance.GreaterThanEqual(st.ReservedAmount), "token balance %v less than reserved %v",
		st.TokenBalance, st.ReservedAmount)

	summary := &StateSummary{
		Outstanding:    big.Zero(),
		Withdrawable:   st.Withdrawable(),
		CountsByStatus: make(map[ScheduleStatus]int),
	}

	schedules := make(map[ScheduleID]*VestingSchedule)
	err := st.ForEachSchedule(store, func(id ScheduleID, s *VestingSchedule) error {
		sacc := acc.WithPrefix("schedule %v: ", id)
		checkScheduleInvariants(s, sacc)
		schedules[id] = s
		summary.Outstanding = big.Add(summary.Outstanding, s.Outstanding())
		summary.CountsByStatus[s.Status()]++
		return nil
	})
	acc.RequireNoError(err, "error iterating schedules")
	summary.ScheduleCount = len(schedules)

	acc.Require(summary.Outstanding.Equals(st.ReservedAmount), "reserved amount %v != sum of outstanding %v",
		st.ReservedAmount, summary.Outstanding)

	// Every schedule is indexed under its beneficiary at the position its id was derived from.
	indexed := make(map[ScheduleID]bool)
	if holders, err := adt.AsMultimap(store, st.Holders, HolderIndexBitwidth, HolderIdsBitwidth); err != nil {
		acc.Addf("error loading holder index: %v", err)
	} else {
		err = holders.ForAll(func(key string, ids *adt.Array) error {
			holder, err := addr.NewFromBytes([]byte(key))
			if err != nil {
				return err
			}
			hacc := acc.WithPrefix("holder %v: ", holder)
			var id ScheduleID
			return ids.ForEach(&id, func(i int64) error {
				hacc.Require(id == ScheduleIDForHolder(holder, uint64(i)), "id %v at %d not derived from holder", id, i)
				hacc.Require(!indexed[id], "id %v indexed twice", id)
				indexed[id] = true
				s, ok := schedules[id]
				if !ok {
					hacc.Addf("indexed id %v has no schedule", id)
				} else {
					hacc.Require(s.Beneficiary == holder, "schedule %v has beneficiary %v", id, s.Beneficiary)
				}
				return nil
			})
		})
		acc.RequireNoError(err, "error iterating holder index")
	}
	acc.Require(len(indexed) == len(schedules), "holder index has %d ids, %d schedules stored", len(indexed), len(schedules))

	listed := 0
	var revoked []uint64
	if list, err := adt.AsArray(store, st.ScheduleIDs, ScheduleListBitwidth); err != nil {
		acc.Addf("error loading schedule list: %v", err)
	} else {
		var id ScheduleID
		err = list.ForEach(&id, func(i int64) error {
			acc.Require(int64(listed) == i, "schedule list not continuous at %d", i)
			s, ok := schedules[id]
			acc.Require(ok, "listed id %v at %d has no schedule", id, i)
			if ok && s.Revoked {
				revoked = append(revoked, uint64(i))
			}
			listed++
			return nil
		})
		acc.RequireNoError(err, "error iterating schedule list")
	}
	acc.Require(listed == len(schedules), "schedule list has %d ids, %d schedules stored", listed, len(schedules))
	summary.Revoked = bitfield.NewFromSet(revoked)

	return summary, acc
}

func checkScheduleInvariants(s *VestingSchedule, acc *builtin.MessageAccumulator) {
	acc.Require(s.Beneficiary.Protocol() == addr.ID, "beneficiary %v is not an ID address", s.Beneficiary)
	acc.Require(s.Duration > 0, "non-positive duration %d", s.Duration)
	acc.Require(s.SlicePeriod >= MinSlicePeriod, "slice period %d below minimum", s.SlicePeriod)
	acc.Require(s.Duration >= s.SlicePeriod, "duration %d shorter than slice period %d", s.Duration, s.SlicePeriod)
	acc.Require(s.Cliff >= s.Start, "cliff %d before start %d", s.Cliff, s.Start)
	acc.Require(s.AmountTotal.Sign() > 0, "non-positive amount %v", s.AmountTotal)
	acc.Require(s.Released.Sign() >= 0, "negative released %v", s.Released)
	acc.Require(s.Released.LessThanEqual(s.AmountTotal), "released %v exceeds total %v", s.Released, s.AmountTotal)
	if s.Revoked {
		acc.Require(s.VestedAtRevocation.LessThanEqual(s.AmountTotal), "vested at revocation %v exceeds total %v",
			s.VestedAtRevocation, s.AmountTotal)
		acc.Require(s.Released.LessThanEqual(s.VestedAtRevocation), "released %v exceeds vested at revocation %v",
			s.Released, s.VestedAtRevocation)
		acc.Require(s.Revocable, "irrevocable schedule revoked")
	} else {
		acc.Require(s.VestedAtRevocation.IsZero(), "unrevoked schedule has vested at revocation %v", s.VestedAtRevocation)
	}
}
