package vesting

import "github.com/filecoin-project/vesting-actors/actors/util/adt"

// Bitwidth of the HAMT mapping schedule ids to schedules.
const ScheduleHamtBitwidth = adt.DefaultHamtBitwidth

// Bitwidths of the holder index: a HAMT keyed by beneficiary of AMTs of schedule ids.
const (
	HolderIndexBitwidth = adt.DefaultHamtBitwidth
	HolderIdsBitwidth   = adt.DefaultAmtBitwidth
)

// Bitwidth of the AMT listing every schedule id in creation order.
const ScheduleListBitwidth = 5

// Smallest slice period. Vested amounts grow in whole slices of at least one epoch.
const MinSlicePeriod = 1
