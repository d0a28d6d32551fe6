package agent

import (
	"math"
	big2 "math/big"
	"math/rand"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
)

// RateIterator fires events at random epochs such that they occur `rate` times per epoch on average.
type RateIterator struct {
	rnd            *rand.Rand
	rate           float64
	nextOccurrence float64
}

func NewRateIterator(rate float64, seed int64) *RateIterator {
	ri := &RateIterator{
		rnd:            rand.New(rand.NewSource(seed)),
		rate:           rate,
		nextOccurrence: 1.0,
	}
	ri.chooseNext()
	return ri
}

// Tick calls f once for each event landing in this epoch: zero or many times.
func (ri *RateIterator) Tick(f func() error) error {
	ri.nextOccurrence -= 1.0
	for ri.nextOccurrence < 1.0 {
		if err := f(); err != nil {
			return err
		}
		ri.chooseNext()
	}
	return nil
}

// TickWithRate updates the rate before ticking, for rates that depend on agent state.
// No events fire while the rate is zero.
func (ri *RateIterator) TickWithRate(rate float64, f func() error) error {
	if rate <= 0 {
		return nil
	}
	if ri.rate <= 0 {
		// Never scheduled.
		ri.rate = rate
		ri.nextOccurrence = 1.0
		ri.chooseNext()
	}
	ri.rate = rate
	return ri.Tick(f)
}

// Exponential inter-arrival times make occurrences a Poisson process.
func (ri *RateIterator) chooseNext() {
	ri.nextOccurrence += -math.Log(1-ri.rnd.Float64()) / ri.rate
}

// Uniformly chosen epoch in [min, max].
func randomEpoch(rnd *rand.Rand, min, max abi.ChainEpoch) abi.ChainEpoch {
	if max <= min {
		return min
	}
	return min + abi.ChainEpoch(rnd.Int63n(int64(max-min)+1))
}

// Uniformly chosen amount in [1, max]. Max must be positive.
func randomAmount(rnd *rand.Rand, max abi.TokenAmount) abi.TokenAmount {
	if max.LessThanEqual(big.NewInt(1)) {
		return big.NewInt(1)
	}
	return big.Add(big.NewFromGo(new(big2.Int).Rand(rnd, max.Int)), big.NewInt(1))
}
