package agent

import (
	"container/heap"
	"math/rand"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/vesting"
)

type BeneficiaryAgentConfig struct {
	// Longest wait between checks of a schedule.
	MaxCheckInterval abi.ChainEpoch
	// Probability of releasing everything releasable rather than a part of it.
	FullReleaseProbability float32
}

// BeneficiaryAgent claims vested tokens from the schedules granted to it.
// Each watched schedule is checked at its cliff and then at random intervals until nothing more can vest.
type BeneficiaryAgent struct {
	Config  BeneficiaryAgentConfig
	Address addr.Address
	Vesting addr.Address

	// Total of successful releases.
	Released abi.TokenAmount
	// Schedules no longer watched because they have paid out all they ever will.
	Finished int

	checks *opQueue
	rnd    *rand.Rand
}

func NewBeneficiaryAgent(address, vestingAddr addr.Address, rndSeed int64, config BeneficiaryAgentConfig) *BeneficiaryAgent {
	return &BeneficiaryAgent{
		Config:   config,
		Address:  address,
		Vesting:  vestingAddr,
		Released: big.Zero(),
		checks:   &opQueue{},
		rnd:      rand.New(rand.NewSource(rndSeed)),
	}
}

// Watch schedules the first check of a newly granted schedule.
func (ba *BeneficiaryAgent) Watch(id vesting.ScheduleID, cliff abi.ChainEpoch) {
	ba.checks.ScheduleOp(cliff, releaseCheck{id})
}

// Number of schedules still watched.
func (ba *BeneficiaryAgent) Watching() int {
	return ba.checks.Len()
}

func (ba *BeneficiaryAgent) Tick(s SimState) ([]message, error) {
	var messages []message
	now := s.GetEpoch()

	ops := ba.checks.PopOpsUntil(now)
	if len(ops) == 0 {
		return nil, nil
	}
	var st vesting.State
	if err := s.GetState(ba.Vesting, &st); err != nil {
		return nil, err
	}

	for _, op := range ops {
		check := op.action.(releaseCheck)
		schedule, err := st.MustGetSchedule(s.Store(), check.id)
		if err != nil {
			return nil, err
		}
		releasable, err := schedule.ReleasableAmount(now)
		if err != nil {
			return nil, err
		}

		amount := big.Zero()
		if releasable.GreaterThan(big.Zero()) {
			amount = releasable
			if ba.rnd.Float32() >= ba.Config.FullReleaseProbability {
				amount = randomAmount(ba.rnd, releasable)
			}
			messages = append(messages, ba.release(check.id, amount))
		}

		// Nothing vests after revocation or the end, so watching stops once the rest is claimed.
		if (schedule.Revoked || now >= schedule.End()) && amount.Equals(releasable) {
			ba.Finished++
			continue
		}
		ba.checks.ScheduleOp(now+randomEpoch(ba.rnd, 1, ba.Config.MaxCheckInterval), check)
	}
	return messages, nil
}

func (ba *BeneficiaryAgent) release(id vesting.ScheduleID, amount abi.TokenAmount) message {
	return message{
		From:   ba.Address,
		To:     ba.Vesting,
		Value:  big.Zero(),
		Method: builtin.MethodsVesting.Release,
		Params: &vesting.ReleaseParams{ID: id, Amount: amount},
		ReturnHandler: func(_ SimState, _ message, _ cbor.Marshaler) error {
			ba.Released = big.Add(ba.Released, amount)
			return nil
		},
	}
}

type releaseCheck struct {
	id vesting.ScheduleID
}

/////////////////////////////////////////////
//
//  opQueue priority queue for scheduling
//
/////////////////////////////////////////////

type scheduledOp struct {
	epoch  abi.ChainEpoch
	action interface{}
}

type opQueue struct {
	ops []scheduledOp
}

var _ heap.Interface = (*opQueue)(nil)

// add an op to schedule
func (o *opQueue) ScheduleOp(epoch abi.ChainEpoch, action interface{}) {
	heap.Push(o, scheduledOp{
		epoch:  epoch,
		action: action,
	})
}

// get operations for up to and including current epoch
func (o *opQueue) PopOpsUntil(epoch abi.ChainEpoch) []scheduledOp {
	var ops []scheduledOp

	for !o.IsEmpty() && o.NextEpoch() <= epoch {
		next := heap.Pop(o).(scheduledOp)
		ops = append(ops, next)
	}
	return ops
}

func (o *opQueue) NextEpoch() abi.ChainEpoch {
	return o.ops[0].epoch
}

func (o *opQueue) IsEmpty() bool {
	return len(o.ops) == 0
}

func (o *opQueue) Len() int {
	return len(o.ops)
}

func (o *opQueue) Less(i, j int) bool {
	return o.ops[i].epoch < o.ops[j].epoch
}

func (o *opQueue) Swap(i, j int) {
	o.ops[i], o.ops[j] = o.ops[j], o.ops[i]
}

func (o *opQueue) Push(x interface{}) {
	o.ops = append(o.ops, x.(scheduledOp))
}

func (o *opQueue) Pop() interface{} {
	op := o.ops[len(o.ops)-1]
	o.ops = o.ops[:len(o.ops)-1]
	return op
}
