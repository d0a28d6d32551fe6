package agent

import (
	"math/rand"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/pkg/errors"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/builtin/vesting"
)

type GrantorAgentConfig struct {
	// Schedules created per epoch, on average.
	CreateRate float64
	// Revocations per epoch per open revocable schedule, on average.
	RevokeRate float64
	// Withdrawals per epoch, on average.
	WithdrawRate float64
	// Deposits per epoch, on average.
	DepositRate          float64
	RevocableProbability float32
	MaxGrant             abi.TokenAmount
	MaxStartDelay        abi.ChainEpoch
	MaxCliff             abi.ChainEpoch
	MaxDuration          abi.ChainEpoch
	MaxSlicePeriod       abi.ChainEpoch
}

// GrantorAgent administers the vesting actor: it grants schedules to beneficiaries, revokes some of them,
// and moves tokens into and out of custody.
type GrantorAgent struct {
	Config  GrantorAgentConfig
	Admin   addr.Address
	Vesting addr.Address
	Token   addr.Address

	// Totals of successful messages.
	Created   int
	Revoked   int
	Deposited abi.TokenAmount
	Withdrawn abi.TokenAmount

	beneficiaries []*BeneficiaryAgent
	// revocable schedules not yet revoked or fully vested
	revocable []revocableSchedule

	createEvents   *RateIterator
	revokeEvents   *RateIterator
	withdrawEvents *RateIterator
	depositEvents  *RateIterator
	rnd            *rand.Rand
}

type revocableSchedule struct {
	id  vesting.ScheduleID
	end abi.ChainEpoch
}

func NewGrantorAgent(admin, vestingAddr, tokenAddr addr.Address, beneficiaries []*BeneficiaryAgent, rndSeed int64, config GrantorAgentConfig) *GrantorAgent {
	rnd := rand.New(rand.NewSource(rndSeed))
	return &GrantorAgent{
		Config:        config,
		Admin:         admin,
		Vesting:       vestingAddr,
		Token:         tokenAddr,
		Deposited:     big.Zero(),
		Withdrawn:     big.Zero(),
		beneficiaries: beneficiaries,

		createEvents:   NewRateIterator(config.CreateRate, rnd.Int63()),
		revokeEvents:   NewRateIterator(0.0, rnd.Int63()),
		withdrawEvents: NewRateIterator(config.WithdrawRate, rnd.Int63()),
		depositEvents:  NewRateIterator(config.DepositRate, rnd.Int63()),
		rnd:            rnd,
	}
}

func (ga *GrantorAgent) Tick(s SimState) ([]message, error) {
	var messages []message
	now := s.GetEpoch()

	var st vesting.State
	if err := s.GetState(ga.Vesting, &st); err != nil {
		return nil, err
	}
	// Creations and withdrawals in this epoch share the withdrawable balance at its start,
	// so they succeed in any order.
	budget := st.Withdrawable()

	// Schedules that have fully vested are no longer worth revoking.
	open := ga.revocable[:0]
	for _, r := range ga.revocable {
		if r.end > now {
			open = append(open, r)
		}
	}
	ga.revocable = open

	if err := ga.revokeEvents.TickWithRate(ga.Config.RevokeRate*float64(len(ga.revocable)), func() error {
		if len(ga.revocable) == 0 {
			return nil
		}
		i := ga.rnd.Intn(len(ga.revocable))
		id := ga.revocable[i].id
		ga.revocable = append(ga.revocable[:i], ga.revocable[i+1:]...)
		messages = append(messages, ga.revoke(id))
		return nil
	}); err != nil {
		return nil, err
	}

	if len(ga.beneficiaries) > 0 {
		if err := ga.createEvents.TickWithRate(ga.Config.CreateRate, func() error {
			max := big.Min(ga.Config.MaxGrant, budget)
			if max.LessThanEqual(big.Zero()) {
				return nil
			}
			amount := randomAmount(ga.rnd, max)
			budget = big.Sub(budget, amount)
			messages = append(messages, ga.createSchedule(now, amount))
			return nil
		}); err != nil {
			return nil, err
		}
	}

	if err := ga.withdrawEvents.TickWithRate(ga.Config.WithdrawRate, func() error {
		if budget.LessThanEqual(big.Zero()) {
			return nil
		}
		amount := randomAmount(ga.rnd, budget)
		budget = big.Sub(budget, amount)
		messages = append(messages, ga.withdraw(amount))
		return nil
	}); err != nil {
		return nil, err
	}

	// Deposits are limited by the grantor's holdings and its allowance at the start of the epoch.
	// Withdrawals in the same epoch only add to holdings.
	var ledger token.State
	if err := s.GetState(ga.Token, &ledger); err != nil {
		return nil, err
	}
	held, err := ledger.BalanceOf(s.Store(), ga.Admin)
	if err != nil {
		return nil, err
	}
	allowance, err := ledger.Allowance(s.Store(), ga.Admin, ga.Vesting)
	if err != nil {
		return nil, err
	}
	if allowance.LessThan(ga.Config.MaxGrant) {
		messages = append(messages, ga.approve(big.Mul(ga.Config.MaxGrant, big.NewInt(allowanceGrants))))
	} else if err := ga.depositEvents.TickWithRate(ga.Config.DepositRate, func() error {
		max := big.Min(held, allowance)
		if max.LessThanEqual(big.Zero()) {
			return nil
		}
		amount := randomAmount(ga.rnd, big.Min(max, ga.Config.MaxGrant))
		held = big.Sub(held, amount)
		allowance = big.Sub(allowance, amount)
		messages = append(messages, ga.deposit(amount))
		return nil
	}); err != nil {
		return nil, err
	}

	return messages, nil
}

func (ga *GrantorAgent) createSchedule(now abi.ChainEpoch, amount abi.TokenAmount) message {
	beneficiary := ga.beneficiaries[ga.rnd.Intn(len(ga.beneficiaries))]
	duration := randomEpoch(ga.rnd, 1, ga.Config.MaxDuration)
	slice := randomEpoch(ga.rnd, vesting.MinSlicePeriod, min(ga.Config.MaxSlicePeriod, duration))
	params := &vesting.CreateVestingScheduleParams{
		Beneficiary:   beneficiary.Address,
		Start:         now + randomEpoch(ga.rnd, 0, ga.Config.MaxStartDelay),
		CliffDuration: randomEpoch(ga.rnd, 0, ga.Config.MaxCliff),
		Duration:      duration,
		SlicePeriod:   slice,
		Revocable:     ga.rnd.Float32() < ga.Config.RevocableProbability,
		Amount:        amount,
	}
	return message{
		From:   ga.Admin,
		To:     ga.Vesting,
		Value:  big.Zero(),
		Method: builtin.MethodsVesting.CreateVestingSchedule,
		Params: params,
		ReturnHandler: func(_ SimState, msg message, ret cbor.Marshaler) error {
			id, ok := ret.(*vesting.ScheduleID)
			if !ok {
				return errors.Errorf("create schedule return has wrong type: %v", ret)
			}
			ga.Created++
			if params.Revocable {
				ga.revocable = append(ga.revocable, revocableSchedule{id: *id, end: params.Start + params.Duration})
			}
			beneficiary.Watch(*id, params.Start+params.CliffDuration)
			return nil
		},
	}
}

func (ga *GrantorAgent) revoke(id vesting.ScheduleID) message {
	return message{
		From:   ga.Admin,
		To:     ga.Vesting,
		Value:  big.Zero(),
		Method: builtin.MethodsVesting.Revoke,
		Params: &id,
		ReturnHandler: func(_ SimState, _ message, _ cbor.Marshaler) error {
			ga.Revoked++
			return nil
		},
	}
}

func (ga *GrantorAgent) withdraw(amount abi.TokenAmount) message {
	return message{
		From:   ga.Admin,
		To:     ga.Vesting,
		Value:  big.Zero(),
		Method: builtin.MethodsVesting.Withdraw,
		Params: &amount,
		ReturnHandler: func(_ SimState, _ message, _ cbor.Marshaler) error {
			ga.Withdrawn = big.Add(ga.Withdrawn, amount)
			return nil
		},
	}
}

// Number of maximal grants an approval covers.
const allowanceGrants = 100

func (ga *GrantorAgent) approve(amount abi.TokenAmount) message {
	return message{
		From:   ga.Admin,
		To:     ga.Token,
		Value:  big.Zero(),
		Method: builtin.MethodsToken.Approve,
		Params: &token.ApproveParams{Spender: ga.Vesting, Amount: amount},
	}
}

func (ga *GrantorAgent) deposit(amount abi.TokenAmount) message {
	return message{
		From:   ga.Admin,
		To:     ga.Vesting,
		Value:  big.Zero(),
		Method: builtin.MethodsVesting.Deposit,
		Params: &amount,
		ReturnHandler: func(_ SimState, _ message, _ cbor.Marshaler) error {
			ga.Deposited = big.Add(ga.Deposited, amount)
			return nil
		},
	}
}

func min(a, b abi.ChainEpoch) abi.ChainEpoch {
	if a < b {
		return a
	}
	return b
}
