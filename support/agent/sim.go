package agent

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/pkg/errors"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
	"github.com/filecoin-project/vesting-actors/support/vm"
)

// Sim drives a vesting actor with a grantor and a set of beneficiaries acting at random.
type Sim struct {
	Config        SimConfig
	Minter        addr.Address
	Token         addr.Address
	Vesting       addr.Address
	Grantor       *GrantorAgent
	Beneficiaries []*BeneficiaryAgent
	v             *vm.VM
	rnd           *rand.Rand
}

// SimState is the view of the VM available to agents.
type SimState interface {
	GetEpoch() abi.ChainEpoch
	GetState(a addr.Address, out cbor.Unmarshaler) error
	Store() adt.Store
}

type SimConfig struct {
	BeneficiaryCount int
	// Minted to the grantor at setup.
	Supply abi.TokenAmount
	// Portion of the supply deposited into custody at setup.
	InitialDeposit abi.TokenAmount
	Seed           int64
	Grantor        GrantorAgentConfig
	Beneficiary    BeneficiaryAgentConfig
}

type ReturnHandler func(v SimState, msg message, ret cbor.Marshaler) error

type message struct {
	From          addr.Address
	To            addr.Address
	Value         abi.TokenAmount
	Method        abi.MethodNum
	Params        cbor.Marshaler
	ReturnHandler ReturnHandler
}

func NewSim(ctx context.Context, t testing.TB, config SimConfig) *Sim {
	v := vm.NewVMWithBuiltins(ctx, t)
	accounts := vm.CreateAccounts(t, v, config.BeneficiaryCount+2, big.Zero())
	minter, admin := accounts[0], accounts[1]
	tokenAddr := vm.CreateToken(t, v, minter, "Simulated", "SIM")
	vestingAddr := vm.CreateVesting(t, v, admin, tokenAddr)

	vm.ApplyOk(t, v, minter, tokenAddr, big.Zero(), builtin.MethodsToken.Mint, &token.MintParams{
		To:     admin,
		Amount: config.Supply,
	})
	vm.ApplyOk(t, v, admin, tokenAddr, big.Zero(), builtin.MethodsToken.Approve, &token.ApproveParams{
		Spender: vestingAddr,
		Amount:  config.Supply,
	})
	if config.InitialDeposit.GreaterThan(big.Zero()) {
		deposit := config.InitialDeposit
		vm.ApplyOk(t, v, admin, vestingAddr, big.Zero(), builtin.MethodsVesting.Deposit, &deposit)
	}

	rnd := rand.New(rand.NewSource(config.Seed))
	beneficiaries := make([]*BeneficiaryAgent, config.BeneficiaryCount)
	for i := range beneficiaries {
		beneficiaries[i] = NewBeneficiaryAgent(accounts[i+2], vestingAddr, rnd.Int63(), config.Beneficiary)
	}
	return &Sim{
		Config:        config,
		Minter:        minter,
		Token:         tokenAddr,
		Vesting:       vestingAddr,
		Grantor:       NewGrantorAgent(admin, vestingAddr, tokenAddr, beneficiaries, rnd.Int63(), config.Grantor),
		Beneficiaries: beneficiaries,
		v:             v,
		rnd:           rnd,
	}
}

// Tick gathers every agent's messages for the current epoch, applies them in random order,
// then advances the epoch.
func (s *Sim) Tick() error {
	blockMessages, err := s.Grantor.Tick(s.v)
	if err != nil {
		return err
	}
	for _, b := range s.Beneficiaries {
		msgs, err := b.Tick(s.v)
		if err != nil {
			return err
		}
		blockMessages = append(blockMessages, msgs...)
	}

	s.rnd.Shuffle(len(blockMessages), func(i, j int) {
		blockMessages[i], blockMessages[j] = blockMessages[j], blockMessages[i]
	})

	for _, msg := range blockMessages {
		result, err := s.v.ApplyMessage(msg.From, msg.To, msg.Value, msg.Method, msg.Params)
		if err != nil {
			return err
		}
		// Agents only send messages they expect to succeed.
		if result.Code != exitcode.Ok {
			return errors.Errorf("exitcode %d: message failed: %v\n%s\n", result.Code, msg, strings.Join(s.v.Logs(), "\n"))
		}
		if msg.ReturnHandler != nil {
			if err := msg.ReturnHandler(s.v, msg, result.Ret); err != nil {
				return err
			}
		}
	}

	s.v.SetEpoch(s.v.GetEpoch() + 1)
	return nil
}

func (s *Sim) GetVM() *vm.VM {
	return s.v
}

// Total released to beneficiaries, as tracked by the agents.
func (s *Sim) TotalReleased() abi.TokenAmount {
	total := big.Zero()
	for _, b := range s.Beneficiaries {
		total = big.Add(total, b.Released)
	}
	return total
}
