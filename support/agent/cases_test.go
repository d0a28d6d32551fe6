package agent_test

import (
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/builtin/vesting"
	"github.com/filecoin-project/vesting-actors/support/agent"
	"github.com/filecoin-project/vesting-actors/support/vm"
)

func simConfig(seed int64) agent.SimConfig {
	return agent.SimConfig{
		BeneficiaryCount: 10,
		Supply:           abi.NewTokenAmount(1_000_000),
		InitialDeposit:   abi.NewTokenAmount(200_000),
		Seed:             seed,
		Grantor: agent.GrantorAgentConfig{
			CreateRate:           0.5,
			RevokeRate:           0.005,
			WithdrawRate:         0.02,
			DepositRate:          0.2,
			RevocableProbability: 0.5,
			MaxGrant:             abi.NewTokenAmount(5_000),
			MaxStartDelay:        50,
			MaxCliff:             100,
			MaxDuration:          400,
			MaxSlicePeriod:       30,
		},
		Beneficiary: agent.BeneficiaryAgentConfig{
			MaxCheckInterval:       40,
			FullReleaseProbability: 0.7,
		},
	}
}

func TestVestingSimulation(t *testing.T) {
	ctx := context.Background()
	config := simConfig(42)
	sim := agent.NewSim(ctx, t, config)

	for i := 0; i < 1000; i++ {
		require.NoError(t, sim.Tick())
		if sim.GetVM().GetEpoch()%100 == 0 {
			vm.AssertStateInvariants(t, sim.GetVM())
		}
	}

	assert.Greater(t, sim.Grantor.Created, 50)
	assert.Greater(t, sim.Grantor.Revoked, 0)
	assert.True(t, sim.TotalReleased().GreaterThan(big.Zero()))

	var st vesting.State
	require.NoError(t, sim.GetVM().GetState(sim.Vesting, &st))
	summary, msgs := vesting.CheckStateInvariants(&st, sim.GetVM().Store())
	require.True(t, msgs.IsEmpty(), msgs.Messages())
	assert.Equal(t, sim.Grantor.Created, summary.ScheduleCount)
	revoked, err := summary.Revoked.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(sim.Grantor.Revoked), revoked)

	// Custody balance is everything deposited less everything paid out.
	custody := big.Sub(big.Add(config.InitialDeposit, sim.Grantor.Deposited), big.Add(sim.Grantor.Withdrawn, sim.TotalReleased()))
	assert.Equal(t, custody.String(), st.TokenBalance.String())

	// Beneficiaries hold exactly what they released, and the supply is conserved.
	var ledger token.State
	require.NoError(t, sim.GetVM().GetState(sim.Token, &ledger))
	tokenSummary, msgs := token.CheckStateInvariants(&ledger, sim.GetVM().Store())
	require.True(t, msgs.IsEmpty(), msgs.Messages())
	held := func(a addr.Address) abi.TokenAmount {
		if balance, ok := tokenSummary.Balances[a]; ok {
			return balance
		}
		return big.Zero()
	}
	for _, b := range sim.Beneficiaries {
		assert.Equal(t, b.Released.String(), held(b.Address).String(), "beneficiary %v", b.Address)
	}
	assert.Equal(t, config.Supply.String(), tokenSummary.Supply.String())
	assert.Equal(t, st.TokenBalance.String(), held(sim.Vesting).String())

	t.Logf("created %d, revoked %d, released %v, withdrawn %v, block writes %d",
		sim.Grantor.Created, sim.Grantor.Revoked, sim.TotalReleased(), sim.Grantor.Withdrawn,
		vm.StoreMetrics(sim.GetVM()).Writes)
}

func TestSimulationSettles(t *testing.T) {
	ctx := context.Background()
	config := simConfig(7)
	sim := agent.NewSim(ctx, t, config)

	for i := 0; i < 300; i++ {
		require.NoError(t, sim.Tick())
	}

	// Stop granting, and run past the end of every schedule so beneficiaries claim all of it.
	for _, b := range sim.Beneficiaries {
		b.Config.FullReleaseProbability = 1
	}
	sim.Grantor.Config.CreateRate = 0
	sim.Grantor.Config.RevokeRate = 0
	sim.Grantor.Config.DepositRate = 0
	sim.Grantor.Config.WithdrawRate = 0
	horizon := config.Grantor.MaxStartDelay + config.Grantor.MaxCliff + config.Grantor.MaxDuration + 2*config.Beneficiary.MaxCheckInterval
	for i := abi.ChainEpoch(0); i < horizon; i++ {
		require.NoError(t, sim.Tick())
	}

	for _, b := range sim.Beneficiaries {
		assert.Equal(t, 0, b.Watching(), "beneficiary %v", b.Address)
	}

	var st vesting.State
	require.NoError(t, sim.GetVM().GetState(sim.Vesting, &st))
	assert.True(t, st.ReservedAmount.IsZero(), "reserved %v", st.ReservedAmount)
	summary, msgs := vesting.CheckStateInvariants(&st, sim.GetVM().Store())
	require.True(t, msgs.IsEmpty(), msgs.Messages())
	assert.Equal(t, 0, summary.CountsByStatus[vesting.StatusPending]+summary.CountsByStatus[vesting.StatusPartiallyReleased])
	vm.AssertStateInvariants(t, sim.GetVM())
}
