package builtin_test

import (
	"io"
	"testing"

	"github.com/filecoin-project/go-state-types/cbor"
	rtt "github.com/filecoin-project/go-state-types/rt"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
)

type stateMock struct{}

func (s *stateMock) MarshalCBOR(w io.Writer) error {
	if s == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}
	return nil
}

func (s *stateMock) UnmarshalCBOR(r io.Reader) error {
	*s = stateMock{}
	return nil
}

type actorMock struct {
	code cid.Cid
}

func (a actorMock) Exports() []interface{} { return nil }
func (a actorMock) Code() cid.Cid         { return a.code }
func (a actorMock) IsSingleton() bool     { return false }
func (a actorMock) State() cbor.Er        { return new(stateMock) }

func TestActorLogLevel(t *testing.T) {
	vesting := actorMock{builtin.VestingActorCodeID}
	token := actorMock{builtin.TokenActorCodeID}

	t.Run("log with default", func(t *testing.T) {
		for _, level := range []rtt.LogLevel{rtt.DEBUG, rtt.INFO, rtt.WARN, rtt.ERROR} {
			assert.Equal(t, level, builtin.GetActorLogLevel(vesting, level))
		}
	})

	t.Run("set log level overrides default", func(t *testing.T) {
		for _, level := range []rtt.LogLevel{rtt.DEBUG, rtt.INFO, rtt.WARN, rtt.ERROR} {
			builtin.SetActorsLogLevel(level, vesting)
			for _, def := range []rtt.LogLevel{rtt.DEBUG, rtt.INFO, rtt.WARN, rtt.ERROR} {
				assert.Equal(t, level, builtin.GetActorLogLevel(vesting, def))
			}
		}
	})

	t.Run("levels are per actor code", func(t *testing.T) {
		builtin.SetActorsLogLevel(rtt.ERROR, vesting)
		assert.Equal(t, rtt.ERROR, builtin.GetActorLogLevel(vesting, rtt.DEBUG))
		assert.Equal(t, rtt.INFO, builtin.GetActorLogLevel(token, rtt.INFO))
	})
}

func TestActorNames(t *testing.T) {
	assert.Equal(t, "vestingactors/1/vesting", builtin.ActorNameByCode(builtin.VestingActorCodeID))
	assert.Equal(t, "vestingactors/1/token", builtin.ActorNameByCode(builtin.TokenActorCodeID))
	assert.Equal(t, "<undefined>", builtin.ActorNameByCode(cid.Undef))
	assert.True(t, builtin.IsBuiltinActor(builtin.VestingActorCodeID))
	assert.True(t, builtin.IsPrincipal(builtin.AccountActorCodeID))
	assert.False(t, builtin.IsPrincipal(builtin.TokenActorCodeID))
}

func TestResetActorsLogLevel(t *testing.T) {
	vesting := actorMock{builtin.VestingActorCodeID}
	builtin.SetActorsLogLevel(rtt.ERROR, vesting)
	builtin.ResetActorsLogLevel()
	assert.Equal(t, rtt.DEBUG, builtin.GetActorLogLevel(vesting, rtt.DEBUG))
}
