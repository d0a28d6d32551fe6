package builtin

import (
	"sync"

	rtt "github.com/filecoin-project/go-state-types/rt"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/vesting-actors/actors/runtime"
)

// Per-code log level overrides, shared by every runtime in the process.
var actorLogLevels = struct {
	sync.RWMutex
	levels map[cid.Cid]rtt.LogLevel
}{levels: make(map[cid.Cid]rtt.LogLevel)}

// SetActorsLogLevel overrides the level at which the given actors emit their logs.
func SetActorsLogLevel(logLevel rtt.LogLevel, actors ...runtime.VMActor) {
	actorLogLevels.Lock()
	defer actorLogLevels.Unlock()

	for _, actor := range actors {
		actorLogLevels.levels[actor.Code()] = logLevel
	}
}

// ResetActorsLogLevel drops all overrides.
func ResetActorsLogLevel() {
	actorLogLevels.Lock()
	defer actorLogLevels.Unlock()
	actorLogLevels.levels = make(map[cid.Cid]rtt.LogLevel)
}

// GetActorLogLevel returns the level configured for an actor's code, or defValue.
func GetActorLogLevel(actor runtime.VMActor, defValue rtt.LogLevel) rtt.LogLevel {
	actorLogLevels.RLock()
	defer actorLogLevels.RUnlock()

	if level, ok := actorLogLevels.levels[actor.Code()]; ok {
		return level
	}
	return defValue
}

// ActorLog logs through the runtime at the level configured for the actor, or defValue.
func ActorLog(rt runtime.Runtime, actor runtime.VMActor, defValue rtt.LogLevel, msg string, args ...interface{}) {
	rt.Log(GetActorLogLevel(actor, defValue), msg, args...)
}
