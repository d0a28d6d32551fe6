package exported

import (
	"github.com/filecoin-project/vesting-actors/actors/builtin/account"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/builtin/vesting"
	"github.com/filecoin-project/vesting-actors/actors/runtime"
)

// BuiltinActors returns the executable actors defined in this repo.
func BuiltinActors() []runtime.VMActor {
	return []runtime.VMActor{
		account.Actor{},
		token.Actor{},
		vesting.Actor{},
	}
}
