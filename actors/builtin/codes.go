package builtin

import (
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// The built-in actor code IDs
var (
	SystemActorCodeID  cid.Cid
	InitActorCodeID    cid.Cid
	AccountActorCodeID cid.Cid
	VestingActorCodeID cid.Cid
	TokenActorCodeID   cid.Cid

	// Set of actor code types that can represent external signing parties.
	CallerTypesSignable []cid.Cid
)

var builtinActors map[cid.Cid]*actorInfo

type actorInfo struct {
	name   string
	signer bool
}

func init() {
	builder := cid.V1Builder{Codec: cid.Raw, MhType: mh.IDENTITY}
	builtinActors = make(map[cid.Cid]*actorInfo)

	for id, info := range map[*cid.Cid]*actorInfo{ //nolint:nomaprange
		&SystemActorCodeID:  {name: "vestingactors/1/system"},
		&InitActorCodeID:    {name: "vestingactors/1/init"},
		&AccountActorCodeID: {name: "vestingactors/1/account", signer: true},
		&VestingActorCodeID: {name: "vestingactors/1/vesting"},
		&TokenActorCodeID:   {name: "vestingactors/1/token"},
	} {
		c, err := builder.Sum([]byte(info.name))
		if err != nil {
			panic(err)
		}
		*id = c
		builtinActors[c] = info
	}

	CallerTypesSignable = []cid.Cid{AccountActorCodeID}
}

// IsBuiltinActor returns true if the code belongs to an actor defined in this repo.
func IsBuiltinActor(code cid.Cid) bool {
	_, isBuiltin := builtinActors[code]
	return isBuiltin
}

// ActorNameByCode returns the (string) name of the actor given a cid code.
func ActorNameByCode(code cid.Cid) string {
	if !code.Defined() {
		return "<undefined>"
	}

	info, ok := builtinActors[code]
	if !ok {
		return "<unknown>"
	}
	return info.name
}

// Tests whether a code CID represents an actor that can be an external principal: i.e. an account.
func IsPrincipal(code cid.Cid) bool {
	info, ok := builtinActors[code]
	if !ok {
		return false
	}
	return info.signer
}
