package vesting

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
)

// Names of events emitted by the vesting actor.
const (
	EventScheduleCreated = "ScheduleCreated"
	EventTokensReleased  = "TokensReleased"
	EventScheduleRevoked = "ScheduleRevoked"
	EventTokensDeposited = "TokensDeposited"
	EventTokensWithdrawn = "TokensWithdrawn"
)

type ScheduleCreatedEvent struct {
	ID          ScheduleID
	Beneficiary addr.Address
	Amount      abi.TokenAmount
}

type TokensReleasedEvent struct {
	ID     ScheduleID
	Amount abi.TokenAmount
}

type ScheduleRevokedEvent struct {
	ID ScheduleID
}

type TokensDepositedEvent struct {
	From   addr.Address
	Amount abi.TokenAmount
}

type TokensWithdrawnEvent struct {
	Amount abi.TokenAmount
}
