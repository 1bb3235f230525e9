package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenState holds the token-wide counters that live next to the participants.
type TokenState struct {
	AllocatedTotal   *big.Int `json:"allocated_total"`
	PoolBalance      *big.Int `json:"pool_balance"`      // held by the token itself
	ProjectValuation uint64   `json:"project_valuation"` // whole USD
	ParticipantCount uint64   `json:"participant_count"`
	VestingStartedAt int64    `json:"vesting_started_at"` // last StartVesting call, unix seconds
}

func (s *TokenState) Clone() *TokenState {
	c := *s
	c.AllocatedTotal = new(big.Int).Set(s.AllocatedTotal)
	c.PoolBalance = new(big.Int).Set(s.PoolBalance)
	return &c
}

type EventKind string

const (
	EventParticipantAdded EventKind = "ParticipantAdded"
	EventVestingStarted   EventKind = "VestingStarted"
	EventStatusChanged    EventKind = "ParticipantStatusChanged"
	EventTokensClaimed    EventKind = "TokensClaimed"
	EventValuationUpdated EventKind = "ValuationUpdated"
)

type Event struct {
	ID         string            `json:"id"` // rs/xid, sorts by creation
	Kind       EventKind         `json:"kind"`
	Wallet     common.Address    `json:"wallet"`
	Amount     *big.Int          `json:"amount,omitempty"`
	Timestamp  int64             `json:"timestamp"` // unix seconds
	Attributes map[string]string `json:"attributes,omitempty"`
}
