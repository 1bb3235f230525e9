package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type Participant struct {
	FirstName        string         `json:"first_name"`
	LastName         string         `json:"last_name"`
	Wallet           common.Address `json:"wallet"`             // immutable, equals the registry key
	TotalAllocation  *big.Int       `json:"total_allocation"`   // base units, fixed at creation
	ClaimedAmount    *big.Int       `json:"claimed_amount"`     // base units already paid out
	VestingStartTime int64          `json:"vesting_start_time"` // unix seconds, 0 until vesting starts
	CliffDuration    int64          `json:"cliff_duration"`     // seconds
	VestingDuration  int64          `json:"vesting_duration"`   // seconds
	IsActive         bool           `json:"is_active"`
	IsLeaver         bool           `json:"is_leaver"`
	Index            uint64         `json:"index"` // insertion position
}

// Clone returns a deep copy so callers can stage changes without touching
// committed state.
func (p *Participant) Clone() *Participant {
	c := *p
	c.TotalAllocation = new(big.Int).Set(p.TotalAllocation)
	c.ClaimedAmount = new(big.Int).Set(p.ClaimedAmount)
	return &c
}
