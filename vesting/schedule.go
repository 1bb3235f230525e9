package vesting

import (
	"math/big"
	"time"

	"equity-token/models"
)

const (
	Name     = "DEFIMON Equity Token"
	Symbol   = "DFX"
	Decimals = 18

	// CliffPercentage of the allocation unlocks in one step when the cliff ends.
	CliffPercentage = 25

	DefaultCliffDuration    = 365 * 24 * time.Hour
	DefaultVestingDuration  = 4 * 365 * 24 * time.Hour
	DefaultProjectValuation = 10_000_000
)

var (
	unit        = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)
	totalSupply = Tokens(10_000_000)
)

// Tokens converts whole tokens to base units.
func Tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), unit)
}

// TotalSupply is the amount minted to the token's own balance at creation.
func TotalSupply() *big.Int {
	return new(big.Int).Set(totalSupply)
}

// Terms are the durations copied onto each participant when it is added.
type Terms struct {
	CliffDuration   time.Duration
	VestingDuration time.Duration
}

func DefaultTerms() Terms {
	return Terms{
		CliffDuration:   DefaultCliffDuration,
		VestingDuration: DefaultVestingDuration,
	}
}

// AllocationFor returns TotalSupply * percentage / 100, floored.
func AllocationFor(percentage uint64) *big.Int {
	a := new(big.Int).Mul(totalSupply, new(big.Int).SetUint64(percentage))
	return a.Quo(a, big.NewInt(100))
}

// Unlocked returns the gross amount of p's allocation unlocked at now (unix
// seconds), ignoring what has already been claimed and the participant status.
func Unlocked(p *models.Participant, now int64) *big.Int {
	if p.VestingStartTime == 0 {
		return new(big.Int)
	}
	elapsed := now - p.VestingStartTime
	if elapsed < p.CliffDuration {
		return new(big.Int)
	}
	if elapsed >= p.VestingDuration {
		return new(big.Int).Set(p.TotalAllocation)
	}

	// cliff <= elapsed < vesting, so the divisor below is positive
	cliffPortion := new(big.Int).Mul(p.TotalAllocation, big.NewInt(CliffPercentage))
	cliffPortion.Quo(cliffPortion, big.NewInt(100))

	linear := new(big.Int).Sub(p.TotalAllocation, cliffPortion)
	linear.Mul(linear, big.NewInt(elapsed-p.CliffDuration))
	linear.Quo(linear, big.NewInt(p.VestingDuration-p.CliffDuration))

	return cliffPortion.Add(cliffPortion, linear)
}

// Vested returns the amount p can claim at now: the unlocked amount minus
// what was already claimed. Inactive participants and leavers get zero.
func Vested(p *models.Participant, now int64) *big.Int {
	if p == nil || !p.IsActive || p.IsLeaver {
		return new(big.Int)
	}
	v := Unlocked(p, now)
	v.Sub(v, p.ClaimedAmount)
	if v.Sign() < 0 {
		return new(big.Int)
	}
	return v
}
