package vesting

import (
	"fmt"
	"math/big"

	"equity-token/models"

	"github.com/ethereum/go-ethereum/common"
)

// Info is the token metadata and supply summary.
type Info struct {
	Name             string         `json:"name"`
	Symbol           string         `json:"symbol"`
	Decimals         int            `json:"decimals"`
	Address          common.Address `json:"address"`
	Owner            common.Address `json:"owner"`
	TotalSupply      *big.Int       `json:"total_supply"`
	AllocatedTotal   *big.Int       `json:"allocated_total"`
	RemainingSupply  *big.Int       `json:"remaining_supply"`
	PoolBalance      *big.Int       `json:"pool_balance"`
	ParticipantCount int            `json:"participant_count"`
	ProjectValuation uint64         `json:"project_valuation"`
	TokenPrice       *big.Int       `json:"token_price"`
	VestingStartedAt int64          `json:"vesting_started_at"`
}

func (t *Token) Info() Info {
	t.mux.RLock()
	defer t.mux.RUnlock()

	return Info{
		Name:             Name,
		Symbol:           Symbol,
		Decimals:         Decimals,
		Address:          t.cfg.Address,
		Owner:            t.cfg.Owner,
		TotalSupply:      TotalSupply(),
		AllocatedTotal:   new(big.Int).Set(t.state.AllocatedTotal),
		RemainingSupply:  t.remainingSupply(),
		PoolBalance:      new(big.Int).Set(t.state.PoolBalance),
		ParticipantCount: t.participants.Len(),
		ProjectValuation: t.state.ProjectValuation,
		TokenPrice:       priceOf(t.state.ProjectValuation),
		VestingStartedAt: t.state.VestingStartedAt,
	}
}

// Participant returns a copy of the record stored for wallet.
func (t *Token) Participant(wallet common.Address) (*models.Participant, error) {
	t.mux.RLock()
	defer t.mux.RUnlock()

	p, ok := t.participants.Get(wallet)
	if !ok {
		return nil, reject(ErrNotFound, ReasonDoesNotExist)
	}
	return p.Clone(), nil
}

// ParticipantByIndex returns the i-th registered participant.
func (t *Token) ParticipantByIndex(i int) (*models.Participant, error) {
	t.mux.RLock()
	defer t.mux.RUnlock()

	_, p, ok := t.participants.At(i)
	if !ok {
		return nil, reject(ErrNotFound, ReasonIndexOutOfBounds)
	}
	return p.Clone(), nil
}

// ParticipantAddresses lists registered wallets in insertion order.
func (t *Token) ParticipantAddresses() []common.Address {
	t.mux.RLock()
	defer t.mux.RUnlock()
	return t.participants.Keys()
}

// Participants returns copies of every record in insertion order.
func (t *Token) Participants() []*models.Participant {
	t.mux.RLock()
	defer t.mux.RUnlock()

	out := make([]*models.Participant, 0, t.participants.Len())
	t.participants.Each(func(_ common.Address, p *models.Participant) bool {
		out = append(out, p.Clone())
		return true
	})
	return out
}

func (t *Token) ParticipantCount() int {
	t.mux.RLock()
	defer t.mux.RUnlock()
	return t.participants.Len()
}

// RemainingSupply is the part of the supply not yet allocated.
func (t *Token) RemainingSupply() *big.Int {
	t.mux.RLock()
	defer t.mux.RUnlock()
	return t.remainingSupply()
}

func (t *Token) remainingSupply() *big.Int {
	return new(big.Int).Sub(totalSupply, t.state.AllocatedTotal)
}

// VestedBalance is what wallet could claim right now. Unknown wallets get zero.
func (t *Token) VestedBalance(wallet common.Address) *big.Int {
	t.mux.RLock()
	defer t.mux.RUnlock()

	p, ok := t.participants.Get(wallet)
	if !ok {
		return new(big.Int)
	}
	return Vested(p, t.now())
}

// BalanceOf returns the pooled balance for the token address and the claimed
// total for participants.
func (t *Token) BalanceOf(addr common.Address) *big.Int {
	t.mux.RLock()
	defer t.mux.RUnlock()

	if addr == t.cfg.Address {
		return new(big.Int).Set(t.state.PoolBalance)
	}
	if p, ok := t.participants.Get(addr); ok {
		return new(big.Int).Set(p.ClaimedAmount)
	}
	return new(big.Int)
}

func (t *Token) ProjectValuation() uint64 {
	t.mux.RLock()
	defer t.mux.RUnlock()
	return t.state.ProjectValuation
}

// TokenPrice is the USD price of one whole token, 18-decimal fixed point.
func (t *Token) TokenPrice() *big.Int {
	t.mux.RLock()
	defer t.mux.RUnlock()
	return priceOf(t.state.ProjectValuation)
}

func priceOf(valuation uint64) *big.Int {
	p := new(big.Int).SetUint64(valuation)
	p.Mul(p, unit)
	p.Mul(p, unit)
	return p.Quo(p, totalSupply)
}

// Events returns the most recent persisted events, oldest first.
func (t *Token) Events(limit int) ([]*models.Event, error) {
	return t.repo.GetEvents(limit)
}

// Report is the outcome of a ledger consistency check.
type Report struct {
	Participants   int      `json:"participants"`
	AllocatedTotal *big.Int `json:"allocated_total"`
	ClaimedTotal   *big.Int `json:"claimed_total"`
	PoolBalance    *big.Int `json:"pool_balance"`
	Violations     []string `json:"violations"`
}

func (r *Report) OK() bool {
	return len(r.Violations) == 0
}

// Validate recomputes the supply invariants from the participant records.
func (t *Token) Validate() *Report {
	t.mux.RLock()
	defer t.mux.RUnlock()

	r := &Report{
		Participants:   t.participants.Len(),
		AllocatedTotal: new(big.Int),
		ClaimedTotal:   new(big.Int),
		PoolBalance:    new(big.Int).Set(t.state.PoolBalance),
		Violations:     []string{},
	}
	t.participants.Each(func(wallet common.Address, p *models.Participant) bool {
		r.AllocatedTotal.Add(r.AllocatedTotal, p.TotalAllocation)
		r.ClaimedTotal.Add(r.ClaimedTotal, p.ClaimedAmount)
		if p.ClaimedAmount.Cmp(p.TotalAllocation) > 0 {
			r.Violations = append(r.Violations,
				fmt.Sprintf("%s claimed %s of %s", wallet.Hex(), p.ClaimedAmount, p.TotalAllocation))
		}
		return true
	})

	if r.AllocatedTotal.Cmp(totalSupply) > 0 {
		r.Violations = append(r.Violations, fmt.Sprintf("allocations %s exceed supply %s", r.AllocatedTotal, totalSupply))
	}
	if r.AllocatedTotal.Cmp(t.state.AllocatedTotal) != 0 {
		r.Violations = append(r.Violations,
			fmt.Sprintf("allocated total %s does not match participants %s", t.state.AllocatedTotal, r.AllocatedTotal))
	}
	expectedPool := new(big.Int).Sub(totalSupply, r.ClaimedTotal)
	if expectedPool.Cmp(r.PoolBalance) != 0 {
		r.Violations = append(r.Violations,
			fmt.Sprintf("pool balance %s, expected %s", r.PoolBalance, expectedPool))
	}
	if uint64(r.Participants) != t.state.ParticipantCount {
		r.Violations = append(r.Violations,
			fmt.Sprintf("participant count %d, recorded %d", r.Participants, t.state.ParticipantCount))
	}
	return r
}
