package vesting

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"equity-token/logger"
	"equity-token/models"
	"equity-token/repository"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

// Config describes a token instance.
type Config struct {
	Address          common.Address // the token's own holding address
	Owner            common.Address
	Terms            Terms
	InitialValuation uint64 // whole USD
}

// Hook observes events after the operation that produced them has been
// committed. Hooks run outside the token lock and may call back into it.
type Hook interface {
	OnEvent(ctx context.Context, e *models.Event)
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, e *models.Event)

func (f HookFunc) OnEvent(ctx context.Context, e *models.Event) {
	f(ctx, e)
}

// Token is the vesting ledger: participant registry, vesting schedule and
// claim gate over a fixed, pre-minted supply.
type Token struct {
	cfg    Config
	repo   repository.LedgerRepositoryInterface
	clock  clock.Clock
	policy Policy

	mux          sync.RWMutex
	participants *OrderedMap[common.Address, *models.Participant]
	state        *models.TokenState

	hooksMux sync.Mutex
	hooks    []Hook
}

// NewToken loads the ledger from repo, minting the supply to the token's own
// balance on first use.
func NewToken(repo repository.LedgerRepositoryInterface, clk clock.Clock, cfg Config) (*Token, error) {
	if cfg.Terms == (Terms{}) {
		cfg.Terms = DefaultTerms()
	}
	if cfg.InitialValuation == 0 {
		cfg.InitialValuation = DefaultProjectValuation
	}

	t := &Token{
		cfg:          cfg,
		repo:         repo,
		clock:        clk,
		policy:       OwnerPolicy{Owner: cfg.Owner},
		participants: NewOrderedMap[common.Address, *models.Participant](),
	}

	state, err := repo.LoadState()
	if err != nil {
		return nil, fmt.Errorf("load token state: %w", err)
	}
	if state == nil {
		state = &models.TokenState{
			AllocatedTotal:   new(big.Int),
			PoolBalance:      TotalSupply(),
			ProjectValuation: cfg.InitialValuation,
		}
		if err := repo.Commit(&repository.Changeset{State: state}); err != nil {
			return nil, fmt.Errorf("mint supply: %w", err)
		}
		logger.Logger.Info("Minted supply to token",
			zap.String("token", cfg.Address.Hex()), zap.String("supply", state.PoolBalance.String()))
	}
	t.state = state

	participants, err := repo.LoadParticipants()
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	for _, p := range participants {
		t.participants.Put(p.Wallet, p)
	}
	return t, nil
}

// SetPolicy replaces the authorization policy for administrative operations.
func (t *Token) SetPolicy(p Policy) {
	t.mux.Lock()
	defer t.mux.Unlock()
	t.policy = p
}

// AcceptHook registers a hook
func (t *Token) AcceptHook(h Hook) {
	t.hooksMux.Lock()
	defer t.hooksMux.Unlock()
	t.hooks = append(t.hooks, h)
}

func (t *Token) dispatch(ctx context.Context, events []*models.Event) {
	t.hooksMux.Lock()
	hooks := make([]Hook, len(t.hooks))
	copy(hooks, t.hooks)
	t.hooksMux.Unlock()

	for _, e := range events {
		for _, h := range hooks {
			h.OnEvent(ctx, e)
		}
	}
}

// Admin returns the administrative capability for caller, or ErrUnauthorized.
func (t *Token) Admin(caller common.Address) (*Admin, error) {
	t.mux.RLock()
	policy := t.policy
	t.mux.RUnlock()

	if err := policy.Authorize(caller); err != nil {
		logger.Logger.Warn("Rejected admin access", zap.String("caller", caller.Hex()))
		return nil, err
	}
	return &Admin{token: t, caller: caller}, nil
}

func (t *Token) now() int64 {
	return t.clock.Now().Unix()
}

// Now returns the token's current time in unix seconds.
func (t *Token) Now() int64 {
	return t.now()
}

func (t *Token) newEvent(kind models.EventKind, wallet common.Address, amount *big.Int) *models.Event {
	now := t.clock.Now()
	return &models.Event{
		ID:        xid.NewWithTime(now).String(),
		Kind:      kind,
		Wallet:    wallet,
		Amount:    amount,
		Timestamp: now.Unix(),
	}
}

// commit persists cs and then applies it to memory. Must hold t.mux.
func (t *Token) commit(cs *repository.Changeset) error {
	if err := t.repo.Commit(cs); err != nil {
		return err
	}
	for _, p := range cs.Added {
		t.participants.Put(p.Wallet, p)
	}
	for _, p := range cs.Updated {
		t.participants.Put(p.Wallet, p)
	}
	if cs.State != nil {
		t.state = cs.State
	}
	return nil
}

// AddParticipant registers wallet with percentage of the total supply.
func (a *Admin) AddParticipant(ctx context.Context, firstName, lastName string, wallet common.Address, percentage uint64) (*models.Participant, error) {
	t := a.token
	t.mux.Lock()

	if wallet == (common.Address{}) || wallet == t.cfg.Address {
		t.mux.Unlock()
		return nil, reject(ErrInvalidInput, ReasonInvalidWallet)
	}
	if percentage == 0 || percentage > 100 {
		t.mux.Unlock()
		return nil, reject(ErrInvalidInput, ReasonInvalidPercentage)
	}
	if t.participants.Has(wallet) {
		t.mux.Unlock()
		return nil, reject(ErrDuplicateEntity, ReasonAlreadyExists)
	}

	allocation := AllocationFor(percentage)
	allocated := new(big.Int).Add(t.state.AllocatedTotal, allocation)
	if allocated.Cmp(totalSupply) > 0 {
		t.mux.Unlock()
		return nil, reject(ErrCapacityExceeded, ReasonExceedsSupply)
	}

	p := &models.Participant{
		FirstName:       firstName,
		LastName:        lastName,
		Wallet:          wallet,
		TotalAllocation: allocation,
		ClaimedAmount:   new(big.Int),
		CliffDuration:   int64(t.cfg.Terms.CliffDuration.Seconds()),
		VestingDuration: int64(t.cfg.Terms.VestingDuration.Seconds()),
		IsActive:        true,
		Index:           t.state.ParticipantCount,
	}
	state := t.state.Clone()
	state.AllocatedTotal = allocated
	state.ParticipantCount++

	e := t.newEvent(models.EventParticipantAdded, wallet, new(big.Int).Set(allocation))
	e.Attributes = map[string]string{"first_name": firstName, "last_name": lastName}

	if err := t.commit(&repository.Changeset{Added: []*models.Participant{p}, State: state, Events: []*models.Event{e}}); err != nil {
		t.mux.Unlock()
		return nil, fmt.Errorf("add participant: %w", err)
	}
	out := p.Clone()
	t.mux.Unlock()

	logger.Logger.Info("Participant added",
		zap.String("wallet", wallet.Hex()),
		zap.Uint64("percentage", percentage),
		zap.String("allocation", allocation.String()))
	t.dispatch(ctx, []*models.Event{e})
	return out, nil
}

// StartVesting sets the vesting start of every active participant to the
// current time. Calling it again restarts every active participant's clock.
func (a *Admin) StartVesting(ctx context.Context) (int64, error) {
	t := a.token
	t.mux.Lock()

	if t.participants.Len() == 0 {
		t.mux.Unlock()
		return 0, reject(ErrInvalidInput, ReasonNoParticipants)
	}

	now := t.now()
	// a zero start time reads as "not started"
	if now <= 0 {
		t.mux.Unlock()
		return 0, reject(ErrInvalidInput, ReasonClockNotSet)
	}
	if t.state.VestingStartedAt != 0 {
		logger.Logger.Warn("Vesting restarted, active participant clocks reset",
			zap.Int64("previous_start", t.state.VestingStartedAt), zap.Int64("start", now))
	}

	var updated []*models.Participant
	t.participants.Each(func(_ common.Address, p *models.Participant) bool {
		if p.IsActive {
			c := p.Clone()
			c.VestingStartTime = now
			updated = append(updated, c)
		}
		return true
	})
	state := t.state.Clone()
	state.VestingStartedAt = now

	e := t.newEvent(models.EventVestingStarted, common.Address{}, nil)
	e.Attributes = map[string]string{"participants": strconv.Itoa(len(updated))}

	if err := t.commit(&repository.Changeset{Updated: updated, State: state, Events: []*models.Event{e}}); err != nil {
		t.mux.Unlock()
		return 0, fmt.Errorf("start vesting: %w", err)
	}
	t.mux.Unlock()

	logger.Logger.Info("Vesting started", zap.Int64("start", now), zap.Int("participants", len(updated)))
	t.dispatch(ctx, []*models.Event{e})
	return now, nil
}

// SetParticipantStatus overwrites the active and leaver flags of wallet.
func (a *Admin) SetParticipantStatus(ctx context.Context, wallet common.Address, isActive, isLeaver bool) (*models.Participant, error) {
	t := a.token
	t.mux.Lock()

	p, ok := t.participants.Get(wallet)
	if !ok {
		t.mux.Unlock()
		return nil, reject(ErrNotFound, ReasonDoesNotExist)
	}
	c := p.Clone()
	c.IsActive = isActive
	c.IsLeaver = isLeaver

	e := t.newEvent(models.EventStatusChanged, wallet, nil)
	e.Attributes = map[string]string{
		"is_active": strconv.FormatBool(isActive),
		"is_leaver": strconv.FormatBool(isLeaver),
	}

	if err := t.commit(&repository.Changeset{Updated: []*models.Participant{c}, Events: []*models.Event{e}}); err != nil {
		t.mux.Unlock()
		return nil, fmt.Errorf("set participant status: %w", err)
	}
	out := c.Clone()
	t.mux.Unlock()

	logger.Logger.Info("Participant status changed",
		zap.String("wallet", wallet.Hex()), zap.Bool("is_active", isActive), zap.Bool("is_leaver", isLeaver))
	t.dispatch(ctx, []*models.Event{e})
	return out, nil
}

// UpdateProjectValuation sets the valuation used to price the token.
func (a *Admin) UpdateProjectValuation(ctx context.Context, usd uint64) error {
	t := a.token
	t.mux.Lock()

	if usd == 0 {
		t.mux.Unlock()
		return reject(ErrInvalidInput, ReasonInvalidValuation)
	}
	state := t.state.Clone()
	state.ProjectValuation = usd

	e := t.newEvent(models.EventValuationUpdated, common.Address{}, nil)
	e.Attributes = map[string]string{"valuation": strconv.FormatUint(usd, 10)}

	if err := t.commit(&repository.Changeset{State: state, Events: []*models.Event{e}}); err != nil {
		t.mux.Unlock()
		return fmt.Errorf("update valuation: %w", err)
	}
	t.mux.Unlock()

	logger.Logger.Info("Project valuation updated", zap.Uint64("valuation", usd))
	t.dispatch(ctx, []*models.Event{e})
	return nil
}

// ClaimVestedTokens pays caller everything vested and not yet claimed. The
// claimed amount and the balances are committed before any hook runs, so a
// claim re-entered from a hook finds nothing left.
func (t *Token) ClaimVestedTokens(ctx context.Context, caller common.Address) (*big.Int, error) {
	t.mux.Lock()

	p, ok := t.participants.Get(caller)
	if !ok {
		t.mux.Unlock()
		return nil, reject(ErrUnauthorized, ReasonNotParticipant)
	}
	if !p.IsActive || p.IsLeaver {
		t.mux.Unlock()
		return nil, reject(ErrUnauthorized, ReasonNotActive)
	}

	claimable := Vested(p, t.now())
	if claimable.Sign() == 0 {
		t.mux.Unlock()
		return nil, reject(ErrNothingToClaim, ReasonNothingToClaim)
	}

	c := p.Clone()
	c.ClaimedAmount.Add(c.ClaimedAmount, claimable)
	state := t.state.Clone()
	state.PoolBalance.Sub(state.PoolBalance, claimable)

	e := t.newEvent(models.EventTokensClaimed, caller, new(big.Int).Set(claimable))

	if err := t.commit(&repository.Changeset{Updated: []*models.Participant{c}, State: state, Events: []*models.Event{e}}); err != nil {
		t.mux.Unlock()
		return nil, fmt.Errorf("claim: %w", err)
	}
	t.mux.Unlock()

	logger.Logger.Info("Tokens claimed",
		zap.String("wallet", caller.Hex()),
		zap.String("amount", claimable.String()),
		zap.String("claimed_total", c.ClaimedAmount.String()))
	t.dispatch(ctx, []*models.Event{e})
	return claimable, nil
}

// Transfer is disabled: claims are the only way tokens move.
func (t *Token) Transfer(ctx context.Context, caller, to common.Address, amount *big.Int) error {
	logger.Logger.Warn("Rejected direct transfer",
		zap.String("from", caller.Hex()), zap.String("to", to.Hex()))
	return reject(ErrOperationNotPermitted, ReasonTransfersDisabled)
}

// TransferFrom is disabled, see Transfer.
func (t *Token) TransferFrom(ctx context.Context, caller, from, to common.Address, amount *big.Int) error {
	logger.Logger.Warn("Rejected direct transferFrom",
		zap.String("caller", caller.Hex()), zap.String("from", from.Hex()), zap.String("to", to.Hex()))
	return reject(ErrOperationNotPermitted, ReasonTransfersDisabled)
}
