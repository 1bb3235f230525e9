package handlers

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"equity-token/logger"
	"equity-token/models"
	"equity-token/vesting"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CallerHeader carries the address the request is made on behalf of
const CallerHeader = "X-Caller-Address"

// Handler contains the HTTP handlers for the ledger API endpoints
type Handler struct {
	Token *vesting.Token
}

// NewHandler creates and returns a new Handler instance
func NewHandler(t *vesting.Token) *Handler {
	return &Handler{Token: t}
}

type participantView struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Wallet           string `json:"wallet"`
	TotalAllocation  string `json:"total_allocation"`
	ClaimedAmount    string `json:"claimed_amount"`
	VestedBalance    string `json:"vested_balance"`
	VestingStartTime int64  `json:"vesting_start_time"`
	CliffDuration    int64  `json:"cliff_duration"`
	VestingDuration  int64  `json:"vesting_duration"`
	IsActive         bool   `json:"is_active"`
	IsLeaver         bool   `json:"is_leaver"`
	Index            uint64 `json:"index"`
}

// view renders p with its vested balance at now; callers read the clock once
// per request so claimed and vested come from the same snapshot.
func view(p *models.Participant, now int64) participantView {
	return participantView{
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		Wallet:           p.Wallet.Hex(),
		TotalAllocation:  p.TotalAllocation.String(),
		ClaimedAmount:    p.ClaimedAmount.String(),
		VestedBalance:    vesting.Vested(p, now).String(),
		VestingStartTime: p.VestingStartTime,
		CliffDuration:    p.CliffDuration,
		VestingDuration:  p.VestingDuration,
		IsActive:         p.IsActive,
		IsLeaver:         p.IsLeaver,
		Index:            p.Index,
	}
}

type eventView struct {
	ID         string            `json:"id"`
	Kind       models.EventKind  `json:"kind"`
	Wallet     string            `json:"wallet"`
	Amount     string            `json:"amount,omitempty"`
	Timestamp  int64             `json:"timestamp"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func eventViewOf(e *models.Event) eventView {
	v := eventView{
		ID:         e.ID,
		Kind:       e.Kind,
		Wallet:     e.Wallet.Hex(),
		Timestamp:  e.Timestamp,
		Attributes: e.Attributes,
	}
	if e.Amount != nil {
		v.Amount = e.Amount.String()
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, vesting.ErrInvalidInput):
		return http.StatusBadRequest, "InvalidInput"
	case errors.Is(err, vesting.ErrDuplicateEntity):
		return http.StatusConflict, "DuplicateEntity"
	case errors.Is(err, vesting.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity, "CapacityExceeded"
	case errors.Is(err, vesting.ErrUnauthorized):
		return http.StatusForbidden, "Unauthorized"
	case errors.Is(err, vesting.ErrNothingToClaim):
		return http.StatusConflict, "NothingToClaim"
	case errors.Is(err, vesting.ErrOperationNotPermitted):
		return http.StatusForbidden, "OperationNotPermitted"
	case errors.Is(err, vesting.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	default:
		return http.StatusInternalServerError, "Internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	writeJSON(w, status, map[string]string{"error": err.Error(), "kind": kind})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg, "kind": "InvalidInput"})
}

// caller reads the caller address header. A missing header is the zero address.
func caller(r *http.Request) (common.Address, bool) {
	raw := r.Header.Get(CallerHeader)
	if raw == "" {
		return common.Address{}, true
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func pathAddress(r *http.Request, name string) (common.Address, bool) {
	raw := mux.Vars(r)[name]
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func (h *Handler) admin(w http.ResponseWriter, r *http.Request) (*vesting.Admin, bool) {
	addr, ok := caller(r)
	if !ok {
		badRequest(w, "Invalid caller address")
		return nil, false
	}
	a, err := h.Token.Admin(addr)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return a, true
}

type addParticipantRequest struct {
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	Wallet               string `json:"wallet"`
	AllocationPercentage uint64 `json:"allocation_percentage"`
}

// AddParticipant handles POST requests registering a participant
func (h *Handler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	var req addParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode participant", zap.Error(err))
		badRequest(w, "Invalid request payload")
		return
	}
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}

	// a malformed wallet is treated like the zero address
	var wallet common.Address
	if common.IsHexAddress(req.Wallet) {
		wallet = common.HexToAddress(req.Wallet)
	}

	p, err := admin.AddParticipant(r.Context(), req.FirstName, req.LastName, wallet, req.AllocationPercentage)
	if err != nil {
		logger.Logger.Error("Failed to add participant", zap.String("wallet", req.Wallet), zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":     "Participant added successfully",
		"participant": view(p, h.Token.Now()),
	})
}

// ListParticipants returns every participant in registration order
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	participants := h.Token.Participants()
	now := h.Token.Now()
	views := make([]participantView, 0, len(participants))
	for _, p := range participants {
		views = append(views, view(p, now))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":        len(views),
		"participants": views,
	})
}

// ParticipantCount handles GET requests for the number of participants
func (h *Handler) ParticipantCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": h.Token.ParticipantCount()})
}

// GetParticipant returns one participant by wallet
func (h *Handler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	wallet, ok := pathAddress(r, "wallet")
	if !ok {
		badRequest(w, vesting.ReasonInvalidWallet)
		return
	}
	p, err := h.Token.Participant(wallet)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(p, h.Token.Now()))
}

// GetParticipantByIndex returns the participant registered at a position
func (h *Handler) GetParticipantByIndex(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		badRequest(w, "Invalid index")
		return
	}
	p, err := h.Token.ParticipantByIndex(i)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(p, h.Token.Now()))
}

type statusRequest struct {
	IsActive bool `json:"is_active"`
	IsLeaver bool `json:"is_leaver"`
}

// SetParticipantStatus handles PUT requests changing the active/leaver flags
func (h *Handler) SetParticipantStatus(w http.ResponseWriter, r *http.Request) {
	wallet, ok := pathAddress(r, "wallet")
	if !ok {
		badRequest(w, vesting.ReasonInvalidWallet)
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode status", zap.Error(err))
		badRequest(w, "Invalid request payload")
		return
	}
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}

	p, err := admin.SetParticipantStatus(r.Context(), wallet, req.IsActive, req.IsLeaver)
	if err != nil {
		logger.Logger.Error("Failed to set participant status", zap.String("wallet", wallet.Hex()), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Participant status updated",
		"participant": view(p, h.Token.Now()),
	})
}

// GetVestedBalance returns the amount a wallet can claim now
func (h *Handler) GetVestedBalance(w http.ResponseWriter, r *http.Request) {
	wallet, ok := pathAddress(r, "wallet")
	if !ok {
		badRequest(w, vesting.ReasonInvalidWallet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"wallet": wallet.Hex(),
		"vested": h.Token.VestedBalance(wallet).String(),
	})
}

// StartVesting handles POST requests starting the vesting clock
func (h *Handler) StartVesting(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}
	start, err := admin.StartVesting(r.Context())
	if err != nil {
		logger.Logger.Error("Failed to start vesting", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Vesting started",
		"start_time": start,
	})
}

// ClaimVestedTokens pays the caller what has vested so far
func (h *Handler) ClaimVestedTokens(w http.ResponseWriter, r *http.Request) {
	addr, ok := caller(r)
	if !ok {
		badRequest(w, "Invalid caller address")
		return
	}
	amount, err := h.Token.ClaimVestedTokens(r.Context(), addr)
	if err != nil {
		logger.Logger.Info("Claim rejected", zap.String("wallet", addr.Hex()), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Tokens claimed",
		"wallet":  addr.Hex(),
		"amount":  amount.String(),
		"balance": h.Token.BalanceOf(addr).String(),
	})
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (req transferRequest) amount() *big.Int {
	a, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		return new(big.Int)
	}
	return a
}

// transferArgs decodes what it can of a transfer request. Transfers are
// refused whatever the payload, so bad input is only logged.
func (h *Handler) transferArgs(r *http.Request) (transferRequest, common.Address) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode transfer", zap.Error(err))
	}
	addr, ok := caller(r)
	if !ok {
		logger.Logger.Error("Invalid caller address", zap.String("caller", r.Header.Get(CallerHeader)))
	}
	return req, addr
}

// Transfer always fails; tokens only move through claims
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	req, addr := h.transferArgs(r)
	writeError(w, h.Token.Transfer(r.Context(), addr, common.HexToAddress(req.To), req.amount()))
}

// TransferFrom always fails; tokens only move through claims
func (h *Handler) TransferFrom(w http.ResponseWriter, r *http.Request) {
	req, addr := h.transferArgs(r)
	writeError(w, h.Token.TransferFrom(r.Context(), addr,
		common.HexToAddress(req.From), common.HexToAddress(req.To), req.amount()))
}

// GetBalance returns the token balance of an address
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		badRequest(w, "Invalid address")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": addr.Hex(),
		"balance": h.Token.BalanceOf(addr).String(),
	})
}

// GetTokenInfo returns token metadata, supply figures and price
func (h *Handler) GetTokenInfo(w http.ResponseWriter, r *http.Request) {
	info := h.Token.Info()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":               info.Name,
		"symbol":             info.Symbol,
		"decimals":           info.Decimals,
		"address":            info.Address.Hex(),
		"owner":              info.Owner.Hex(),
		"total_supply":       info.TotalSupply.String(),
		"allocated_total":    info.AllocatedTotal.String(),
		"remaining_supply":   info.RemainingSupply.String(),
		"pool_balance":       info.PoolBalance.String(),
		"participant_count":  info.ParticipantCount,
		"project_valuation":  info.ProjectValuation,
		"token_price":        info.TokenPrice.String(),
		"vesting_started_at": info.VestingStartedAt,
	})
}

type valuationRequest struct {
	Valuation uint64 `json:"valuation"`
}

// UpdateValuation handles PUT requests changing the project valuation
func (h *Handler) UpdateValuation(w http.ResponseWriter, r *http.Request) {
	var req valuationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request payload")
		return
	}
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}
	if err := admin.UpdateProjectValuation(r.Context(), req.Valuation); err != nil {
		logger.Logger.Error("Failed to update valuation", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"project_valuation": h.Token.ProjectValuation(),
		"token_price":       h.Token.TokenPrice().String(),
	})
}

// ListEvents returns the notification log, oldest first
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(w, "Invalid limit")
			return
		}
		limit = n
	}
	events, err := h.Token.Events(limit)
	if err != nil {
		logger.Logger.Error("Failed to read events", zap.Error(err))
		writeError(w, err)
		return
	}
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventViewOf(e))
	}
	writeJSON(w, http.StatusOK, views)
}

// ValidateLedger runs the supply consistency check
func (h *Handler) ValidateLedger(w http.ResponseWriter, r *http.Request) {
	report := h.Token.Validate()
	status := http.StatusOK
	if !report.OK() {
		logger.Logger.Error("Ledger inconsistent", zap.Strings("violations", report.Violations))
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]interface{}{
		"ok":              report.OK(),
		"participants":    report.Participants,
		"allocated_total": report.AllocatedTotal.String(),
		"claimed_total":   report.ClaimedTotal.String(),
		"pool_balance":    report.PoolBalance.String(),
		"violations":      report.Violations,
	})
}
