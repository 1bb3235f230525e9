package routers

import (
	"equity-token/handlers"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up all the HTTP routes for the ledger
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {

	// Registers a participant with a share of the supply (owner only)
	r.HandleFunc("/participants", h.AddParticipant).Methods("POST")
	r.HandleFunc("/participants", h.ListParticipants).Methods("GET")

	// Must be registered before /participants/{wallet}
	r.HandleFunc("/participants/count", h.ParticipantCount).Methods("GET")
	r.HandleFunc("/participants/index/{index}", h.GetParticipantByIndex).Methods("GET")

	r.HandleFunc("/participants/{wallet}", h.GetParticipant).Methods("GET")
	r.HandleFunc("/participants/{wallet}/status", h.SetParticipantStatus).Methods("PUT")
	r.HandleFunc("/participants/{wallet}/vested", h.GetVestedBalance).Methods("GET")

	// Starts (or restarts) the vesting clock for every active participant
	r.HandleFunc("/vesting/start", h.StartVesting).Methods("POST")
	r.HandleFunc("/vesting/claim", h.ClaimVestedTokens).Methods("POST")

	// Always rejected
	r.HandleFunc("/transfer", h.Transfer).Methods("POST")
	r.HandleFunc("/transfer-from", h.TransferFrom).Methods("POST")

	r.HandleFunc("/balances/{address}", h.GetBalance).Methods("GET")
	r.HandleFunc("/token", h.GetTokenInfo).Methods("GET")
	r.HandleFunc("/token/valuation", h.UpdateValuation).Methods("PUT")
	r.HandleFunc("/events", h.ListEvents).Methods("GET")

	// Checks supply invariants against the participant records
	r.HandleFunc("/ledger/validate", h.ValidateLedger).Methods("GET")
}
