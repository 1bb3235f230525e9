package vesting

import "errors"

// Error kinds. Every rejected operation returns an *Error whose Kind is one
// of these, so callers can branch with errors.Is.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrDuplicateEntity       = errors.New("duplicate entity")
	ErrCapacityExceeded      = errors.New("capacity exceeded")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNothingToClaim        = errors.New("nothing to claim")
	ErrOperationNotPermitted = errors.New("operation not permitted")
	ErrNotFound              = errors.New("not found")
)

// Error carries the kind of a rejection and the reason shown to the caller.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func reject(kind error, reason string) error {
	return &Error{Kind: kind, Reason: reason}
}

// Reasons reported to callers.
const (
	ReasonInvalidWallet     = "Invalid wallet address"
	ReasonInvalidPercentage = "Invalid allocation percentage"
	ReasonAlreadyExists     = "Participant already exists"
	ReasonExceedsSupply     = "Total allocation exceeds supply"
	ReasonNoParticipants    = "No participants added"
	ReasonDoesNotExist      = "Participant does not exist"
	ReasonNotParticipant    = "Not a participant"
	ReasonNotActive         = "Participant is not active"
	ReasonNothingToClaim    = "No tokens available for claim"
	ReasonTransfersDisabled = "Direct transfers not allowed. Use claimVestedTokens()"
	ReasonNotOwner          = "Caller is not the owner"
	ReasonInvalidValuation  = "Valuation must be greater than zero"
	ReasonIndexOutOfBounds  = "Index out of bounds"
	ReasonClockNotSet       = "Block time is not set"
)
