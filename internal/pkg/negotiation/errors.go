package negotiation

import (
	"errors"
	"fmt"
)

var (
	ErrThreadNotFound   = errors.New("Negotiation not found")
	ErrQuoteMismatch    = errors.New("Quote ID does not match this negotiation")
	ErrThreadNotActive  = errors.New("Negotiation is no longer active")
	ErrNotParticipant   = errors.New("User is not a participant in this negotiation")
	ErrMaxRounds        = errors.New("Maximum negotiation rounds reached")
	ErrConcurrentUpdate = errors.New("negotiation was updated concurrently, please retry")
	ErrQANotFound       = errors.New("Question not found")
	ErrAlreadyAnswered  = errors.New("This question has already been answered")
	ErrSelfAnswer       = errors.New("You cannot answer your own question")
	ErrOfferNotFound    = errors.New("Offer not found or already resolved")
	ErrOwnOffer         = errors.New("You cannot respond to your own offer")
	ErrUnknownAction    = errors.New("Unknown action")
)

// errLostRace marks a compare-and-swap that changed no rows. It never leaves
// the package; callers re-read and translate it.
var errLostRace = errors.New("round_count changed underneath")

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// detailedError carries a request-specific message while still matching its
// sentinel with errors.Is.
type detailedError struct {
	base error
	msg  string
}

func (e *detailedError) Error() string { return e.msg }
func (e *detailedError) Unwrap() error { return e.base }

func withMessage(base error, format string, args ...interface{}) error {
	return &detailedError{base: base, msg: fmt.Sprintf(format, args...)}
}

func maxRoundsError(maxRounds int) error {
	return withMessage(ErrMaxRounds, "Maximum negotiation rounds (%d) reached. Please accept or decline the current offer.", maxRounds)
}

func notActiveError(status string) error {
	return withMessage(ErrThreadNotActive, "Negotiation is %s. Cannot submit new offers.", status)
}
