package encounter

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateIntent describes an intent that arrived while another
	// mutating call was outstanding. Dispatch absorbs it and returns nil.
	ErrDuplicateIntent = errors.New("a mutating call is already outstanding")

	// ErrIllegalIntent is wrapped by PhaseError.
	ErrIllegalIntent = errors.New("intent not legal in current phase")
)

// ValidationError is returned for missing player input. No call was made.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required %s", e.Field)
}

// InvalidChoiceError is returned when an id is not among the options on offer.
// No call was made.
type InvalidChoiceError struct {
	ID string
}

func (e *InvalidChoiceError) Error() string {
	return fmt.Sprintf("%q is not one of the offered options", e.ID)
}

// TransportError covers network failures and non-success statuses.
type TransportError struct {
	Op     string
	Status int // Zero when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodingError covers malformed responses and responses that violate the
// protocol, such as a turn that continues without offering any choices.
type DecodingError struct {
	Op  string
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("%s: failed to decode response: %v", e.Op, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// PhaseError reports an intent the current phase does not accept.
type PhaseError struct {
	Intent string
	Phase  Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s not allowed while %s", e.Intent, e.Phase)
}

func (e *PhaseError) Unwrap() error { return ErrIllegalIntent }

// classify makes sure a backend failure is one of the two typed call errors.
func classify(op string, err error) error {
	var te *TransportError
	var de *DecodingError
	if errors.As(err, &te) || errors.As(err, &de) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}
