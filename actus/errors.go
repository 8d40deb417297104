package actus

import (
	"errors"
	"fmt"
	"strings"

	"github.com/warp/actus-engine/generic"
)

// =============================================================================
// STRUCTURED ERRORS - Wrap the sentinels in generic/errors.go
// =============================================================================

// ValidationError is a single term violation with a stable code.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error { return generic.ErrValidation }

// ValidationErrors collects every violation found in one pass.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(v), strings.Join(msgs, "; "))
}

func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e
	}
	return errs
}

// Codes returns the violation codes in discovery order.
func (v ValidationErrors) Codes() []string {
	codes := make([]string, len(v))
	for i, e := range v {
		codes[i] = e.Code
	}
	return codes
}

// Has reports whether code is among the violations.
func (v ValidationErrors) Has(code string) bool {
	for _, e := range v {
		if e.Code == code {
			return true
		}
	}
	return false
}

// AsValidationErrors extracts the violation list from err.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var v ValidationErrors
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// UnsupportedOperationError names a (contract type, event type) combination
// without a function pair.
type UnsupportedOperationError struct {
	ContractType ContractTypeCode
	EventType    *generic.EventType
}

func (e *UnsupportedOperationError) Error() string {
	if e.EventType == nil {
		return fmt.Sprintf("unsupported contract type %q", e.ContractType)
	}
	return fmt.Sprintf("contract type %s does not support event %s", e.ContractType, *e.EventType)
}

func (e *UnsupportedOperationError) Unwrap() error { return generic.ErrUnsupportedOperation }

// LookupError is returned when an oracle cannot supply a market observation.
type LookupError struct {
	MarketObjectCode string
	Err              error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("oracle lookup %q: %v", e.MarketObjectCode, e.Err)
}

func (e *LookupError) Unwrap() []error { return []error{generic.ErrLookup, e.Err} }

// ApplyError reports a failed event application. The contract stays at
// Index until the event succeeds.
type ApplyError struct {
	ContractID generic.ContractID
	Index      int
	Event      generic.Event
	Err        error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("contract %s event %d (%s): %v", e.ContractID, e.Index, e.Event, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }
