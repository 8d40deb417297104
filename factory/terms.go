/*
Package factory provides JSON to Go contract term conversion.

PURPOSE:
  Converts JSON contract definitions into actus.ContractTerms and wires the
  contract types into an engine. Contracts can be deployed without code
  changes: a client posts ACTUS terms as JSON, the factory decodes them and
  the engine validates them.

JSON SCHEMA:
  Attribute names follow the ACTUS data dictionary in camelCase. Numbers
  may be JSON numbers or decimal strings; dates are "2006-01-02" or
  "2006-01-02T15:04:05"; cycles are "P<n><D|W|M|Q|H|Y>L<0|1>".

  {
    "contractType": "PAM",
    "contractRole": "RPA",
    "statusDate": "2024-01-01",
    "creatorID": "bank",
    "counterpartyID": "alice",
    "currency": "USD",
    "initialExchangeDate": "2024-01-02",
    "maturityDate": "2027-01-02",
    "notionalPrincipal": "1000",
    "nominalInterestRate": "0.05",
    "dayCountConvention": "30E360",
    "cycleOfInterestPayment": "P1YL0"
  }

KEY FEATURES:
  - Rejects unknown attribute names, so a misspelled term fails loudly
    instead of silently defaulting
  - Leaves validation to actus.Validate so every violation is reported
    with its code

USAGE:
  factory := NewTermsFactory()

  // From JSON string
  terms, err := factory.ParseTerms(jsonString)

  // From a contract-type preset (recommended)
  import "github.com/warp/actus-engine/pam"
  jsonStr := pam.BulletLoanJSON("bank", "alice", "USD", 1000, 0.05, "2024-01-02", "2027-01-02", "P1YL0")
  terms, err := factory.ParseTerms(jsonStr)

  // Use in system
  scheduler.Deploy(ctx, t0, terms)

SEE ALSO:
  - actus/terms.go: ContractTerms definition
  - pam/presets.go, ann/presets.go: preset term builders
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/ann"
	"github.com/warp/actus-engine/pam"
)

// ErrMalformedTerms is returned when the JSON cannot be decoded into terms.
var ErrMalformedTerms = errors.New("malformed contract terms")

// =============================================================================
// TERMS FACTORY
// =============================================================================

// TermsFactory converts JSON terms to Go structs.
type TermsFactory struct{}

// NewTermsFactory creates a new terms factory.
func NewTermsFactory() *TermsFactory {
	return &TermsFactory{}
}

// ParseTerms parses a JSON string into ContractTerms.
func (f *TermsFactory) ParseTerms(jsonStr string) (actus.ContractTerms, error) {
	return f.FromJSON([]byte(jsonStr))
}

// FromJSON decodes one JSON object into ContractTerms. Unknown attributes
// and trailing data are errors.
func (f *TermsFactory) FromJSON(data []byte) (actus.ContractTerms, error) {
	var terms actus.ContractTerms

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&terms); err != nil {
		return actus.ContractTerms{}, fmt.Errorf("%w: %w", ErrMalformedTerms, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return actus.ContractTerms{}, fmt.Errorf("%w: trailing data after terms", ErrMalformedTerms)
	}
	return terms, nil
}

// ParseAndValidate decodes terms and runs every validation layer.
func (f *TermsFactory) ParseAndValidate(jsonStr string) (actus.ContractTerms, error) {
	terms, err := f.ParseTerms(jsonStr)
	if err != nil {
		return terms, err
	}
	if errs := actus.Validate(&terms); errs != nil {
		return terms, errs
	}
	return terms, nil
}

// ToJSON converts terms back to their JSON form.
func (f *TermsFactory) ToJSON(terms actus.ContractTerms) (string, error) {
	b, err := json.MarshalIndent(terms, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// =============================================================================
// ENGINE WIRING
// =============================================================================

// NewEngine returns an engine with every supported contract type registered.
func NewEngine() *actus.Engine {
	return actus.NewEngine(pam.New(), ann.New())
}
