package actus

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/warp/actus-engine/generic"
)

// contractNamespace scopes derived contract IDs.
var contractNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("actus-engine/contracts"))

// NewContractID returns the terms' own ContractID when set. Otherwise it
// derives a UUIDv5 from the deployment time and the terms, so deploying the
// same terms at the same time twice collides with ErrContractExists.
func NewContractID(terms ContractTerms, t0 generic.TimePoint) (generic.ContractID, error) {
	if terms.ContractID != "" {
		return generic.ContractID(terms.ContractID), nil
	}
	payload, err := json.Marshal(struct {
		DeployedAt generic.TimePoint `json:"deployed_at"`
		Terms      ContractTerms     `json:"terms"`
	}{t0, terms})
	if err != nil {
		return "", err
	}
	return generic.ContractID(uuid.NewSHA1(contractNamespace, payload).String()), nil
}
