package result

import (
	"encoding/json"
	"fmt"
	"strings"
)

type (
	// RuntimeVersion is the state_getRuntimeVersion response. Spec and
	// transaction versions are used to sign extrinsics.
	RuntimeVersion struct {
		SpecName           string       `json:"specName"`
		ImplName           string       `json:"implName"`
		AuthoringVersion   uint32       `json:"authoringVersion"`
		SpecVersion        uint32       `json:"specVersion"`
		ImplVersion        uint32       `json:"implVersion"`
		APIs               []RuntimeAPI `json:"apis"`
		TransactionVersion uint32       `json:"transactionVersion"`
		StateVersion       uint8        `json:"stateVersion,omitempty"`
	}

	// RuntimeAPI is a runtime API implemented by the node. ID is the
	// 0x-prefixed hex of blake2b-64 over the API name.
	RuntimeAPI struct {
		ID      string
		Version uint32
	}
)

// MarshalJSON implements the json.Marshaler interface.
func (a RuntimeAPI) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{a.ID, a.Version})
}

// UnmarshalJSON implements the json.Unmarshaler interface. APIs are
// represented as two-element arrays on the wire.
func (a *RuntimeAPI) UnmarshalJSON(data []byte) error {
	var aux []json.RawMessage
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux) != 2 {
		return fmt.Errorf("runtime API: expected 2 elements, got %d", len(aux))
	}
	if err := json.Unmarshal(aux[0], &a.ID); err != nil {
		return fmt.Errorf("runtime API id: %w", err)
	}
	if err := json.Unmarshal(aux[1], &a.Version); err != nil {
		return fmt.Errorf("runtime API version: %w", err)
	}
	return nil
}

// HasAPI checks whether the runtime implements an API with the given id.
func (v *RuntimeVersion) HasAPI(id string) bool {
	for _, a := range v.APIs {
		if strings.EqualFold(a.ID, id) {
			return true
		}
	}
	return false
}
