/*
Package subrpc contains a set of types used for JSON-RPC communication with
Substrate nodes. It defines basic request/response/notification types as well
as the error taxonomy shared by the client packages.
*/
package subrpc

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	// JSONRPCVersion is the only JSON-RPC protocol version supported.
	JSONRPCVersion = "2.0"
)

type (
	// Request represents JSON-RPC request. Substrate nodes expect params to be
	// an array for every method used by this client.
	Request struct {
		// JSONRPC is the protocol version, only valid when it contains JSONRPCVersion.
		JSONRPC string `json:"jsonrpc"`
		// Method is the method being called.
		Method string `json:"method"`
		// Params is a set of method-specific parameters passed to the call. They
		// can be anything as long as they can be marshaled to JSON correctly.
		Params []any `json:"params"`
		// ID is an identifier associated with this request. The client uses
		// numeric identifiers to multiplex requests over a single connection.
		ID uint64 `json:"id"`
	}

	// Header is a generic JSON-RPC 2.0 response header (ID and JSON-RPC version).
	Header struct {
		ID      json.RawMessage `json:"id"`
		JSONRPC string          `json:"jsonrpc"`
	}

	// HeaderAndError adds an Error (that can be empty) to the Header.
	HeaderAndError struct {
		Header
		Error *Error `json:"error,omitempty"`
	}

	// Response represents a standard raw JSON-RPC 2.0
	// response: http://www.jsonrpc.org/specification#response_object.
	Response struct {
		HeaderAndError
		Result json.RawMessage `json:"result,omitempty"`
	}

	// Notification is a subscription push. It looks like a request without ID,
	// its "method" is the event name (like "chain_newHead") and params
	// carry subscription ID along with the payload.
	Notification struct {
		JSONRPC string             `json:"jsonrpc"`
		Method  string             `json:"method"`
		Params  NotificationParams `json:"params"`
	}

	// NotificationParams is the object Substrate puts into notification params.
	NotificationParams struct {
		Subscription SubscriptionID  `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	}

	// SubscriptionID is a node-assigned subscription identifier. Nodes use
	// either strings or numbers for it, both are normalized to string.
	SubscriptionID string
)

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *SubscriptionID) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = SubscriptionID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = SubscriptionID(num.String())
	return nil
}

// NumericID returns numeric response ID, ok is false for non-numeric ones.
func (h *Header) NumericID() (uint64, bool) {
	if len(h.ID) == 0 {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.Trim(string(h.ID), `"`), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
