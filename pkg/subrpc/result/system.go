package result

import "encoding/json"

type (
	// Health is the system_health response.
	Health struct {
		Peers           int  `json:"peers"`
		IsSyncing       bool `json:"isSyncing"`
		ShouldHavePeers bool `json:"shouldHavePeers"`
	}

	// Properties is the system_properties response. Token fields can be
	// either scalars or arrays (for multi-token chains), so they're kept raw.
	Properties struct {
		SS58Format    *uint16         `json:"ss58Format,omitempty"`
		TokenDecimals json.RawMessage `json:"tokenDecimals,omitempty"`
		TokenSymbol   json.RawMessage `json:"tokenSymbol,omitempty"`
	}
)

// Symbol returns the primary token symbol or an empty string.
func (p *Properties) Symbol() string {
	var s string
	if json.Unmarshal(p.TokenSymbol, &s) == nil {
		return s
	}
	var ss []string
	if json.Unmarshal(p.TokenSymbol, &ss) == nil && len(ss) > 0 {
		return ss[0]
	}
	return ""
}

// Decimals returns the primary token decimals or zero.
func (p *Properties) Decimals() uint8 {
	var d uint8
	if json.Unmarshal(p.TokenDecimals, &d) == nil {
		return d
	}
	var ds []uint8
	if json.Unmarshal(p.TokenDecimals, &ds) == nil && len(ds) > 0 {
		return ds[0]
	}
	return 0
}
