package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawPosition is one provider-supplied position record inside a protocol
// group. The payload schema evolves upstream, so unknown fields are dropped
// on decode but the known set round-trips through parse/serialize.
type RawPosition struct {
	TokenSymbol     string  `json:"token_symbol"`
	TokenName       string  `json:"token_name"`
	Balance         float64 `json:"balance"`
	UsdValue        float64 `json:"usd_value"`
	ContractAddress string  `json:"contract_address,omitempty"`
	Chain           string  `json:"chain,omitempty"`
	IsDebt          bool    `json:"is_debt"`
	LogoURL         string  `json:"logo_url,omitempty"`
	IconURL         string  `json:"icon_url,omitempty"`
}

// RawProtocolGroup is an ordered set of positions under one protocol
type RawProtocolGroup struct {
	ID         string        `json:"id,omitempty"`
	Name       string        `json:"name"`
	Type       string        `json:"type,omitempty"`
	LogoURL    string        `json:"logo_url,omitempty"`
	IconURL    string        `json:"icon_url,omitempty"`
	HealthRate *float64      `json:"health_rate,omitempty"`
	Positions  []RawPosition `json:"positions"`
}

// DecodePositionsPayload decodes a stored defi_positions payload. The stored
// text may be a JSON array of protocol groups, a single group object, a
// double-encoded JSON string containing either, or absent. Absent and empty
// payloads decode to an empty set without error.
func DecodePositionsPayload(payload *string) ([]RawProtocolGroup, error) {
	if payload == nil || *payload == "" {
		return nil, nil
	}
	return decodePositionsJSON([]byte(*payload))
}

func decodePositionsJSON(data []byte) ([]RawProtocolGroup, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	switch data[0] {
	case '"':
		// Double-encoded payload: unwrap the string and decode its contents
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("invalid string payload: %w", err)
		}
		return decodePositionsJSON([]byte(inner))
	case '[':
		var groups []RawProtocolGroup
		if err := json.Unmarshal(data, &groups); err != nil {
			return nil, fmt.Errorf("invalid array payload: %w", err)
		}
		return groups, nil
	case '{':
		var group RawProtocolGroup
		if err := json.Unmarshal(data, &group); err != nil {
			return nil, fmt.Errorf("invalid object payload: %w", err)
		}
		return []RawProtocolGroup{group}, nil
	default:
		return nil, fmt.Errorf("unexpected payload shape starting with %q", data[0])
	}
}

// EncodePositionsPayload serializes protocol groups for storage
func EncodePositionsPayload(groups []RawProtocolGroup) (string, error) {
	if groups == nil {
		groups = []RawProtocolGroup{}
	}
	data, err := json.Marshal(groups)
	if err != nil {
		return "", fmt.Errorf("failed to encode positions payload: %w", err)
	}
	return string(data), nil
}

// NormalizedPosition is the canonical, ephemeral view of one DeFi position.
// It is recomputed from the stored payload on every read, never persisted.
type NormalizedPosition struct {
	AccountID       int64    `json:"account_id"`
	Address         string   `json:"address"`
	Chain           string   `json:"chain"`
	ProtocolID      string   `json:"protocol_id"`
	ProtocolName    string   `json:"protocol_name"`
	ProtocolType    string   `json:"protocol_type"`
	ProtocolIconURL string   `json:"protocol_icon_url,omitempty"`
	TokenSymbol     string   `json:"token_symbol"`
	TokenName       string   `json:"token_name"`
	TokenIconURL    string   `json:"token_icon_url,omitempty"`
	Balance         float64  `json:"balance"`
	UsdValue        float64  `json:"usd_value"`
	IsDebt          bool     `json:"is_debt"`
	HealthRate      *float64 `json:"health_rate,omitempty"`
}

// NewNormalizedPosition builds a position enforcing the debt sign convention:
// a debt position always carries a non-positive usd_value, regardless of the
// sign the provider delivered.
func NewNormalizedPosition(p NormalizedPosition) NormalizedPosition {
	if p.IsDebt && p.UsdValue > 0 {
		p.UsdValue = -p.UsdValue
	}
	return p
}

// ProtocolKey is the grouping key for protocol-level aggregation: the same
// protocol instance on the same chain always maps to the same key.
func (p *NormalizedPosition) ProtocolKey() string {
	return p.ProtocolID + "_" + p.Chain
}

// Supplied reports whether the position is an asset (not debt)
func (p *NormalizedPosition) Supplied() bool {
	return !p.IsDebt
}

// AbsValue returns the absolute USD value
func (p *NormalizedPosition) AbsValue() float64 {
	if p.UsdValue < 0 {
		return -p.UsdValue
	}
	return p.UsdValue
}

// ProtocolDescriptor describes a detected DeFi receipt token
type ProtocolDescriptor struct {
	ProtocolKey  string
	ProtocolName string
	Type         string
	IsDebt       bool

	// EstimatedPeg is a fallback unit price for stable-pegged tokens,
	// used only when the live price lookup misses
	EstimatedPeg *float64
}
