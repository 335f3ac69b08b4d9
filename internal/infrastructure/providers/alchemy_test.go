package providers

import (
	"testing"
)

func TestParseTokenBalance(t *testing.T) {
	tests := []struct {
		name       string
		balanceHex string
		decimals   int
		want       float64
	}{
		{"one token 18 decimals", "0xde0b6b3a7640000", 18, 1.0},
		{"hundred usdc 6 decimals", "0x5f5e100", 6, 100.0},
		{"zero balance", "0x0", 18, 0},
		{"padded response", "0x0000000000000000000000000000000000000000000000000de0b6b3a7640000", 18, 1.0},
		{"zero decimals defaults to 18", "0xde0b6b3a7640000", 0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTokenBalance(tt.balanceHex, tt.decimals)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseTokenBalance(%s, %d) = %f, want %f", tt.balanceHex, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestParseTokenBalance_Invalid(t *testing.T) {
	if _, err := ParseTokenBalance("not hex", 18); err == nil {
		t.Error("expected error for invalid hex")
	}
	if _, err := ParseTokenBalance("", 18); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestDecodeHexBalance(t *testing.T) {
	raw, err := decodeHexBalance("0xff")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.Int64() != 255 {
		t.Errorf("expected 255, got %d", raw.Int64())
	}

	// Alchemy zero-pads balances to 32 bytes; leading zeros must parse
	raw, err = decodeHexBalance("0x00000000000000000000000000000000000000000000000000000000000000ff")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.Int64() != 255 {
		t.Errorf("expected 255, got %d", raw.Int64())
	}
}
