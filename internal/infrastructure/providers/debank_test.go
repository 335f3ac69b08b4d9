package providers

import (
	"testing"

	"go.uber.org/zap"
)

func TestReconcileWalletBalance(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name     string
		wallet   float64
		protocol float64
		total    float64
		want     float64
	}{
		{"consistent positive wallet", 50, 100, 150, 50},
		{"small negative rounds to zero", -0.5, 100.5, 100, 0},
		{"boundary just above minus one rounds", -0.99, 101, 100, 0},
		{"large negative passes through", -5, 105, 100, -5},
		{"exactly minus one passes through", -1, 101, 100, -1},
		{"zero wallet", 0, 100, 100, 0},
		{"mismatch still returns wallet", 60, 100, 150, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reconcileWalletBalance(logger, tt.wallet, tt.protocol, tt.total)
			if got != tt.want {
				t.Errorf("reconcileWalletBalance(%f, %f, %f) = %f, want %f",
					tt.wallet, tt.protocol, tt.total, got, tt.want)
			}
		})
	}
}

func TestSumProtocolBalance(t *testing.T) {
	protocols := []DebankProtocol{
		{
			PortfolioItems: []DebankPortfolioItem{
				{Stats: DebankItemStats{NetUsdValue: 100}},
				{Stats: DebankItemStats{NetUsdValue: 50}},
			},
		},
		{
			PortfolioItems: []DebankPortfolioItem{
				{Stats: DebankItemStats{NetUsdValue: -25}},
			},
		},
	}

	if got := sumProtocolBalance(protocols); got != 125 {
		t.Errorf("expected 125, got %f", got)
	}
}
