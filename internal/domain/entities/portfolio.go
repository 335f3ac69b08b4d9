package entities

import (
	"time"
)

// TopAsset is one entry in the ranked top-assets list
type TopAsset struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	IconURL    string  `json:"icon_url,omitempty"`
	TotalValue float64 `json:"total_value"`
	Balance    float64 `json:"balance"`
	Percentage float64 `json:"percentage"`
}

// ProtocolStat is one entry in the per-protocol breakdown
type ProtocolStat struct {
	ProtocolID    string   `json:"protocol_id"`
	Name          string   `json:"name"`
	Type          string   `json:"type,omitempty"`
	Chain         string   `json:"chain"`
	IconURL       string   `json:"icon_url,omitempty"`
	NetValue      float64  `json:"net_value"`
	SuppliedValue float64  `json:"supplied_value"`
	BorrowedValue float64  `json:"borrowed_value"`
	HealthRate    *float64 `json:"health_rate,omitempty"`
	PositionCount int      `json:"position_count"`
}

// CategoryTotal holds the total for one portfolio category
type CategoryTotal struct {
	Total float64 `json:"total"`
}

// CategoryBreakdown splits portfolio value into idle and deployed buckets
type CategoryBreakdown struct {
	Idle     CategoryTotal `json:"idle"`
	Deployed CategoryTotal `json:"deployed"`
	Futures  float64       `json:"futures"`
}

// SyncStatusSummary counts accounts per sync status
type SyncStatusSummary struct {
	Synced  int `json:"synced"`
	Syncing int `json:"syncing"`
	Error   int `json:"error"`
	Pending int `json:"pending"`
}

// PortfolioSummary is the aggregated portfolio view for one user
type PortfolioSummary struct {
	TotalValue        float64           `json:"total_value"`
	IdleValue         float64           `json:"idle_value"`
	DeployedValue     float64           `json:"deployed_value"`
	CategoryBreakdown CategoryBreakdown `json:"category_breakdown"`
	TopAssets         []TopAsset        `json:"top_assets"`
	ProtocolBreakdown []ProtocolStat    `json:"protocol_breakdown"`
	LastSynced        *time.Time        `json:"last_synced,omitempty"`
	SyncStatusSummary SyncStatusSummary `json:"sync_status_summary"`
}
