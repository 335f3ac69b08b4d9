package entities

import (
	"testing"
	"time"
)

func TestAccount_NeedsSync(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	staleAfter := 5 * time.Minute

	recent := now.Add(-time.Minute)
	stale := now.Add(-time.Hour)

	tests := []struct {
		name         string
		syncStatus   string
		lastSyncedAt *time.Time
		want         bool
	}{
		{"pending always syncs", SyncPending, &recent, true},
		{"error always syncs", SyncError, &recent, true},
		{"synced recently does not", SyncSynced, &recent, false},
		{"synced but stale does", SyncSynced, &stale, true},
		{"never synced does", SyncSynced, nil, true},
		{"syncing recently does not", SyncSyncing, &recent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := tt.syncStatus
			a := Account{SyncStatus: &status, LastSyncedAt: tt.lastSyncedAt}
			if got := a.NeedsSync(now, staleAfter); got != tt.want {
				t.Errorf("NeedsSync() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("no sync status ever recorded", func(t *testing.T) {
		a := Account{}
		if !a.NeedsSync(now, staleAfter) {
			t.Error("expected never-synced account to need sync")
		}
	})
}

func TestAccount_IsSyncing(t *testing.T) {
	syncing := SyncSyncing
	a := Account{SyncStatus: &syncing}
	if !a.IsSyncing() {
		t.Error("expected syncing account to report IsSyncing")
	}

	b := Account{}
	if b.IsSyncing() {
		t.Error("expected account without status to not report IsSyncing")
	}
}

func TestAccount_ShortenedAddress(t *testing.T) {
	a := Account{Address: "0x1234567890abcdef1234567890abcdef12345678"}
	if got := a.ShortenedAddress(); got != "0x1234...5678" {
		t.Errorf("expected 0x1234...5678, got %s", got)
	}

	short := Account{Address: "0x1234"}
	if got := short.ShortenedAddress(); got != "0x1234" {
		t.Errorf("expected short address unchanged, got %s", got)
	}
}

func TestAccount_DisplayName(t *testing.T) {
	named := Account{Name: "Main Wallet", Address: "0x1234567890abcdef1234567890abcdef12345678"}
	if got := named.DisplayName(); got != "Main Wallet" {
		t.Errorf("expected Main Wallet, got %s", got)
	}

	unnamed := Account{Address: "0x1234567890abcdef1234567890abcdef12345678"}
	if got := unnamed.DisplayName(); got != "0x1234...5678" {
		t.Errorf("expected shortened address, got %s", got)
	}
}
