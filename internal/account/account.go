// Package account tracks the signed-in account's quota balance. The
// orchestrator pushes quota_remaining into it after each successful analyze;
// Refresh pulls the authoritative value from the backend.
package account

import (
	"context"
	"sync"

	"github.com/score-analyzer/webapp/internal/scoreapi"
)

// BalanceFetcher is the slice of the backend client this package needs.
type BalanceFetcher interface {
	QuotaBalance(ctx context.Context) (*scoreapi.QuotaBalance, error)
}

// Manager holds the last-known quota state.
type Manager struct {
	mu      sync.RWMutex
	fetcher BalanceFetcher
	balance int
	vip     bool
	loaded  bool
}

// NewManager creates an account manager. fetcher may be nil in tests.
func NewManager(fetcher BalanceFetcher) *Manager {
	return &Manager{fetcher: fetcher}
}

// Refresh pulls the current balance from the backend.
func (m *Manager) Refresh(ctx context.Context) error {
	balance, err := m.fetcher.QuotaBalance(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance = balance.Balance
	m.vip = balance.IsVIP
	m.loaded = true
	return nil
}

// ApplyRemaining records the balance reported by an analyze response. VIP
// accounts are exempt from debiting, so a stale lower value never overwrites
// their state.
func (m *Manager) ApplyRemaining(remaining int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.vip {
		return
	}
	m.balance = remaining
	m.loaded = true
}

// Balance returns the last-known balance and whether any value has been
// loaded yet.
func (m *Manager) Balance() (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balance, m.loaded
}

// VIP reports whether the account is exempt from quota debiting.
func (m *Manager) VIP() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vip
}
