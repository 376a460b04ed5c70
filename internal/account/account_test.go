// account_test.go - Tests for quota balance tracking
package account

import (
	"context"
	"errors"
	"testing"

	"github.com/score-analyzer/webapp/internal/scoreapi"
)

type fetcherFunc func(ctx context.Context) (*scoreapi.QuotaBalance, error)

func (f fetcherFunc) QuotaBalance(ctx context.Context) (*scoreapi.QuotaBalance, error) {
	return f(ctx)
}

func TestManager_Refresh(t *testing.T) {
	m := NewManager(fetcherFunc(func(ctx context.Context) (*scoreapi.QuotaBalance, error) {
		return &scoreapi.QuotaBalance{Balance: 50, IsVIP: false}, nil
	}))

	if _, loaded := m.Balance(); loaded {
		t.Error("expected no balance before first refresh")
	}

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	balance, loaded := m.Balance()
	if !loaded || balance != 50 {
		t.Errorf("expected balance 50, got %d (loaded=%v)", balance, loaded)
	}
}

func TestManager_RefreshError(t *testing.T) {
	wantErr := errors.New("backend down")
	m := NewManager(fetcherFunc(func(ctx context.Context) (*scoreapi.QuotaBalance, error) {
		return nil, wantErr
	}))

	if err := m.Refresh(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("expected fetch error passed through, got %v", err)
	}
	if _, loaded := m.Balance(); loaded {
		t.Error("expected state untouched on refresh failure")
	}
}

func TestManager_ApplyRemaining(t *testing.T) {
	m := NewManager(nil)

	m.ApplyRemaining(42)
	balance, loaded := m.Balance()
	if !loaded || balance != 42 {
		t.Errorf("expected balance 42, got %d (loaded=%v)", balance, loaded)
	}
}

func TestManager_VIPIsNotDebited(t *testing.T) {
	m := NewManager(fetcherFunc(func(ctx context.Context) (*scoreapi.QuotaBalance, error) {
		return &scoreapi.QuotaBalance{Balance: 999, IsVIP: true}, nil
	}))
	if err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	// An analyze response's remaining value must not overwrite a VIP balance.
	m.ApplyRemaining(3)

	balance, _ := m.Balance()
	if balance != 999 {
		t.Errorf("expected VIP balance untouched, got %d", balance)
	}
	if !m.VIP() {
		t.Error("expected VIP flag set")
	}
}
