package alerting

import (
	"context"
	"sync"

	"github.com/c360/alertengine/types"
)

// MemoryAlertStore is a reference AlertStore implementation backed by an
// in-process map, generalized from the same mutex-map shape as
// store.MemoryStore (store/memory.go). Alerts are §1 Non-goal
// persistence: a real deployment backs AlertStore with its own durable
// store behind this interface; this one exists for tests, local
// development, and single-node demo use.
type MemoryAlertStore struct {
	mu     sync.RWMutex
	alerts map[string]*types.Alert // keyed by UUID
}

// NewMemoryAlertStore creates an empty MemoryAlertStore.
func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{alerts: make(map[string]*types.Alert)}
}

// Enqueue stores a copy of alert.
func (s *MemoryAlertStore) Enqueue(_ context.Context, alert *types.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *alert
	s.alerts[alert.UUID] = &stored
	return nil
}

// ResolveOpen flips every OPEN alert for (tenant, triggerID) to status.
func (s *MemoryAlertStore) ResolveOpen(_ context.Context, tenant types.TenantID, triggerID string, status types.AlertStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.TenantID == tenant && a.TriggerID == triggerID && a.Status == types.AlertOpen {
			a.Status = status
		}
	}
	return nil
}

// Alerts returns every stored alert for tenant, for admin inspection and
// tests. Order is unspecified.
func (s *MemoryAlertStore) Alerts(tenant types.TenantID) []*types.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if a.TenantID == tenant {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}
