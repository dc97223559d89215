package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/c360/alertengine/alerting"
	"github.com/c360/alertengine/config"
	"github.com/c360/alertengine/store"
	"github.com/c360/alertengine/types"
)

// slowStore wraps MemoryStore and sleeps in AllTriggers, for exercising
// the admin-fetch timeout without a real cross-tenant scan.
type slowStore struct {
	*store.MemoryStore
	delay time.Duration
}

func (s *slowStore) AllTriggers(ctx context.Context) ([]*types.Trigger, error) {
	select {
	case <-time.After(s.delay):
		return s.MemoryStore.AllTriggers(ctx)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Keyspace:          "default",
		BatchSize:         100,
		ActionQueueSize:   10,
		ActionWorkers:     2,
		AdminFetchTimeout: 20 * time.Millisecond,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWiresRuleEngineToProducer(t *testing.T) {
	e, err := New(testConfig(), Dependencies{}, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Rules == nil || e.Producer == nil || e.Registry == nil || e.Actions == nil {
		t.Fatalf("expected every in-process collaborator wired, got %+v", e)
	}
}

func TestNewUsesSuppliedDependencies(t *testing.T) {
	s := store.NewMemoryStore()
	alerts := alerting.NewMemoryAlertStore()
	e, err := New(testConfig(), Dependencies{Store: s, Alerts: alerts}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Store != s {
		t.Fatalf("expected supplied store to be used")
	}
}

func TestAllTriggersEnforcesAdminFetchTimeout(t *testing.T) {
	slow := &slowStore{MemoryStore: store.NewMemoryStore(), delay: 100 * time.Millisecond}
	e, err := New(testConfig(), Dependencies{Store: slow}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = e.AllTriggers(context.Background())
	if err == nil {
		t.Fatalf("expected admin fetch to time out")
	}
}

func TestAllTriggersSucceedsWithinTimeout(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	s.PutTrigger(ctx, &types.Trigger{TenantID: "acme", ID: "t1", Enabled: true})

	e, err := New(testConfig(), Dependencies{Store: s}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	triggers, err := e.AllTriggers(ctx)
	if err != nil {
		t.Fatalf("AllTriggers: %v", err)
	}
	if len(triggers) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(triggers))
	}
}

func TestAllDampeningsAndAllConditionsSpanTenants(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	s.PutTrigger(ctx, &types.Trigger{TenantID: "acme", ID: "t1", Enabled: true})
	s.PutTrigger(ctx, &types.Trigger{TenantID: "globex", ID: "t2", Enabled: true})
	s.PutConditions(ctx, "acme", "t1", types.ModeFiring, []*types.Condition{
		{TenantID: "acme", TriggerID: "t1", TriggerMode: types.ModeFiring, ConditionSetSize: 1, ConditionSetIndex: 1,
			Type: types.ConditionThreshold, Threshold: &types.ThresholdCondition{DataID: "cpu", Operator: types.OpGT, Threshold: 90}},
	})
	s.PutDampening(ctx, types.DefaultDampening("acme", "t1", types.ModeFiring))
	s.PutDampening(ctx, types.DefaultDampening("globex", "t2", types.ModeFiring))

	e, err := New(testConfig(), Dependencies{Store: s}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dampenings, err := e.AllDampenings(ctx)
	if err != nil {
		t.Fatalf("AllDampenings: %v", err)
	}
	if len(dampenings) != 2 {
		t.Fatalf("expected 2 dampenings across tenants, got %d", len(dampenings))
	}

	conditions, err := e.AllConditions(ctx)
	if err != nil {
		t.Fatalf("AllConditions: %v", err)
	}
	if len(conditions) != 1 {
		t.Fatalf("expected 1 condition, got %d", len(conditions))
	}
}

func TestAllTriggersByTagFiltersAcrossTenants(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	s.PutTrigger(ctx, &types.Trigger{TenantID: "acme", ID: "t1", Enabled: true})
	s.PutTrigger(ctx, &types.Trigger{TenantID: "globex", ID: "t2", Enabled: true})
	s.PutTags(ctx, "acme", "t1", map[string]string{"env": "prod"})
	s.PutTags(ctx, "globex", "t2", map[string]string{"env": "staging"})

	e, err := New(testConfig(), Dependencies{Store: s}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	triggers, err := e.AllTriggersByTag(ctx, "env", "prod")
	if err != nil {
		t.Fatalf("AllTriggersByTag: %v", err)
	}
	if len(triggers) != 1 || triggers[0].ID != "t1" {
		t.Fatalf("expected only acme/t1 tagged env=prod, got %+v", triggers)
	}
}
