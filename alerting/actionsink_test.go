package alerting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/c360/alertengine/store"
	"github.com/c360/alertengine/types"
)

// fakeDefStore overrides only the DefinitionsStore methods ActionSink
// actually calls; every other method panics via the nil embedded
// interface if exercised, which nothing in this test does.
type fakeDefStore struct {
	store.DefinitionsStore
	plugins []*types.ActionPlugin
	actions []*types.Action
}

func (f *fakeDefStore) ActionPlugins(_ context.Context, _ types.TenantID) ([]*types.ActionPlugin, error) {
	return f.plugins, nil
}

func (f *fakeDefStore) Actions(_ context.Context, _ types.TenantID, _ string) ([]*types.Action, error) {
	return f.actions, nil
}

type recordingDelivery struct {
	mu         sync.Mutex
	deliveries []map[string]string
	proceed    chan struct{}
}

func (r *recordingDelivery) Deliver(_ context.Context, _ types.TenantID, _ string, _ string, properties map[string]string, _ *types.Alert) error {
	if r.proceed != nil {
		<-r.proceed
	}
	r.mu.Lock()
	r.deliveries = append(r.deliveries, properties)
	r.mu.Unlock()
	return nil
}

func (r *recordingDelivery) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}

func TestActionSinkMergesStoredPropertiesOverDefaults(t *testing.T) {
	def := &fakeDefStore{
		plugins: []*types.ActionPlugin{{Name: "email", Defaults: map[string]string{"from": "alerts@acme.test", "priority": "normal"}}},
		actions: []*types.Action{{TenantID: "acme", ActionPlugin: "email", ActionID: "oncall", Properties: map[string]string{"priority": "high"}}},
	}
	delivery := &recordingDelivery{}
	sink := NewActionSink(1, 4, def, delivery, nil, nil)
	if err := sink.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sink.Stop(time.Second)

	ok := sink.Dispatch(types.ActionRequest{TenantID: "acme", ActionPlugin: "email", ActionID: "oncall"})
	if !ok {
		t.Fatalf("expected dispatch to be accepted")
	}

	deadline := time.Now().Add(time.Second)
	for delivery.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if delivery.count() != 1 {
		t.Fatalf("expected one delivery, got %d", delivery.count())
	}

	props := delivery.deliveries[0]
	if props["from"] != "alerts@acme.test" {
		t.Fatalf("expected default 'from' to survive merge, got %v", props)
	}
	if props["priority"] != "high" {
		t.Fatalf("expected stored property to override default, got %v", props)
	}
}

func TestActionSinkDispatchFalseWhenNotStarted(t *testing.T) {
	sink := NewActionSink(1, 4, &fakeDefStore{}, &recordingDelivery{}, nil, nil)

	ok := sink.Dispatch(types.ActionRequest{TenantID: "acme", ActionPlugin: "email", ActionID: "oncall"})
	if ok {
		t.Fatalf("expected dispatch to an unstarted pool to be rejected")
	}
}

func TestActionSinkDropsRequestsOnceQueueIsFull(t *testing.T) {
	delivery := &recordingDelivery{proceed: make(chan struct{})}
	sink := NewActionSink(1, 1, &fakeDefStore{}, delivery, nil, nil)
	if err := sink.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		close(delivery.proceed)
		sink.Stop(time.Second)
	}()

	req := types.ActionRequest{TenantID: "acme", ActionPlugin: "email", ActionID: "oncall"}

	// First request is picked up by the sole worker and blocks on
	// delivery.proceed; second fills the one-deep queue; third must drop.
	if !sink.Dispatch(req) {
		t.Fatalf("expected first dispatch to be accepted")
	}
	time.Sleep(20 * time.Millisecond) // let the worker claim the first item
	if !sink.Dispatch(req) {
		t.Fatalf("expected second dispatch to be queued")
	}
	if sink.Dispatch(req) {
		t.Fatalf("expected third dispatch to be dropped, queue was full")
	}
}
