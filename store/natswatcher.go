package store

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/alertengine/errors"
	"github.com/c360/alertengine/natsclient"
	"github.com/c360/alertengine/types"
)

// DefinitionsBucket is the JetStream KV bucket the Definitions Store
// publishes change notifications to. One entry per (tenant,triggerId);
// its value is the DefinitionsEvent that most recently touched it.
const DefinitionsBucket = "alertengine_definitions"

// NATSChangeWatcher is a ChangeWatcher backed by a JetStream KV watch,
// grounded directly on the teacher's entity-state watch pattern
// (processor/rule/entity_watcher.go's watchEntityStates/handleEntityUpdates):
// one long-lived watcher goroutine translating KV entry updates into typed
// events on a channel, shut down via context cancellation.
type NATSChangeWatcher struct {
	watcher jetstream.KeyWatcher
	events  chan types.DefinitionsEvent
	cancel  context.CancelFunc
	logger  *slog.Logger
}

// NewNATSChangeWatcher opens a watch on every key in DefinitionsBucket and
// begins translating updates into DefinitionsEvents immediately.
func NewNATSChangeWatcher(ctx context.Context, client *natsclient.Client, logger *slog.Logger) (*NATSChangeWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      DefinitionsBucket,
		Description: "Definitions Registry change notifications",
		History:     1,
	})
	if err != nil {
		return nil, errors.WrapStoreError(err, "store", "NewNATSChangeWatcher")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	watcher, err := bucket.WatchAll(watchCtx)
	if err != nil {
		cancel()
		return nil, errors.WrapStoreError(err, "store", "NewNATSChangeWatcher")
	}

	w := &NATSChangeWatcher{
		watcher: watcher,
		events:  make(chan types.DefinitionsEvent, 64),
		cancel:  cancel,
		logger:  logger,
	}
	go w.run(watchCtx)
	return w, nil
}

func (w *NATSChangeWatcher) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic in definitions change watcher", "error", r)
		}
		close(w.events)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-w.watcher.Updates():
			if !ok {
				return
			}
			if entry == nil {
				// Initial state replay complete; continue watching for live updates.
				continue
			}
			if entry.Operation() == jetstream.KeyValueDelete || entry.Operation() == jetstream.KeyValuePurge {
				continue
			}
			var event types.DefinitionsEvent
			if err := json.Unmarshal(entry.Value(), &event); err != nil {
				w.logger.Warn("dropping malformed definitions change event", "key", entry.Key(), "error", err)
				continue
			}
			select {
			case w.events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Events returns the channel of translated DefinitionsEvents.
func (w *NATSChangeWatcher) Events() <-chan types.DefinitionsEvent {
	return w.events
}

// Close stops the watch goroutine.
func (w *NATSChangeWatcher) Close() error {
	w.cancel()
	return w.watcher.Stop()
}

// PublishChange writes ev to the definitions bucket under a key derived
// from its tenant and trigger, so every watching node observes it.
func PublishChange(ctx context.Context, client *natsclient.Client, ev types.DefinitionsEvent) error {
	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      DefinitionsBucket,
		Description: "Definitions Registry change notifications",
		History:     1,
	})
	if err != nil {
		return errors.WrapStoreError(err, "store", "PublishChange")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.WrapStoreError(err, "store", "PublishChange")
	}
	key := string(ev.TenantID) + "." + ev.TriggerID
	if _, err := bucket.Put(ctx, key, data); err != nil {
		return errors.WrapStoreError(err, "store", "PublishChange")
	}
	return nil
}

var _ ChangeWatcher = (*NATSChangeWatcher)(nil)
