package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/c360/alertengine/natsclient"
	"github.com/c360/alertengine/pkg/timestamp"
	"github.com/c360/alertengine/types"
)

// DataSubjectPrefix namespaces every subject a Data item is published
// under: "<prefix>.<tenant>.<dataId>". NATSSource subscribes to the
// wildcard form of this prefix.
const DataSubjectPrefix = "alertengine.data"

// DataSubject returns the subject a Data item for (tenant, dataID) is
// published under.
func DataSubject(tenant types.TenantID, dataID string) string {
	return fmt.Sprintf("%s.%s.%s", DataSubjectPrefix, tenant, dataID)
}

// NATSSource is the Data Source's NATS transport: a single core NATS
// subscription (no JetStream — the engine tolerates at-most-once
// ingress, §1 Non-goals exclude guaranteed exactly-once delivery)
// covering every tenant and dataId, handed to Sink one Data item at a
// time in the order the subscription's own dispatch goroutine received
// them. A single subscription's callback is invoked serially by the
// NATS client, which is what gives per-dataId (and indeed global)
// ordering here — no extra bookkeeping needed, mirroring the single
// long-lived subscription goroutine shape of
// processor/rule/processor.go's setupSubscriptions.
type NATSSource struct {
	client *natsclient.Client
	sink   Sink
	logger *slog.Logger

	sub    *nats.Subscription
	cancel context.CancelFunc
}

// NewNATSSource builds a NATSSource that forwards decoded Data to sink.
func NewNATSSource(client *natsclient.Client, sink Sink, logger *slog.Logger) *NATSSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSource{client: client, sink: sink, logger: logger.With("component", "ingest")}
}

// Start subscribes to every Data subject. Ingestion runs until ctx is
// canceled or Stop is called.
func (s *NATSSource) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	subject := DataSubjectPrefix + ".>"
	sub, err := s.client.Conn().Subscribe(subject, func(msg *nats.Msg) {
		s.handle(runCtx, msg)
	})
	if err != nil {
		cancel()
		return err
	}
	s.sub = sub
	s.logger.Info("ingest source subscribed", "subject", subject)
	return nil
}

func (s *NATSSource) handle(ctx context.Context, msg *nats.Msg) {
	var data types.Data
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		s.logger.Warn("dropping malformed data message", "subject", msg.Subject, "error", err)
		return
	}
	if !data.TenantID.Valid() || data.DataID == "" {
		s.logger.Warn("dropping data message missing tenant or dataId", "subject", msg.Subject)
		return
	}
	if data.Timestamp == 0 {
		// A producer that omits a timestamp means "now", not "unset".
		data.Timestamp = timestamp.Now()
	}
	if err := s.sink.Ingest(ctx, data.TenantID, []*types.Data{&data}); err != nil {
		s.logger.Error("ingest failed", "tenant", data.TenantID, "data_id", data.DataID, "error", err)
	}
}

// Stop unsubscribes and cancels any in-flight ingest calls.
func (s *NATSSource) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.sub != nil {
		return s.sub.Unsubscribe()
	}
	return nil
}

// PublishData publishes data to its NATS subject, for use by Data
// producers (tests, bootstrap tooling) talking to a NATSSource.
func PublishData(client *natsclient.Client, data *types.Data) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return client.Conn().Publish(DataSubject(data.TenantID, data.DataID), payload)
}
