package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/c360/alertengine/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSink struct {
	batches [][]*types.Data
	err     error
}

func (f *fakeSink) Ingest(_ context.Context, _ types.TenantID, batch []*types.Data) error {
	f.batches = append(f.batches, batch)
	return f.err
}

func TestDataSubjectIncludesTenantAndDataID(t *testing.T) {
	got := DataSubject("acme", "cpu.load")
	want := "alertengine.data.acme.cpu.load"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNATSSourceHandleForwardsValidData(t *testing.T) {
	sink := &fakeSink{}
	src := &NATSSource{sink: sink, logger: discardLogger()}

	data := types.Data{TenantID: "acme", DataID: "cpu.load", Timestamp: 100, Value: types.NumericValue(3.2)}
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	src.handle(context.Background(), &nats.Msg{Subject: DataSubject("acme", "cpu.load"), Data: payload})

	if len(sink.batches) != 1 || len(sink.batches[0]) != 1 {
		t.Fatalf("expected one forwarded batch of one item, got %v", sink.batches)
	}
	got := sink.batches[0][0]
	if got.TenantID != "acme" || got.DataID != "cpu.load" || got.Value.Numeric != 3.2 {
		t.Fatalf("unexpected forwarded data: %+v", got)
	}
}

func TestNATSSourceHandleStampsMissingTimestamp(t *testing.T) {
	sink := &fakeSink{}
	src := &NATSSource{sink: sink, logger: discardLogger()}

	data := types.Data{TenantID: "acme", DataID: "cpu.load", Value: types.NumericValue(3.2)}
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	src.handle(context.Background(), &nats.Msg{Subject: DataSubject("acme", "cpu.load"), Data: payload})

	if len(sink.batches) != 1 || len(sink.batches[0]) != 1 {
		t.Fatalf("expected one forwarded batch of one item, got %v", sink.batches)
	}
	if sink.batches[0][0].Timestamp == 0 {
		t.Fatalf("expected a missing timestamp to be stamped with arrival time")
	}
}

func TestNATSSourceHandleDropsMalformedPayload(t *testing.T) {
	sink := &fakeSink{}
	src := &NATSSource{sink: sink, logger: discardLogger()}

	src.handle(context.Background(), &nats.Msg{Subject: "alertengine.data.acme.x", Data: []byte("not json")})

	if len(sink.batches) != 0 {
		t.Fatalf("expected malformed payload to be dropped, got %v", sink.batches)
	}
}

func TestNATSSourceHandleDropsDataMissingTenant(t *testing.T) {
	sink := &fakeSink{}
	src := &NATSSource{sink: sink, logger: discardLogger()}

	data := types.Data{DataID: "cpu.load", Timestamp: 100, Value: types.NumericValue(1)}
	payload, _ := json.Marshal(data)

	src.handle(context.Background(), &nats.Msg{Subject: "alertengine.data..cpu.load", Data: payload})

	if len(sink.batches) != 0 {
		t.Fatalf("expected data missing a tenant to be dropped, got %v", sink.batches)
	}
}
