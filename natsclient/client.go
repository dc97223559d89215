// Package natsclient is a reduced NATS client adapted from the teacher's
// natsclient package (natsclient/client.go): it keeps the
// connect-once/JetStream/KV-bucket shape ingest/ and store/ need, and drops
// the circuit breaker, TLS, and metrics-polling machinery the alerting
// engine's scope has no use for (those concerns live with the ingress
// transport and clustering layer, both out of scope per §1).
package natsclient

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/alertengine/errors"
)

// Client wraps one NATS connection and its JetStream context.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Connect dials url and opens a JetStream context.
func Connect(url string, opts ...nats.Option) (*Client, error) {
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.WrapStoreError(err, "natsclient", "Connect")
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.WrapStoreError(err, "natsclient", "Connect")
	}
	return &Client{conn: conn, js: js}, nil
}

// JetStream returns the underlying JetStream context for direct stream or
// publish access.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Conn returns the underlying NATS connection, for plain pub/sub (ingest's
// Data subscription does not need JetStream delivery guarantees, §6).
func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// Close drains and closes the connection.
func (c *Client) Close() error {
	return c.conn.Drain()
}

// CreateKeyValueBucket gets an existing KV bucket or creates it, tolerating
// the race where another node created it first. Adapted from
// natsclient/client.go's CreateKeyValueBucket, trimmed of circuit-breaker
// bookkeeping.
func (c *Client) CreateKeyValueBucket(ctx context.Context, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	if bucket, err := c.js.KeyValue(ctx, cfg.Bucket); err == nil {
		return bucket, nil
	}

	bucket, err := c.js.CreateKeyValue(ctx, cfg)
	if err != nil {
		if existing, getErr := c.js.KeyValue(ctx, cfg.Bucket); getErr == nil {
			return existing, nil
		}
		return nil, errors.WrapStoreError(err, "natsclient", fmt.Sprintf("create KV bucket %s", cfg.Bucket))
	}
	return bucket, nil
}
