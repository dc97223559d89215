// Package ingest adapts the Data Source external interface (§6): a
// push-only boundary that hands batches of Data into the engine,
// preserving relative order within a dataId. The engine core never
// depends on a transport directly — only on the narrow Sink interface
// below — so a Data Source can be swapped (NATS today, anything else
// tomorrow) without touching the Rule Engine.
package ingest

import (
	"context"

	"github.com/c360/alertengine/types"
)

// Sink is the engine-side half of the Data Source interface: whatever
// accepts a tenant-scoped batch of Data for insertion into Working
// Memory. Implemented by rules.Engine.Ingest.
type Sink interface {
	Ingest(ctx context.Context, tenant types.TenantID, batch []*types.Data) error
}
