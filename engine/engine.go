// Package engine wires the alerting engine's collaborators together into
// one process: Definitions Store, Working Memory, Definitions Registry,
// Rule Engine, Alert Producer, Action Sink, Live Feed, and Data Source
// ingest, plus the ops surface (Prometheus /metrics, admin websocket
// feed). Grounded on the teacher's cmd/semstreams/main.go decomposition
// (initializeCLI/initializeConfiguration/setupInfrastructure/
// runWithSignalHandling), with the teacher's dynamic component/service
// registry replaced by direct wiring of this module's concrete
// collaborators — there is no plugin framework here, just the fixed set
// of pieces §4 and §6 describe.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360/alertengine/alerting"
	"github.com/c360/alertengine/config"
	"github.com/c360/alertengine/errors"
	"github.com/c360/alertengine/ingest"
	"github.com/c360/alertengine/memory"
	"github.com/c360/alertengine/metric"
	"github.com/c360/alertengine/natsclient"
	"github.com/c360/alertengine/registry"
	"github.com/c360/alertengine/rules"
	"github.com/c360/alertengine/store"
	"github.com/c360/alertengine/types"
)

// Engine owns the process lifecycle: Start connects to external
// collaborators and begins serving; Stop drains everything within a
// bounded timeout. Exported fields are the wired collaborators, useful
// for an embedding cmd/alertengine to reach in for an admin CLI or test
// harness without the engine needing to expose its own facade for every
// one of them.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	NATSClient *natsclient.Client
	Metrics    *metric.Registry
	Store      store.DefinitionsStore
	WM         *memory.WorkingMemory
	Registry   *registry.Registry
	Rules      *rules.Engine
	Producer   *alerting.Producer
	Actions    *alerting.ActionSink
	Feed       *alerting.LiveFeed
	Source     *ingest.NATSSource
	watcher    *store.NATSChangeWatcher

	metricsServer *metric.Server
	feedServer    *http.Server

	watchDone chan struct{}
	cancel    context.CancelFunc
}

// Dependencies lets a caller (typically a test, or an admin tool wanting
// a non-NATS Definitions Store) override the external collaborators the
// engine would otherwise build from cfg. Any nil field falls back to the
// cfg-driven default.
type Dependencies struct {
	Store           store.DefinitionsStore
	Alerts          alerting.AlertStore
	ExternalMatcher rules.ExternalEvaluator
	ActionDelivery  alerting.ActionDelivery
}

// New builds every in-process collaborator but does not yet touch the
// network; call Start to connect to NATS, bootstrap/load definitions,
// and begin serving.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	defStore := deps.Store
	if defStore == nil {
		defStore = store.NewMemoryStore()
	}
	alertStore := deps.Alerts
	if alertStore == nil {
		alertStore = alerting.NewMemoryAlertStore()
	}

	metrics := metric.NewRegistry()
	wm := memory.New()
	reg := registry.New(defStore, wm)
	matcher := rules.NewMatcher(deps.ExternalMatcher)

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		Metrics:  metrics,
		Store:    defStore,
		WM:       wm,
		Registry: reg,
	}

	actions := alerting.NewActionSink(cfg.ActionWorkers, cfg.ActionQueueSize, defStore, deps.ActionDelivery, metrics, logger)
	feed := alerting.NewLiveFeed(logger)
	producer := alerting.NewProducer(wm, alertStore, actions, reg, feed, metrics.Metrics, logger)
	e.Actions = actions
	e.Feed = feed
	e.Producer = producer
	e.Rules = rules.NewEngine(wm, matcher, metrics.Metrics, producer, logger)

	return e, nil
}

// Start connects to NATS, bootstraps or loads Definitions, subscribes to
// the Data Source, and opens the ops surface (metrics, live feed). It
// blocks only long enough to get everything running; callers run it
// before waiting on a shutdown signal.
func (e *Engine) Start(ctx context.Context) error {
	client, err := natsclient.Connect(e.cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	e.NATSClient = client

	if !e.cfg.SkipInitData {
		if err := store.Bootstrap(ctx, e.Store, e.cfg.DataDir); err != nil {
			return fmt.Errorf("bootstrap definitions: %w", err)
		}
	}
	if err := e.Registry.LoadAll(ctx); err != nil {
		return fmt.Errorf("load definitions into working memory: %w", err)
	}
	e.Registry.MarkInitialized()

	watcher, err := store.NewNATSChangeWatcher(ctx, client, e.logger)
	if err != nil {
		return fmt.Errorf("watch definitions changes: %w", err)
	}
	e.watcher = watcher
	e.watchDone = make(chan struct{})
	watchCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	go e.watchChanges(watchCtx)

	if err := e.Actions.Start(ctx); err != nil {
		return fmt.Errorf("start action sink: %w", err)
	}

	e.Source = ingest.NewNATSSource(client, e.Rules, e.logger)
	if err := e.Source.Start(ctx); err != nil {
		return fmt.Errorf("start data source: %w", err)
	}

	if e.cfg.MetricsAddr != "" {
		e.metricsServer = metric.NewServer(e.cfg.MetricsAddr, e.Metrics)
		go func() {
			if err := e.metricsServer.Start(); err != nil {
				e.logger.Error("metrics server exited", "error", err)
			}
		}()
	}

	if e.cfg.LiveFeedAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/alerts", e.Feed)
		e.feedServer = &http.Server{Addr: e.cfg.LiveFeedAddr, Handler: mux}
		go func() {
			if err := e.feedServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				e.logger.Error("live feed server exited", "error", err)
			}
		}()
	}

	e.logger.Info("alert engine started", "nats_url", e.cfg.NATSURL, "keyspace", e.cfg.Keyspace)
	return nil
}

// watchChanges consumes the Definitions Store's change notifications and
// re-syncs Working Memory for each one, grounded on the teacher's
// entity_watcher consumption loop: one goroutine, one channel, exits
// when the channel closes or ctx is cancelled.
func (e *Engine) watchChanges(ctx context.Context) {
	defer close(e.watchDone)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.watcher.Events():
			if !ok {
				return
			}
			if err := e.Registry.ApplyChange(ctx, ev); err != nil {
				e.logger.Error("failed to apply definitions change", "event", ev.Type, "tenant", ev.TenantID, "trigger", ev.TriggerID, "error", err)
			}
		}
	}
}

// Stop drains every collaborator within timeout, in the order that lets
// in-flight work finish cleanly: stop ingesting new Data first, then the
// rule/alert path's async tail (action sink), then the ops surface and
// the change watcher, and finally the NATS connection itself.
func (e *Engine) Stop(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	if e.Source != nil {
		if err := e.Source.Stop(); err != nil {
			e.logger.Warn("error stopping data source", "error", err)
		}
	}
	if e.Actions != nil {
		if err := e.Actions.Stop(time.Until(deadline)); err != nil {
			e.logger.Warn("error stopping action sink", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Until(deadline))
	defer cancel()
	if e.feedServer != nil {
		_ = e.feedServer.Shutdown(shutdownCtx)
	}
	if e.metricsServer != nil {
		_ = e.metricsServer.Stop(shutdownCtx)
	}

	if e.cancel != nil {
		e.cancel()
	}
	if e.watcher != nil {
		_ = e.watcher.Close()
	}
	if e.watchDone != nil {
		select {
		case <-e.watchDone:
		case <-time.After(time.Until(deadline)):
		}
	}

	if e.NATSClient != nil {
		if err := e.NATSClient.Close(); err != nil {
			return errors.WrapStoreError(err, "engine", "Stop")
		}
	}
	return nil
}

// AllTriggers, AllDampenings, AllConditions, and AllTriggersByTag are the
// admin cross-tenant reads (§4.6, §5) — the closed set of operations that
// may return multiple tenants' data. Each enforces the default
// admin-fetch timeout even if the caller's ctx carries none.
func (e *Engine) AllTriggers(ctx context.Context) ([]*types.Trigger, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.AdminFetchTimeout)
	defer cancel()
	return e.Store.AllTriggers(ctx)
}

func (e *Engine) AllDampenings(ctx context.Context) ([]*types.Dampening, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.AdminFetchTimeout)
	defer cancel()
	return e.Store.AllDampenings(ctx)
}

func (e *Engine) AllConditions(ctx context.Context) ([]*types.Condition, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.AdminFetchTimeout)
	defer cancel()
	return e.Store.AllConditions(ctx)
}

func (e *Engine) AllTriggersByTag(ctx context.Context, name, value string) ([]*types.Trigger, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.AdminFetchTimeout)
	defer cancel()
	return e.Store.AllTriggersByTag(ctx, name, value)
}
