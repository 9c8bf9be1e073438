// Package worker mirrors the SQLite ledger to the shared spreadsheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tutorkasse/internal/amqp"
	"tutorkasse/internal/core"
	"tutorkasse/internal/storage"
)

// Source is the authoritative ledger with a change version.
type Source interface {
	Snapshot(ctx context.Context) ([]core.Entry, int64, error)
	SyncState(ctx context.Context) (storage.SyncState, error)
	MarkSynced(ctx context.Context, version int64) error
}

// Mirror receives full copies of the ledger.
type Mirror interface {
	ReplaceAll(ctx context.Context, entries []core.Entry) error
}

// Config holds configuration for the sync worker
type Config struct {
	// ReconcileInterval is how often pending versions are checked (default: 1m)
	ReconcileInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{ReconcileInterval: time.Minute}
}

// SyncWorker copies ledger snapshots to the mirror when the ledger version
// moves past the last synced version.
type SyncWorker struct {
	source Source
	mirror Mirror
	config Config

	// serialises snapshot and write
	syncMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncWorker(source Source, mirror Mirror, config Config) *SyncWorker {
	if config.ReconcileInterval <= 0 {
		config.ReconcileInterval = DefaultConfig().ReconcileInterval
	}
	return &SyncWorker{source: source, mirror: mirror, config: config}
}

// HandleLedgerChanged processes a single change notification from AMQP.
// Notifications for versions already mirrored are dropped.
func (w *SyncWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	slog.InfoContext(ctx, "Processing ledger change",
		"component", "worker", "version", msg.Version, "reason", msg.Reason, "entry_id", msg.EntryID)

	state, err := w.source.SyncState(ctx)
	if err != nil {
		return fmt.Errorf("read sync state: %w", err)
	}
	if msg.Version > 0 && state.SyncedVersion >= msg.Version {
		slog.DebugContext(ctx, "Change already mirrored",
			"component", "worker", "version", msg.Version, "synced_version", state.SyncedVersion)
		return nil
	}
	_, err = w.SyncNow(ctx)
	return err
}

// SyncNow mirrors the current snapshot and returns the version written.
func (w *SyncWorker) SyncNow(ctx context.Context) (int64, error) {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	entries, version, err := w.source.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot ledger: %w", err)
	}
	if err := w.mirror.ReplaceAll(ctx, entries); err != nil {
		return 0, fmt.Errorf("write mirror: %w", err)
	}
	if err := w.source.MarkSynced(ctx, version); err != nil {
		// the mirror is current; the next reconcile rewrites it once more
		slog.WarnContext(ctx, "Failed to mark ledger as synced",
			"component", "worker", "version", version, "error", err)
	}

	slog.InfoContext(ctx, "Ledger mirrored",
		"component", "worker", "operation", "sync", "version", version, "ledger_size", len(entries))
	return version, nil
}

// Reconcile mirrors the ledger if a version is pending. It is the backup
// for lost AMQP messages and worker downtime.
func (w *SyncWorker) Reconcile(ctx context.Context) error {
	state, err := w.source.SyncState(ctx)
	if err != nil {
		return fmt.Errorf("read sync state: %w", err)
	}
	if !state.Pending() {
		return nil
	}
	slog.InfoContext(ctx, "Pending ledger version found",
		"component", "worker", "version", state.Version, "synced_version", state.SyncedVersion)
	_, err = w.SyncNow(ctx)
	return err
}

// Start runs Reconcile once and then on every interval. Returns an error if
// already running.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Sync worker started",
		"component", "worker", "reconcile_interval", w.config.ReconcileInterval)
	return nil
}

// Stop stops the reconcile loop and waits for it to finish.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		slog.InfoContext(ctx, "Sync worker stopped gracefully", "component", "worker")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync worker stop timed out", "component", "worker")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

// IsRunning returns whether the reconcile loop is active
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *SyncWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.ReconcileInterval)
	defer ticker.Stop()

	w.reconcile(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcile(ctx)
		}
	}
}

func (w *SyncWorker) reconcile(ctx context.Context) {
	if err := w.Reconcile(ctx); err != nil {
		slog.ErrorContext(ctx, "Reconcile failed", "component", "worker", "error", err)
	}
}
