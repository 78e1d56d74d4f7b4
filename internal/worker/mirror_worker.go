// Package worker keeps the spreadsheet mirror in step with the ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"finetrail/internal/amqp"
	"finetrail/internal/core"
	"finetrail/internal/ledger"
	"finetrail/internal/log"
	"finetrail/internal/sheets"
)

// SnapshotSource is the read side of services.FinanceService.
type SnapshotSource interface {
	Snapshot(ctx context.Context, userID string) (core.Snapshot, error)
	Invalidate(userID string)
}

type Config struct {
	// ResyncInterval is how often every user is mirrored again, covering
	// lost messages (default: 5m).
	ResyncInterval time.Duration
	// BatchSize caps concurrent mirror writes during a resync (default: 10).
	BatchSize int
}

func DefaultConfig() Config {
	return Config{ResyncInterval: 5 * time.Minute, BatchSize: 10}
}

// MirrorWorker rewrites a user's mirror whenever a ledger event arrives and
// periodically for every known user.
type MirrorWorker struct {
	source SnapshotSource
	users  ledger.UserDirectory
	mirror sheets.LedgerMirror
	logger *log.Logger
	config Config

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMirrorWorker(source SnapshotSource, users ledger.UserDirectory, mirror sheets.LedgerMirror, config Config, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	def := DefaultConfig()
	if config.ResyncInterval <= 0 {
		config.ResyncInterval = def.ResyncInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	return &MirrorWorker{
		source: source,
		users:  users,
		mirror: mirror,
		logger: logger.WithComponent(log.ComponentWorker),
		config: config,
	}
}

// HandleEvent is the AMQP handler. The event only names the user; the
// mirror is rebuilt from the store, so duplicate or reordered events are
// harmless.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.Event) error {
	w.logger.DebugContext(ctx, "Processing ledger event",
		log.FieldMessageOp, ev.RoutingKey(), log.FieldUserID, ev.UserID, log.FieldEntityID, ev.EntityID)
	w.source.Invalidate(ev.UserID)
	return w.MirrorUser(ctx, ev.UserID)
}

func (w *MirrorWorker) MirrorUser(ctx context.Context, userID string) error {
	snap, err := w.source.Snapshot(ctx, userID)
	if err != nil {
		return fmt.Errorf("load ledger of %s: %w", userID, err)
	}
	if err := w.mirror.MirrorLedger(ctx, snap); err != nil {
		return fmt.Errorf("mirror ledger of %s: %w", userID, err)
	}
	return nil
}

// ResyncResult counts the outcome of one Resync pass.
type ResyncResult struct {
	Users  int
	Synced int
	Failed int
}

// Resync mirrors every known user, at most BatchSize at a time. A failing
// user is logged and does not stop the pass.
func (w *MirrorWorker) Resync(ctx context.Context) (ResyncResult, error) {
	users, err := w.users.ListUsers(ctx)
	if err != nil {
		return ResyncResult{}, fmt.Errorf("list users: %w", err)
	}
	res := ResyncResult{Users: len(users)}
	var synced, failed int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.BatchSize)
	for _, userID := range users {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			w.source.Invalidate(userID)
			if err := w.MirrorUser(gctx, userID); err != nil {
				atomic.AddInt64(&failed, 1)
				w.logger.ErrorContext(gctx, "Resync failed for user", log.FieldUserID, userID, log.FieldError, err)
				return nil
			}
			atomic.AddInt64(&synced, 1)
			return nil
		})
	}
	_ = g.Wait()
	res.Synced, res.Failed = int(synced), int(failed)

	w.logger.InfoContext(ctx, "Resync completed",
		"users", res.Users, "synced", res.Synced, "errors", res.Failed)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// Start runs a resync immediately and then every ResyncInterval until Stop
// is called or ctx is done.
func (w *MirrorWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("mirror worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	w.logger.InfoContext(ctx, "Mirror worker started",
		"resync_interval", w.config.ResyncInterval.String(), "batch_size", w.config.BatchSize)
	return nil
}

func (w *MirrorWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.ResyncInterval)
	defer ticker.Stop()

	w.resyncOnce(ctx)
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.resyncOnce(ctx)
		}
	}
}

func (w *MirrorWorker) resyncOnce(ctx context.Context) {
	if _, err := w.Resync(ctx); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.ErrorContext(ctx, "Resync pass failed", log.FieldError, err)
	}
}

// Stop signals the loop and waits for it or for ctx.
func (w *MirrorWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		w.logger.InfoContext(ctx, "Mirror worker stopped")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Mirror worker stop timed out")
		return ctx.Err()
	}
}

func (w *MirrorWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
