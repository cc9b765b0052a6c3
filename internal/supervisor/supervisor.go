// Package supervisor owns the lifecycle of the poller/executor pair: it
// starts them together behind a composite readiness predicate, guarantees at
// most one running generation, and tears them down cooperatively.
package supervisor

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tgstars/giftsniper/config"
	"github.com/tgstars/giftsniper/internal/market"
)

// Worker is one background loop managed as part of the pair.
type Worker interface {
	Run(ctx context.Context) error
}

// Supervisor tracks the running worker pair as a set of named tasks. A task
// that finishes on its own (internal hard stop, crash) removes itself, so
// IsRunning never reports a dead pair as alive.
type Supervisor struct {
	// lifecycle serializes Start and Stop, so a concurrent Start cannot
	// interleave between another caller's readiness check and its spawn.
	lifecycle sync.Mutex

	mu      sync.Mutex
	cfg     *config.Store
	session market.Session
	poller  Worker
	exec    Worker
	logger  *zap.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
	tasks  map[string]struct{}
}

// New builds a supervisor over the two worker loops.
func New(cfg *config.Store, session market.Session, poller, exec Worker, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		session: session,
		poller:  poller,
		exec:    exec,
		logger:  logger,
		tasks:   make(map[string]struct{}),
	}
}

// Start re-validates the readiness predicate and, when it holds, spawns the
// poller and executor as a pair. Any previous generation is fully stopped
// first. Returns whether the pair actually started; on false the caller must
// revert any optimistic activation it performed.
func (s *Supervisor) Start(ctx context.Context) bool {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	cfg, err := s.cfg.Load()
	if err != nil {
		s.logger.Error("failed to load config, workers not started", zap.Error(err))
		return false
	}

	switch {
	case !cfg.Active:
		s.logger.Warn("system inactive, workers not started")
		return false
	case !s.session.IsReady():
		s.logger.Warn("sender session not ready, workers not started")
		return false
	case cfg.RecipientUserID == 0 && cfg.RecipientChannel == "":
		s.logger.Warn("no recipient configured, workers not started")
		return false
	case len(cfg.EnabledTargets()) == 0:
		s.logger.Warn("no enabled targets, workers not started")
		return false
	}

	// a running generation must be gone before the next one exists
	s.stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	s.cancel = cancel
	s.group = group

	s.spawn(groupCtx, "target-poller", s.poller)
	s.spawn(groupCtx, "purchase-executor", s.exec)

	s.logger.Info("worker pair started")
	return true
}

// spawn must run with s.mu held.
func (s *Supervisor) spawn(ctx context.Context, name string, w Worker) {
	s.tasks[name] = struct{}{}
	s.group.Go(func() error {
		defer func() {
			s.mu.Lock()
			delete(s.tasks, name)
			s.mu.Unlock()
		}()

		err := w.Run(ctx)
		switch {
		case err == nil:
			s.logger.Info("worker finished", zap.String("worker", name))
		case ctx.Err() != nil:
			s.logger.Debug("worker cancelled", zap.String("worker", name))
			return nil
		default:
			s.logger.Error("worker failed", zap.String("worker", name), zap.Error(err))
		}
		return err
	})
}

// Stop cancels the pair and waits for both loops to drain. The tracked set is
// cleared unconditionally, even when a worker errored during shutdown.
func (s *Supervisor) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stop()
}

// stop must run with s.lifecycle held.
func (s *Supervisor) stop() {
	s.mu.Lock()
	cancel, group := s.cancel, s.group
	s.cancel, s.group = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("worker pair shut down with error", zap.Error(err))
	}

	s.mu.Lock()
	s.tasks = make(map[string]struct{})
	s.mu.Unlock()

	s.logger.Info("worker pair stopped")
}

// IsRunning reports whether any worker of the current generation is alive.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks) > 0
}
