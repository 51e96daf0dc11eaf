package observability

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ShutdownFunc releases one resource during shutdown
type ShutdownFunc func(context.Context) error

type shutdownHook struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager drains the HTTP servers, then runs the registered hooks
// concurrently under the same deadline.
type ShutdownManager struct {
	logger  logrus.FieldLogger
	servers []*http.Server
	timeout time.Duration

	mu    sync.Mutex
	hooks []shutdownHook
}

// NewShutdownManager creates a new shutdown manager. A zero timeout means 30s.
func NewShutdownManager(logger logrus.FieldLogger, timeout time.Duration, servers ...*http.Server) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger,
		servers: servers,
		timeout: timeout,
	}
}

// OnShutdown registers a named hook run after the servers have stopped
func (sm *ShutdownManager) OnShutdown(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.hooks = append(sm.hooks, shutdownHook{name: name, fn: fn})
}

// WaitForShutdown blocks until SIGINT or SIGTERM and then shuts down
func (sm *ShutdownManager) WaitForShutdown() error {
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	<-sigCtx.Done()
	stop()
	sm.logger.Info("Signal received, starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()
	return sm.Shutdown(ctx)
}

// Shutdown stops accepting requests, waits for in-flight ones, then releases
// resources. It gives up when ctx expires.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	var drain errgroup.Group
	for _, srv := range sm.servers {
		if srv == nil {
			continue
		}
		drain.Go(func() error {
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("HTTP server %s shutdown failed: %w", srv.Addr, err)
			}
			sm.logger.WithField("addr", srv.Addr).Info("HTTP server stopped")
			return nil
		})
	}
	if err := drain.Wait(); err != nil {
		sm.logger.WithError(err).Error("HTTP server shutdown error")
		return err
	}

	sm.mu.Lock()
	hooks := append([]shutdownHook(nil), sm.hooks...)
	sm.mu.Unlock()

	var release errgroup.Group
	for _, h := range hooks {
		release.Go(func() error {
			if err := h.fn(ctx); err != nil {
				sm.logger.WithError(err).WithField("hook", h.name).Error("Shutdown hook failed")
				return fmt.Errorf("%s: %w", h.name, err)
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- release.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("shutdown incomplete: %w", err)
		}
	case <-ctx.Done():
		sm.logger.Warn("Shutdown deadline reached before all hooks returned")
		return fmt.Errorf("shutdown timeout reached: %w", ctx.Err())
	}

	sm.logger.Info("Graceful shutdown complete")
	return nil
}
