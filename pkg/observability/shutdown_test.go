package observability

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsAllHooks(t *testing.T) {
	sm := NewShutdownManager(NewNopLogger(), time.Second)

	var calls int32
	for _, name := range []string{"cron", "redis", "postgres"} {
		sm.OnShutdown(name, func(context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
	}

	require.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestShutdownReportsHookError(t *testing.T) {
	sm := NewShutdownManager(NewNopLogger(), time.Second)
	closeErr := errors.New("close failed")
	sm.OnShutdown("redis", func(context.Context) error { return closeErr })
	sm.OnShutdown("postgres", func(context.Context) error { return nil })

	err := sm.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, closeErr)
	assert.Contains(t, err.Error(), "redis")
}

func TestShutdownTimeout(t *testing.T) {
	sm := NewShutdownManager(NewNopLogger(), time.Second)
	release := make(chan struct{})
	defer close(release)
	sm.OnShutdown("stuck", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sm.Shutdown(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestShutdownStopsServersBeforeHooks(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0"}
	sm := NewShutdownManager(NewNopLogger(), time.Second, srv, nil)

	var ranAfterServers bool
	sm.OnShutdown("probe", func(context.Context) error {
		// A stopped server refuses to serve again
		ranAfterServers = errors.Is(srv.ListenAndServe(), http.ErrServerClosed)
		return nil
	})

	require.NoError(t, sm.Shutdown(context.Background()))
	assert.True(t, ranAfterServers)
}
