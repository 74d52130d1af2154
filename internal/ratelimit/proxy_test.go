package ratelimit_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildrank/reputation-engine/internal/ratelimit"
)

func newTestProxy(t *testing.T, rps int) ratelimit.Proxy {
	t.Helper()

	p, err := ratelimit.NewProxy(ratelimit.Config{
		MaxWorkers:   4,
		MaxQueueSize: 16,
		Providers: map[string]ratelimit.ProviderConfig{
			"chain": {RequestsPerSecond: rps, Burst: rps, MaxQueueTime: 2 * time.Second},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProxy_Request(t *testing.T) {
	p := newTestProxy(t, 100)

	result, err := p.Request(context.Background(), "chain", func(ctx context.Context) (interface{}, error) {
		return 42, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestProxy_Request_UnknownProvider(t *testing.T) {
	p := newTestProxy(t, 100)

	_, err := p.Request(context.Background(), "unknown", func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestProxy_Request_PropagatesError(t *testing.T) {
	p := newTestProxy(t, 100)

	wantErr := errors.New("boom")
	_, err := p.Request(context.Background(), "chain", func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})

	assert.ErrorIs(t, err, wantErr)
}

func TestProxy_Request_AfterClose(t *testing.T) {
	p := newTestProxy(t, 100)
	require.NoError(t, p.Close())

	_, err := p.Request(context.Background(), "chain", func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestProxy_TypedRequest(t *testing.T) {
	p := newTestProxy(t, 100)

	got, err := ratelimit.Request(context.Background(), p, "chain", func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestProxy_TypedRequest_NilProxyExecutesDirectly(t *testing.T) {
	var calls atomic.Int32

	got, err := ratelimit.Request(context.Background(), nil, "chain", func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 7, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestProxy_ValidateConfig(t *testing.T) {
	_, err := ratelimit.NewProxy(ratelimit.Config{})
	assert.Error(t, err)

	_, err = ratelimit.NewProxy(ratelimit.Config{
		Providers: map[string]ratelimit.ProviderConfig{
			"chain": {RequestsPerSecond: 0},
		},
	})
	assert.Error(t, err)
}
