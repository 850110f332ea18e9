package probe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

func status(t *testing.T, p *Probe, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := p.Health().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestProbeFollowsStore(t *testing.T) {
	pinger := &fakePinger{}
	p := New(pinger, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, p, ServiceName))

	assert.True(t, p.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, p, ServiceName))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, p, ""))

	pinger.err = errors.New("connection refused")
	assert.False(t, p.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, p, ServiceName))
}

func TestProbeRunStopsOnCancel(t *testing.T) {
	p := New(&fakePinger{}, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return status(t, p, ServiceName) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("probe did not stop")
	}
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, p, ServiceName))
}
