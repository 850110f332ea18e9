package probe

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName - имя сервиса в gRPC health. Пустое имя отражает процесс целиком.
const ServiceName = "pmagent.Agent"

// Pinger проверяет доступность хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe публикует состояние хранилища через стандартный gRPC health API.
type Probe struct {
	pinger   Pinger
	health   *health.Server
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	serving  bool
}

func New(pinger Pinger, interval time.Duration, logger *slog.Logger) *Probe {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	p := &Probe{
		pinger:   pinger,
		health:   health.NewServer(),
		interval: interval,
		timeout:  3 * time.Second,
		logger:   logger,
	}
	p.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return p
}

// Register подключает health-сервис к gRPC-серверу.
func (p *Probe) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, p.health)
}

// Health возвращает сервер для прямых проверок.
func (p *Probe) Health() healthpb.HealthServer {
	return p.health
}

// Check один раз пингует хранилище и обновляет статус.
func (p *Probe) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.pinger.Ping(ctx)
	ok := err == nil
	if ok != p.serving {
		if ok {
			p.logger.Info("store reachable")
		} else {
			p.logger.Warn("store unreachable", "error", err)
		}
	}
	p.serving = ok
	if ok {
		p.set(healthpb.HealthCheckResponse_SERVING)
	} else {
		p.set(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return ok
}

// Run проверяет хранилище с интервалом до отмены контекста, затем переводит сервис в NOT_SERVING.
func (p *Probe) Run(ctx context.Context) {
	p.Check(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.health.Shutdown()
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

func (p *Probe) set(status healthpb.HealthCheckResponse_ServingStatus) {
	p.health.SetServingStatus("", status)
	p.health.SetServingStatus(ServiceName, status)
}
