package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/idverify/internal/ocr"
)

// ServiceName is the gRPC health service name reported next to the overall "" status.
const ServiceName = "idverify.v1.Verification"

// NewGRPCServer returns a server exposing grpc.health.v1 and reflection.
func NewGRPCServer(hs *health.Server) *grpc.Server {
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)
	return s
}

// EngineMonitor probes the OCR engine on an interval and mirrors the result
// into the gRPC health server. It implements EngineStatus.
type EngineMonitor struct {
	engine   ocr.Engine
	health   *health.Server
	interval time.Duration
	onProbe  func(up bool)
	logger   *zap.Logger

	mu     sync.RWMutex
	probed bool
	up     bool
}

func NewEngineMonitor(engine ocr.Engine, hs *health.Server, interval time.Duration, onProbe func(up bool), logger *zap.Logger) *EngineMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if onProbe == nil {
		onProbe = func(bool) {}
	}
	return &EngineMonitor{
		engine:   engine,
		health:   hs,
		interval: interval,
		onProbe:  onProbe,
		logger:   logger.Named("engine_monitor"),
	}
}

// Run probes immediately and then on every tick until ctx ends, at which
// point every service is reported NOT_SERVING.
func (m *EngineMonitor) Run(ctx context.Context) error {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if m.health != nil {
				m.health.Shutdown()
			}
			return nil
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe checks the engine once and records the outcome.
func (m *EngineMonitor) Probe(ctx context.Context) bool {
	err := m.engine.Probe(ctx)
	up := err == nil

	m.mu.Lock()
	changed := !m.probed || m.up != up
	m.probed, m.up = true, up
	m.mu.Unlock()

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if up {
		status = healthpb.HealthCheckResponse_SERVING
	}
	if m.health != nil {
		m.health.SetServingStatus("", status)
		m.health.SetServingStatus(ServiceName, status)
	}
	m.onProbe(up)

	if changed {
		if up {
			m.logger.Info("ocr engine available")
		} else {
			m.logger.Warn("ocr engine unavailable", zap.Error(err))
		}
	}
	return up
}

// Available returns the last probe result, probing now if none has run yet.
func (m *EngineMonitor) Available(ctx context.Context) bool {
	m.mu.RLock()
	probed, up := m.probed, m.up
	m.mu.RUnlock()
	if !probed {
		return m.Probe(ctx)
	}
	return up
}

func (m *EngineMonitor) Info(ctx context.Context) ocr.EngineInfo {
	return m.engine.Info(ctx)
}
