package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BusBom/rpi-server/config"
	"github.com/BusBom/rpi-server/core/dispatch"
	"github.com/BusBom/rpi-server/core/dispatch/logging"
	coremetrics "github.com/BusBom/rpi-server/core/metrics"
	coremon "github.com/BusBom/rpi-server/core/monitoring"
	"github.com/BusBom/rpi-server/core/station"
	"github.com/BusBom/rpi-server/core/stationstatus"
	"github.com/BusBom/rpi-server/infra/collector"
	_ "github.com/BusBom/rpi-server/infra/emitter"
	"github.com/BusBom/rpi-server/infra/logger"
	"github.com/BusBom/rpi-server/infra/metrics"
	"github.com/BusBom/rpi-server/infra/monitoring"
	_ "github.com/BusBom/rpi-server/infra/mqtt"
	"github.com/BusBom/rpi-server/internal/eventbus"
)

// Service wires the control loop of one stop to its HTTP sources, display
// emitters, metrics sinks and read-only API.
type Service struct {
	Manager *dispatch.Manager

	cfg    *config.Config
	bus    eventbus.EventBus
	sink   coremetrics.MetricsSink
	logs   logging.LogStore
	status *stationstatus.MemoryStore
	dwell  *stationstatus.DwellTracker
	log    logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.SetGlobalLevel(cfg.Logging.Level)
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry, cfg.Dispatch.StationID)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	client, err := collector.NewClient(cfg.Sources)
	if err != nil {
		return nil, fmt.Errorf("collector: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	emitter, err := dispatch.NewEmitter(cfg.Dispatch.Emitters)
	if err != nil {
		closeAll(sink)
		return nil, fmt.Errorf("emitter: %w", err)
	}
	store, err := logging.NewLogStore(cfg.Logging.Cycles)
	if err != nil {
		closeAll(sink, emitter)
		return nil, fmt.Errorf("cycle log: %w", err)
	}

	rec := station.NewReconciler(cfg.Station, nil, time.Now)
	disp := dispatch.NewDispatcher(time.Now)
	bus := eventbus.New()
	manager, err := dispatch.NewManager(cfg.Dispatch, rec, disp, client, client, emitter, sink, bus, logger.New("dispatch"))
	if err != nil {
		closeAll(sink, emitter, store)
		return nil, fmt.Errorf("dispatch manager: %w", err)
	}
	status := stationstatus.NewMemoryStore()
	manager.SetStatusStore(status)
	if store != nil {
		manager.SetLogStore(store)
	}

	return &Service{
		Manager: manager,
		cfg:     cfg,
		bus:     bus,
		sink:    sink,
		logs:    store,
		status:  status,
		dwell:   stationstatus.NewDwellTracker(cfg.API.DwellWindow),
		log:     logg,
	}, nil
}

// Run starts the control loop and the optional HTTP servers. It blocks
// until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.dwell.Start(ctx, s.bus)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if addr := s.cfg.API.Addr; addr != "" {
		go func() {
			if err := s.serveAPI(ctx, addr); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}
	s.Manager.Run(ctx)
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	err := s.Manager.Close()
	if d, ok := s.bus.(interface{ Dropped() uint64 }); ok && d.Dropped() > 0 {
		s.log.Warnf("event bus dropped %d events for slow subscribers", d.Dropped())
	}
	if c, ok := s.sink.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	coremon.Flush(s.cfg.Sentry.FlushTimeout())
	return err
}

func closeAll(xs ...any) {
	for _, x := range xs {
		if c, ok := x.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
