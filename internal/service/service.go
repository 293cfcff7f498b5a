package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/fp-mqtt-broker/internal/api"
	"github.com/nerrad567/fp-mqtt-broker/internal/broker"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/config"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/database"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/influxdb"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/logging"
	"github.com/nerrad567/fp-mqtt-broker/internal/journal"
	"github.com/nerrad567/fp-mqtt-broker/internal/recording"
	"github.com/nerrad567/fp-mqtt-broker/internal/telemetry"
	"github.com/nerrad567/fp-mqtt-broker/migrations"
)

// ErrConnectFailed is returned by Run when the initial broker connection fails.
var ErrConnectFailed = errors.New("service: initial MQTT connection failed")

// ErrAPIStopped is returned by Run when the API server stops serving on its own.
var ErrAPIStopped = errors.New("service: API server stopped")

// Options configures a Service.
type Options struct {
	Config  *config.Config
	Logger  *logging.Logger
	Version string

	// Registry receives the broker collectors and backs /metrics.
	// A fresh registry is created when nil.
	Registry *prometheus.Registry

	// Transport replaces the paho transport. Tests use it.
	Transport broker.Transport

	// Ready, if set, is called once everything has started.
	Ready func(*Service)
}

// Service runs the broker and its components until its context is cancelled.
type Service struct {
	opts   Options
	cfg    *config.Config
	logger *logging.Logger

	broker    *broker.Broker
	recording *recording.Controller
	api       *api.Server
	db        *database.DB
	influx    *influxdb.Client
}

// New validates opts and returns a Service ready to Run.
func New(opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = logging.New(opts.Config.Logging, opts.Version)
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	return &Service{
		opts:   opts,
		cfg:    opts.Config,
		logger: opts.Logger,
	}, nil
}

// Broker returns the running broker, or nil before Run has built it.
func (s *Service) Broker() *broker.Broker { return s.broker }

// APIAddr returns the bound API address, or "" when the API is disabled.
func (s *Service) APIAddr() string {
	if s.api == nil {
		return ""
	}
	return s.api.Addr()
}

// Run starts every configured component, blocks until ctx is cancelled, and
// shuts them down in reverse order.
//
// Returns:
//   - error: ErrConnectFailed if the broker refused or timed out; ErrAPIStopped
//     if the API listener failed while running; otherwise
//     the first startup failure, or nil on clean shutdown
func (s *Service) Run(ctx context.Context) (err error) {
	defer s.closeAll()

	var handlers []broker.Handler

	var repo journal.Repository
	if s.cfg.Journal.Enabled {
		repo, err = s.openJournal(ctx)
		if err != nil {
			return err
		}
		handlers = append(handlers, journal.NewHandler(repo, s.cfg.Journal.Topics))
	}

	if s.cfg.InfluxDB.Enabled {
		if err := s.connectInflux(ctx); err != nil {
			return err
		}
		handlers = append(handlers, telemetry.NewHandler(s.influx, s.cfg.InfluxDB.Topics,
			telemetry.WithTag("client_id", s.cfg.MQTT.ClientID)))
	}

	var hub *api.Hub
	if s.cfg.API.Enabled {
		hub = api.NewHub(s.cfg.WebSocket, s.logger)
		handlers = append(handlers, hub)
	}

	metrics := broker.NewMetrics(s.opts.Registry)
	transport := s.opts.Transport
	if transport == nil {
		s.broker, err = NewBroker(s.cfg.MQTT, s.logger, metrics, handlers...)
	} else {
		s.broker, err = newBroker(s.cfg.MQTT, transport, s.logger, metrics, handlers)
	}
	if err != nil {
		return fmt.Errorf("creating broker: %w", err)
	}

	if topic, ok := s.cfg.MQTT.Topic(config.RoleRecordingControl); ok {
		s.recording = recording.New(s.broker, topic, s.logger)
		s.broker.AddHandler(s.recording)
	}

	if !s.broker.Connect(ctx, s.cfg.MQTT.ConnectTimeoutDuration()) {
		return ErrConnectFailed
	}

	if s.cfg.API.Enabled {
		if err := s.startAPI(ctx, hub, repo); err != nil {
			return err
		}
	}

	if err := s.healthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	s.logger.Info("service started",
		"broker", s.cfg.MQTT.Address(),
		"topics", s.broker.SubscribedTopics(),
		"handlers", s.broker.HandlerCount(),
	)
	if s.opts.Ready != nil {
		s.opts.Ready(s)
	}

	g, gctx := errgroup.WithContext(ctx)
	if interval := s.cfg.MQTT.StatusIntervalDuration(); interval > 0 && s.broker.HasRole(config.RoleStatus) {
		g.Go(func() error {
			s.publishStatusLoop(gctx, interval)
			return nil
		})
	}
	var apiErrs <-chan error
	if s.api != nil {
		apiErrs = s.api.Errors()
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
			s.logger.Info("shutdown signal received, cleaning up")
			return nil
		case err := <-apiErrs:
			return fmt.Errorf("%w: %w", ErrAPIStopped, err)
		}
	})

	return g.Wait()
}

func (s *Service) openJournal(ctx context.Context) (journal.Repository, error) {
	db, err := database.Open(ctx, database.ConfigFromJournal(s.cfg.Journal))
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}
	s.db = db

	if err := db.Migrate(ctx, migrations.Source()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	s.logger.Info("message journal ready", "path", db.Path(), "topics", s.cfg.Journal.Topics)

	return journal.NewSQLiteRepository(db.DB), nil
}

func (s *Service) connectInflux(ctx context.Context) error {
	client, err := influxdb.Connect(ctx, s.cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	s.influx = client

	client.SetOnError(func(err error) {
		s.logger.Error("InfluxDB write error", "error", err)
	})
	s.logger.Info("InfluxDB connected",
		"url", s.cfg.InfluxDB.URL,
		"org", s.cfg.InfluxDB.Org,
		"bucket", s.cfg.InfluxDB.Bucket,
	)
	return nil
}

func (s *Service) startAPI(ctx context.Context, hub *api.Hub, repo journal.Repository) error {
	deps := api.Deps{
		Config:   s.cfg.API,
		WS:       s.cfg.WebSocket,
		Logger:   s.logger,
		Broker:   s.broker,
		Journal:  repo,
		Hub:      hub,
		Gatherer: s.opts.Registry,
		Version:  s.opts.Version,
	}
	if s.recording != nil {
		deps.Recording = s.recording
	}

	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	s.api = srv
	return nil
}

// healthCheck verifies the stores opened during startup.
func (s *Service) healthCheck(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("journal database: %w", err)
		}
	}
	if s.influx != nil {
		if err := s.influx.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

func (s *Service) publishStatusLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.broker.PublishStatus() {
				s.logger.Debug("periodic status not published", "state", s.broker.ConnectionState())
			}
		}
	}
}

// closeAll releases components in reverse start order. Safe after a partial start.
func (s *Service) closeAll() {
	if s.api != nil {
		if err := s.api.Close(); err != nil {
			s.logger.Error("error closing API server", "error", err)
		}
	}
	if s.broker != nil {
		s.broker.Disconnect()
	}
	if s.influx != nil {
		s.logger.Info("closing InfluxDB connection")
		if err := s.influx.Close(); err != nil {
			s.logger.Error("error closing InfluxDB", "error", err)
		}
	}
	if s.db != nil {
		s.logger.Info("closing journal database")
		if err := s.db.Close(); err != nil {
			s.logger.Error("error closing journal database", "error", err)
		}
	}
	s.logger.Info("service stopped")
}
