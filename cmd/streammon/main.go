package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/irctrakz/streammon/pkg/api"
	"github.com/irctrakz/streammon/pkg/config"
	"github.com/irctrakz/streammon/pkg/events"
	"github.com/irctrakz/streammon/pkg/exporter"
	"github.com/irctrakz/streammon/pkg/logging"
	"github.com/irctrakz/streammon/pkg/monitoring"
	"github.com/irctrakz/streammon/pkg/natsbus"
)

func main() {
	configPath := flag.String("config", os.Getenv("STREAMMON_CONFIG"), "path to a .yaml, .yml or .json config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logging.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Fatalf("streammon: %v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		if err := config.LoadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyLogging(); err != nil {
		return nil, err
	}
	if cfg.Host.ID == "" {
		cfg.Host.ID = uuid.New().String()
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) (err error) {
	host := monitoring.NewHostMetrics(cfg.Host.ID, cfg.Host.Name, monitoring.Config{
		MaxStreamsPerApplication: cfg.Monitoring.MaxStreamsPerApplication,
		LogStreamInfoOnDelete:    cfg.Monitoring.LogStreamInfoOnDelete,
		Clock:                    clock.New(),
	})
	dispatcher := events.NewDispatcher(host)
	logging.InfoWithFields(logging.Fields{"host_id": cfg.Host.ID, "host": cfg.Host.Name}, "streammon starting")

	var gatherer prometheus.Gatherer
	if cfg.Prometheus.Enabled {
		reg := prometheus.NewRegistry()
		if err := reg.Register(exporter.NewCollector(cfg.Prometheus.Namespace, host, dispatcher, cfg.Prometheus.PerStream)); err != nil {
			return fmt.Errorf("register collector: %w", err)
		}
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		gatherer = reg
	}

	g, gctx := errgroup.WithContext(ctx)

	var nc *nats.Conn
	var pub infoPublisher
	if cfg.NATS.Enabled {
		nc, err = natsbus.Connect(cfg.NATS)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, natsbus.Close(nc)) }()

		sub := natsbus.NewSubscriber(nc, cfg.NATS.EventSubject, dispatcher)
		g.Go(func() error { return sub.Run(gctx) })
		if cfg.NATS.ReportSubject != "" {
			pub = natsbus.NewPublisher(nc, cfg.NATS.ReportSubject)
		}
	}

	if cfg.API.Enabled {
		srv := api.NewServer(cfg.API, dispatcher, gatherer)
		g.Go(func() error { return srv.Run(gctx) })
	}

	if cfg.Reporter.Enabled {
		interval, ierr := cfg.ReporterInterval()
		if ierr != nil {
			return ierr
		}
		r := newMetricsReporter(dispatcher, cfg.Reporter, pub, clock.New())
		g.Go(func() error {
			r.run(gctx, interval)
			return nil
		})
	}

	err = g.Wait()
	host.ShowInfo(false)
	logging.Infof("streammon stopped")
	return err
}
