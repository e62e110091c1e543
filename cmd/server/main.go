package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"matchbook/api/grpcserver"
	"matchbook/config"
	"matchbook/domain/orderbook"
	"matchbook/infra/idgen"
	"matchbook/infra/kafka"
	"matchbook/infra/log"
	"matchbook/infra/metrics"
	"matchbook/infra/outbox"
	"matchbook/jobs/broadcaster"
	"matchbook/jobs/feeder"
	"matchbook/service"
	"matchbook/snapshot"
)

type publisher interface {
	broadcaster.Publisher
	Close() error
}

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := log.New(log.Options{})
		boot.Fatal().Err(err).Msg("config")
	}
	logger := log.New(log.Options{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
	logger.Info().Msg("bye")
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	// ---------------- Outbox ----------------

	ob, err := outbox.Open(cfg.Outbox.Dir)
	if err != nil {
		return err
	}
	defer ob.Close()

	lastSeq, err := ob.LastSeq()
	if err != nil {
		return err
	}

	// ---------------- Metrics ----------------

	reg := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return err
	}

	// ---------------- Domain ----------------

	session, err := cfg.BookSession()
	if err != nil {
		return err
	}
	book := orderbook.New(
		orderbook.Config{Session: session},
		orderbook.WithLogger(logger.With().Str("component", "book").Logger()),
	)

	svc := service.New(book,
		service.WithTradeLog(ob),
		service.WithMetrics(m),
		service.WithStartSeq(lastSeq),
		service.WithLogger(logger.With().Str("component", "service").Logger()),
	)

	// ---------------- Publisher ----------------

	pub, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer pub.Close()

	// ---------------- Background Jobs ----------------

	md := grpcserver.NewServer(svc, snapshot.DefaultScale)

	bc := broadcaster.New(ob, pub, cfg.Broadcaster.Interval, logger).WithObserver(m)
	var jobs sync.WaitGroup
	defer jobs.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs.Add(2)
	go func() {
		defer jobs.Done()
		bc.Run(ctx)
	}()
	go func() {
		defer jobs.Done()
		svc.RunSessionTicker(ctx, cfg.Server.TickInterval, md.SyncHealth)
	}()

	if cfg.Feeder.Enabled {
		job, err := newFeederJob(cfg, svc, logger)
		if err != nil {
			return err
		}
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			job.Run(ctx)
		}()
	}

	// ---------------- Metrics HTTP ----------------

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	gs := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.UnaryLogger(logger.With().Str("component", "grpc").Logger())))
	md.Register(gs)
	md.SyncHealth(svc.Status())

	go func() {
		<-ctx.Done()
		md.Shutdown()
		gs.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("grpc", cfg.Server.GRPCAddr).
		Str("metrics", cfg.Server.MetricsAddr).
		Str("session", session.Open.String()+"-"+session.Close.String()).
		Uint64("last_seq", lastSeq).
		Msg("matchbook running")

	return gs.Serve(lis)
}

func newPublisher(cfg config.Config, logger zerolog.Logger) (publisher, error) {
	if !cfg.Kafka.Enabled {
		return broadcaster.NewLogPublisher(logger.With().Str("component", "trades").Logger()), nil
	}
	switch cfg.Kafka.Client {
	case config.ClientKafkaGo:
		return kafka.NewWriterPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic), nil
	default:
		return kafka.NewSaramaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
}

// newFeederJob drives synthetic flow through svc. A zero seed is replaced
// by the clock.
func newFeederJob(cfg config.Config, svc *service.BookService, logger zerolog.Logger) (*feeder.Job, error) {
	seed := cfg.Feeder.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	gen, err := idgen.New(cfg.Feeder.IDs, seed)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("ids", cfg.Feeder.IDs).Uint64("seed", seed).Msg("feeder enabled")
	return feeder.NewJob(feeder.New(seed, gen), svc, cfg.Feeder.Rate, logger), nil
}
