// Command agentmaild is the agentmail collaboration kernel's server
// binary: it loads configuration, opens the store, wires the engines into
// the tool dispatcher, and serves the JSON-RPC tool surface over HTTP and
// (in "cli" interface mode) stdio, the way the teacher's cmd/agentflow
// lays out serve/migrate/version/health subcommands over one main.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/agentmaild/agentmail/internal/ack"
	"github.com/agentmaild/agentmail/internal/config"
	"github.com/agentmaild/agentmail/internal/contacts"
	"github.com/agentmaild/agentmail/internal/dispatcher"
	"github.com/agentmaild/agentmail/internal/eventbus"
	"github.com/agentmaild/agentmail/internal/mail"
	"github.com/agentmaild/agentmail/internal/metrics"
	"github.com/agentmaild/agentmail/internal/registry"
	"github.com/agentmaild/agentmail/internal/reservation"
	"github.com/agentmaild/agentmail/internal/server"
	"github.com/agentmaild/agentmail/internal/store"
	"github.com/agentmaild/agentmail/internal/telemetry"
	"github.com/agentmaild/agentmail/internal/transport"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "serve":
		os.Exit(runServe(os.Args[2:]))
	case "migrate":
		os.Exit(runMigrate(os.Args[2:]))
	case "version":
		fmt.Printf("agentmaild %s\n", Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Println(`Usage:
  agentmaild serve [--config path]   Start the collaboration kernel
  agentmaild migrate                 Apply pending schema migrations
  agentmaild version                 Print the build version
  agentmaild help                    Show this message`)
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	logger := config.NewLogger(cfg.Log)
	defer logger.Sync()

	projectRoot, err := os.Getwd()
	if err != nil {
		logger.Error("resolve project root", zap.Error(err))
		return 1
	}

	otelProviders, err := telemetry.Init(cfg.Telemetry(), logger)
	if err != nil {
		logger.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelProviders.Shutdown(ctx)
	}()

	s, err := store.Open(store.Config{
		DatabaseURL:         cfg.DatabaseURL,
		MaxRetries:          cfg.DBMaxRetries,
		RetryBaseDelay:      cfg.DBRetryBaseDelay,
		PoolMaxOpenConns:    cfg.DBPoolMaxOpenConns,
		PoolMaxIdleConns:    cfg.DBPoolMaxIdleConns,
		PoolConnMaxLifetime: cfg.DBPoolConnMaxLifetime,
		PoolConnMaxIdleTime: cfg.DBPoolConnMaxIdleTime,
	}, logger)
	if err != nil {
		logger.Error("open store", zap.Error(err))
		return 1
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		logger.Error("apply migrations", zap.Error(err))
		return 1
	}

	if err := os.MkdirAll(cfg.StorageRoot, 0o755); err != nil {
		logger.Error("create storage root", zap.Error(err))
		return 1
	}

	collector := metrics.NewCollector("agentmail", logger)

	bus := eventbus.New(eventbus.WithDropHandler(collector.RecordEventDropped))
	defer bus.Close()

	reg, err := registry.New(s, nil)
	if err != nil {
		logger.Error("build registry", zap.Error(err))
		return 1
	}

	ackEngine := ack.New(s, bus)
	d := dispatcher.Build(dispatcher.Deps{
		Registry:    reg,
		Contacts:    contacts.New(s, bus),
		Mail:        mail.New(s, bus),
		Ack:         ackEngine,
		Reservation: reservation.New(s, bus, cfg.ReservationForceReleaseGrace),
	}, dispatcher.WithLogger(logger), dispatcher.WithMetrics(collector))

	router := transport.NewRouter(d)

	metricsSub, unsubscribeMetrics := bus.Subscribe()
	defer unsubscribeMetrics()
	go recordBusMetrics(metricsSub, collector)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go ackEngine.Sweep(sweepCtx, cfg.AckSweepInterval, logger)

	statsCtx, stopStats := context.WithCancel(context.Background())
	defer stopStats()
	go recordDBStats(statsCtx, s, string(s.Backend()), collector, cfg.DBStatsInterval)

	if cfg.InterfaceMode == "cli" {
		stdioCtx, stopStdio := context.WithCancel(context.Background())
		defer stopStdio()
		go func() {
			if err := transport.ServeStdio(stdioCtx, os.Stdin, os.Stdout, router, logger); err != nil {
				logger.Warn("stdio transport stopped", zap.Error(err))
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)

	var auth transport.Authenticator
	switch {
	case cfg.HTTPBearerJWTSecret != "":
		auth = transport.BearerAuth{JWTSecret: []byte(cfg.HTTPBearerJWTSecret), AllowLoopback: cfg.HTTPAllowLocalhostUnauthenticated}
	case cfg.HTTPBearerToken != "":
		auth = transport.BearerAuth{Token: cfg.HTTPBearerToken, AllowLoopback: cfg.HTTPAllowLocalhostUnauthenticated}
	default:
		auth = transport.NoAuth{}
	}

	health := transport.StoreHealth{Store: s, Versions: s.Migrator(), ProjectRoot: projectRoot}
	events := transport.EventStream{Bus: bus, Logger: logger}
	mux := transport.NewMux(transport.HTTPConfig{BasePath: cfg.HTTPPath, Auth: auth}, router, health, events)
	handler := transport.Chain(mux,
		transport.Recovery(logger),
		transport.RequestLogger(logger),
		transport.RequestMetrics(collector),
		transport.SecurityHeaders(),
	)

	fingerprint := transport.Fingerprint(projectRoot, schemaVersionOf(s))

	mgr := server.NewManager(handler, server.Config{
		Addr:            addr,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 15 * time.Second,
		TLSCertFile:     cfg.TLSCertFile,
		TLSKeyFile:      cfg.TLSKeyFile,
	}, logger)

	if err := mgr.Start(); err != nil {
		if cfg.ReuseRunning && reuseRunningInstance(addr, fingerprint, logger) {
			logger.Info("agentmail server already running at this address, reusing it", zap.String("addr", addr))
			return 0
		}
		logger.Error("bind listener: a foreign process holds this address", zap.String("addr", addr), zap.Error(err))
		return 2
	}

	transport.LogBanner(logger, transport.BannerInfo{
		Host:          cfg.HTTPHost,
		Port:          cfg.HTTPPort,
		BasePath:      cfg.HTTPPath,
		AuthMode:      authMode(cfg),
		MaskedToken:   maskedToken(cfg),
		DatabaseURL:   cfg.DatabaseURL,
		StorageRoot:   cfg.StorageRoot,
		InterfaceMode: cfg.InterfaceMode,
		Fingerprint:   fingerprint,
	})

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown server", zap.Error(err))
		return 1
	}
	return 0
}

func runMigrate(args []string) int {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	logger := config.NewLogger(cfg.Log)
	defer logger.Sync()

	s, err := store.Open(store.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		return 1
	}
	defer s.Close()

	if err := s.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		return 1
	}
	fmt.Println("migrations applied")
	return 0
}

// recordBusMetrics drains a subscription and feeds every event into the
// collector, so mail/ack/reservation/contact metrics stay correct without
// each engine needing its own reference to the collector.
func recordBusMetrics(events <-chan eventbus.Event, collector *metrics.Collector) {
	for ev := range events {
		collector.RecordEventPublished(ev.Topic)
		switch ev.Topic {
		case eventbus.TopicDeliveryCreated:
			collector.RecordMailDelivery("created")
		case eventbus.TopicDeliveryRead:
			collector.RecordMailDelivery("read")
		case eventbus.TopicAckOverdue:
			collector.RecordAckOverdue(strconv.FormatInt(ev.ProjectID, 10), 1)
		case eventbus.TopicReservationGranted:
			collector.RecordReservationEvent("granted")
		case eventbus.TopicReservationReleased:
			collector.RecordReservationEvent("released")
		case eventbus.TopicReservationExpired:
			collector.RecordReservationEvent("expired")
		case eventbus.TopicContactRequested:
			collector.RecordContactEvent("requested")
		case eventbus.TopicContactResponded:
			collector.RecordContactEvent("responded")
		}
	}
}

// recordDBStats polls the store's connection pool on a fixed interval and
// feeds open/idle counts to the collector, the same shape as the teacher's
// database.PoolManager health-check loop but driving a metrics gauge
// instead of a log line.
func recordDBStats(ctx context.Context, s *store.Store, backend string, collector *metrics.Collector, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.Stats()
			collector.RecordDBConnections(backend, stats.OpenConnections, stats.Idle)
		}
	}
}

func schemaVersionOf(s *store.Store) uint {
	version, _, err := s.Migrator().Version(context.Background())
	if err != nil {
		return 0
	}
	return version
}

func authMode(cfg *config.Config) string {
	switch {
	case cfg.HTTPBearerJWTSecret != "":
		return "jwt"
	case cfg.HTTPBearerToken != "":
		return "shared-secret"
	default:
		return "none"
	}
}

func maskedToken(cfg *config.Config) string {
	if cfg.HTTPBearerJWTSecret != "" {
		return transport.MaskToken(cfg.HTTPBearerJWTSecret)
	}
	if cfg.HTTPBearerToken != "" {
		return transport.MaskToken(cfg.HTTPBearerToken)
	}
	return ""
}

// reuseRunningInstance asks whatever is listening on addr for its
// liveness fingerprint; a match means it is an agentmail instance bound
// to the same project root and schema, safe to treat startup as a no-op
// success rather than a conflict (spec §4.8, §9).
func reuseRunningInstance(addr, fingerprint string, logger *zap.Logger) bool {
	status, err := transport.CheckLiveness(addr, 3*time.Second)
	if err != nil {
		return false
	}
	if status.Fingerprint != fingerprint {
		logger.Warn("address is held by a foreign or differently-rooted instance",
			zap.String("addr", addr), zap.String("want_fingerprint", fingerprint), zap.String("got_fingerprint", status.Fingerprint))
		return false
	}
	return true
}
