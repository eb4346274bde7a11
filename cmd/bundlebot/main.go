package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bundlebot/bot"
	"bundlebot/bundle"
	"bundlebot/core/buildinfo"
	coreconfig "bundlebot/core/config"
	coredatabase "bundlebot/core/database"
	"bundlebot/core/logger"
	coretelegram "bundlebot/core/telegram"
	"bundlebot/store/filestore"
	"bundlebot/store/pgstore"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := run(); err != nil {
		log.Fatalf("bundlebot: %v", err)
	}
}

func run() error {
	// .env is optional; real deployments use environment variables.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}
	log.Printf("loading config: %s", cfgPath)
	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.InitLogger(cfg); err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	logger.L.With("component", "app").Info("starting",
		slog.String("event", "boot"),
		slog.String("version", buildinfo.Version),
		slog.String("commit", buildinfo.Commit),
	)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	catalog, err := buildCatalog(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	notifier := bot.NewTeleNotifier()
	svc, err := bundle.NewService(ctx, bundle.Config{
		Admins:     cfg.Telegram.Admins,
		SessionTTL: cfg.Telegram.SessionTTL.Std(),
	}, catalog, store, notifier)
	if err != nil {
		return fmt.Errorf("service init: %w", err)
	}
	defer svc.Close()

	app := bot.New(svc)
	reg := app.Registry()

	startedAt := time.Now()
	runOpts := coretelegram.RunOptions{
		Config:      cfg,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(cfg, nil),
		Routes:      app.Routes(cfg, reg),
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			notifier.Bind(rt.Bot)
			logger.L.With("component", "app").Info("app ready",
				slog.String("event", "ready"),
				slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
			)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			logger.L.With("component", "app").Info("shutting down...",
				slog.String("event", "shutdown"),
			)
			return nil
		},
	}

	return coretelegram.RunTelegram(ctx, runOpts)
}

func openStore(cfg *coreconfig.Config) (bundle.Store, error) {
	switch cfg.Store.Backend {
	case coreconfig.BackendPostgres:
		db := cfg.Store.Database
		st, err := pgstore.Open(coredatabase.Config{
			Host:           db.Host,
			Port:           db.Port,
			User:           db.User,
			Password:       db.Password,
			Name:           db.Name,
			SSLMode:        db.SSLMode,
			MaxConnections: db.MaxConnections,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		return st, nil
	default:
		st, err := filestore.New(cfg.Store.Dir)
		if err != nil {
			return nil, fmt.Errorf("file store: %w", err)
		}
		return st, nil
	}
}

func buildCatalog(cfg *coreconfig.Config) (*bundle.Catalog, error) {
	packages := bundle.DefaultPackages()
	if len(cfg.Packages) > 0 {
		packages = make([]bundle.Package, 0, len(cfg.Packages))
		for _, p := range cfg.Packages {
			packages = append(packages, bundle.Package{
				ID:    p.ID,
				Label: p.Label,
				Hours: p.Hours,
				Price: p.Price,
			})
		}
	}
	catalog, err := bundle.NewCatalog(packages)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return catalog, nil
}
