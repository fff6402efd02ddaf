package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"blocklist/internal/app/server"
	"blocklist/internal/apperror"
	"blocklist/internal/auth"
	"blocklist/internal/blocklist"
	"blocklist/internal/config"
	"blocklist/internal/database"
	"blocklist/internal/geolite"
	"blocklist/internal/support"
)

const poolMetricsInterval = 15 * time.Second

func Run() error {
	envFile := flag.String("env-file", ".env", "Path to an env file loaded before reading the environment")
	flag.Parse()

	if err := loadEnvFile(*envFile, flagPassed("env-file")); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.SetLevel(parseLogLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, cfg.Database.URL); err != nil {
		return err
	}

	gormLogger := database.SilentLogger()
	if log.GetLevel() <= log.DebugLevel {
		gormLogger = database.DebugLogger()
	}

	pool, err := database.Open(database.Config{
		DSN:             cfg.Database.URL,
		MaxSize:         cfg.Database.PoolSize,
		MaxIdle:         cfg.Database.MaxIdleConns,
		AcquireTimeout:  cfg.Database.AcquireTimeout,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, database.WithLogger(gormLogger))
	if err != nil {
		return err
	}
	defer func() {
		if err := pool.Close(); err != nil {
			log.Warn("error closing database pool", "error", err)
		}
	}()
	pool.StartMetricsCollector(ctx, poolMetricsInterval)

	repo := database.NewBlocklistRepository(pool)

	enricher, err := geolite.Open(cfg.GeoCountryPath, cfg.GeoASNPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := enricher.Close(); err != nil {
			log.Warn("error closing GeoLite readers", "error", err)
		}
	}()

	if err := startImporter(ctx, cfg, repo); err != nil {
		return err
	}

	authenticator := auth.New(cfg.Auth.JWTSecret, cfg.Auth.AdminPasswordHash, cfg.Auth.TokenTTL)
	if authenticator == nil {
		log.Warn("BLOCKLIST_JWT_SECRET not set, write routes are unauthenticated")
	}

	srv := server.New(repo, pool,
		server.WithAuthenticator(authenticator),
		server.WithEnricher(enricher),
		server.WithStaticDir(cfg.HTTP.StaticDir),
	)
	return srv.Serve(ctx, cfg.HTTP.Addr(), cfg.HTTP.MaxConnections)
}

func startImporter(ctx context.Context, cfg *config.Config, repo *database.BlocklistRepository) error {
	if len(cfg.Importer.Sources) == 0 {
		return nil
	}

	var opts []blocklist.ImporterOption
	if cfg.RedisURL != "" {
		client, err := support.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to get redis client: %w", err)
		}
		context.AfterFunc(ctx, func() {
			if err := client.Close(); err != nil {
				log.Warn("error closing redis client", "error", err)
			}
		})
		opts = append(opts, blocklist.WithLeader(support.NewLeader(client, blocklist.LeaderKey, support.DefaultLeadershipTTL)))
	}

	importer := blocklist.NewImporter(repo, cfg.Importer.Sources, cfg.Importer.Interval, opts...)
	go importer.Run(ctx)

	log.Info("feed importer started", "sources", len(cfg.Importer.Sources), "interval", cfg.Importer.Interval, "leader_lock", cfg.RedisURL != "")
	return nil
}

// loadEnvFile loads path if it exists. Variables already set in the process win. A
// missing file is only fatal when the operator named it explicitly.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if explicit {
			return apperror.Wrap(apperror.KindEnv, err, "failed to load env file "+path)
		}
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("No .env file found. Falling back to system environment variables.", "path", path)
			return nil
		}
		log.Warn("could not load env file", "path", path, "error", err)
	}
	return nil
}

func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

func parseLogLevel(raw string) log.Level {
	level, err := log.ParseLevel(raw)
	if err != nil {
		log.Warn("invalid APP_LOG_LEVEL, using info", "value", raw)
		return log.InfoLevel
	}
	return level
}
