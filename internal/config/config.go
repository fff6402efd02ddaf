package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"blocklist/internal/apperror"
	"blocklist/internal/support"
)

const (
	defaultHostname       = "localhost"
	defaultPort           = 6060
	defaultMaxConnections = 256
	defaultAcquireTimeout = 5 * time.Second
	defaultConnLifetime   = 5 * time.Minute
	defaultConnIdleTime   = time.Minute
	defaultImportInterval = 6 * time.Hour
	defaultTokenTTL       = 12 * time.Hour
)

type Config struct {
	Database Database
	HTTP     HTTP
	Auth     Auth
	Importer Importer

	LogLevel       string
	RedisURL       string
	GeoCountryPath string
	GeoASNPath     string
}

type Database struct {
	URL             string
	PoolSize        int
	MaxIdleConns    int
	AcquireTimeout  time.Duration
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type HTTP struct {
	Hostname       string
	Port           int
	MaxConnections int
	StaticDir      string
}

// Addr is the host:port the server listens on.
func (h HTTP) Addr() string {
	return net.JoinHostPort(h.Hostname, strconv.Itoa(h.Port))
}

type Auth struct {
	JWTSecret         string
	AdminPasswordHash string
	TokenTTL          time.Duration
}

// Enabled reports whether write routes require a bearer token.
func (a Auth) Enabled() bool {
	return a.JWTSecret != ""
}

type Importer struct {
	Sources  []string
	Interval time.Duration
}

// Load reads the process environment. DATABASE_URL and DATABASE_POOL_SIZE are required.
func Load() (*Config, error) {
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		return nil, apperror.New(apperror.KindEnv, "DATABASE_URL is not set")
	}

	rawPoolSize, ok := os.LookupEnv("DATABASE_POOL_SIZE")
	if !ok || strings.TrimSpace(rawPoolSize) == "" {
		return nil, apperror.New(apperror.KindEnv, "DATABASE_POOL_SIZE is not set")
	}
	poolSize, err := strconv.Atoi(strings.TrimSpace(rawPoolSize))
	if err != nil {
		return nil, apperror.Wrap(apperror.KindEnv, err, "DATABASE_POOL_SIZE must be an integer")
	}
	if poolSize <= 0 {
		return nil, apperror.Newf(apperror.KindEnv, "DATABASE_POOL_SIZE must be positive, got %d", poolSize)
	}

	port := support.GetEnvInt("BLOCKLIST_PORT", defaultPort)
	if port <= 0 || port > 65535 {
		return nil, apperror.Newf(apperror.KindEnv, "BLOCKLIST_PORT out of range: %d", port)
	}

	cfg := &Config{
		Database: Database{
			URL:             dbURL,
			PoolSize:        poolSize,
			MaxIdleConns:    support.GetEnvInt("DATABASE_MAX_IDLE_CONNS", poolSize),
			AcquireTimeout:  support.GetEnvDuration("DATABASE_ACQUIRE_TIMEOUT", defaultAcquireTimeout),
			ConnMaxLifetime: support.GetEnvDuration("DATABASE_CONN_MAX_LIFETIME", defaultConnLifetime),
			ConnMaxIdleTime: support.GetEnvDuration("DATABASE_CONN_MAX_IDLE_TIME", defaultConnIdleTime),
		},
		HTTP: HTTP{
			Hostname:       support.GetEnv("BLOCKLIST_HOSTNAME", defaultHostname),
			Port:           port,
			MaxConnections: support.GetEnvInt("BLOCKLIST_MAX_CONNECTIONS", defaultMaxConnections),
			StaticDir:      support.GetEnv("STATIC_DIR", "static"),
		},
		Auth: Auth{
			JWTSecret:         os.Getenv("BLOCKLIST_JWT_SECRET"),
			AdminPasswordHash: os.Getenv("BLOCKLIST_ADMIN_PASSWORD_HASH"),
			TokenTTL:          support.GetEnvDuration("BLOCKLIST_TOKEN_TTL", defaultTokenTTL),
		},
		Importer: Importer{
			Sources:  support.GetEnvList("BLOCKLIST_IMPORT_SOURCES"),
			Interval: support.GetEnvDuration("BLOCKLIST_IMPORT_INTERVAL", defaultImportInterval),
		},
		LogLevel:       strings.ToLower(support.GetEnv("APP_LOG_LEVEL", "info")),
		RedisURL:       strings.TrimSpace(os.Getenv("REDIS_URL")),
		GeoCountryPath: strings.TrimSpace(os.Getenv("GEOLITE_COUNTRY_DB")),
		GeoASNPath:     strings.TrimSpace(os.Getenv("GEOLITE_ASN_DB")),
	}

	if cfg.Database.MaxIdleConns > poolSize {
		cfg.Database.MaxIdleConns = poolSize
	}
	if cfg.Auth.Enabled() && cfg.Auth.AdminPasswordHash == "" {
		return nil, apperror.New(apperror.KindEnv, "BLOCKLIST_ADMIN_PASSWORD_HASH is required when BLOCKLIST_JWT_SECRET is set")
	}
	if cfg.Importer.Interval <= 0 {
		return nil, apperror.New(apperror.KindEnv, fmt.Sprintf("BLOCKLIST_IMPORT_INTERVAL must be positive, got %s", cfg.Importer.Interval))
	}

	return cfg, nil
}
