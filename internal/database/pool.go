package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"blocklist/internal/apperror"
	"blocklist/internal/metrics"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DefaultAcquireTimeout = 5 * time.Second
	defaultPingTimeout    = 5 * time.Second
	slowQueryThreshold    = 200 * time.Millisecond
)

// Config sizes the pool. MaxSize bounds the number of open connections and therefore
// the number of leases that can be held at once.
type Config struct {
	DSN             string
	MaxSize         int
	MaxIdle         int
	AcquireTimeout  time.Duration
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type options struct {
	existingDB     *gorm.DB
	dialector      gorm.Dialector
	logger         logger.Interface
	acquireTimeout time.Duration
}

type Option func(*options)

func WithExistingDB(db *gorm.DB) Option {
	return func(o *options) {
		o.existingDB = db
	}
}

func WithDialector(d gorm.Dialector) Option {
	return func(o *options) {
		o.dialector = d
	}
}

func WithLogger(l logger.Interface) Option {
	return func(o *options) {
		o.logger = l
	}
}

func WithAcquireTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.acquireTimeout = timeout
	}
}

// Pool hands out exclusive connection leases. It is created once at startup and
// injected into the repositories.
type Pool struct {
	db             *gorm.DB
	sqlDB          *sql.DB
	acquireTimeout time.Duration
	leases         atomic.Int64
}

// Open builds the pool and verifies the backend is reachable.
func Open(cfg Config, opts ...Option) (*Pool, error) {
	o := options{
		logger:         SilentLogger(),
		acquireTimeout: cfg.AcquireTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.acquireTimeout <= 0 {
		o.acquireTimeout = DefaultAcquireTimeout
	}

	var db *gorm.DB
	switch {
	case o.existingDB != nil:
		db = o.existingDB
	default:
		dialector := o.dialector
		if dialector == nil {
			if cfg.DSN == "" {
				return nil, apperror.New(apperror.KindConnection, "no database DSN configured")
			}
			dialector = postgres.New(postgres.Config{DSN: cfg.DSN})
		}

		opened, err := gorm.Open(dialector, &gorm.Config{
			Logger:                 o.logger,
			TranslateError:         true,
			SkipDefaultTransaction: true,
		})
		if err != nil {
			return nil, apperror.Wrap(apperror.KindConnection, err, "open database")
		}
		db = opened
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperror.Wrap(apperror.KindConnection, err, "access connection pool")
	}
	configure(sqlDB, cfg)

	pool := &Pool{db: db, sqlDB: sqlDB, acquireTimeout: o.acquireTimeout}

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		if o.existingDB == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}

	log.Debug("database pool ready", "max_size", cfg.MaxSize, "acquire_timeout", o.acquireTimeout)
	return pool, nil
}

func configure(sqlDB *sql.DB, cfg Config) {
	if cfg.MaxSize > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxSize)
	}
	if cfg.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	} else if cfg.MaxSize > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxSize)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// Lease is exclusive use of one pooled connection. Release must be called exactly once
// per successful Acquire; further calls are no-ops.
type Lease struct {
	pool *Pool
	conn *sql.Conn
	ctx  context.Context
	once sync.Once
}

// Acquire waits for a free connection until ctx ends or the acquire timeout passes.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	started := time.Now()

	acquireCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	conn, err := p.sqlDB.Conn(acquireCtx)
	metrics.LeaseAcquireSeconds.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.LeaseAcquireFailures.Inc()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, apperror.Wrap(apperror.KindConnection, err,
				fmt.Sprintf("no database connection available within %s", p.acquireTimeout))
		}
		return nil, apperror.Wrap(apperror.KindConnection, err, "acquire database connection")
	}

	p.leases.Add(1)
	metrics.LeasesInUse.Inc()
	return &Lease{pool: p, conn: conn, ctx: ctx}, nil
}

// DB returns a gorm session bound to the leased connection and the acquiring context.
func (l *Lease) DB() *gorm.DB {
	tx := l.pool.db.Session(&gorm.Session{NewDB: true, Context: l.ctx})
	tx.Statement.ConnPool = l.conn
	return tx
}

// Release hands the connection back to the pool. database/sql drops connections that
// reported driver.ErrBadConn instead of reusing them.
func (l *Lease) Release() {
	l.once.Do(func() {
		if err := l.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			log.Warn("database lease: release failed", "error", err)
		}
		l.pool.leases.Add(-1)
		metrics.LeasesInUse.Dec()
	})
}

// WithLease runs fn on a leased connection and classifies whatever it returns. The lease
// is released on every exit path, panics included.
func (p *Pool) WithLease(ctx context.Context, fn func(tx *gorm.DB) error) error {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	return apperror.FromDB(fn(lease.DB()))
}

type Stats struct {
	sql.DBStats
	Leases int64
}

func (p *Pool) Stats() Stats {
	return Stats{DBStats: p.sqlDB.Stats(), Leases: p.leases.Load()}
}

func (p *Pool) Ping(ctx context.Context) error {
	if err := p.sqlDB.PingContext(ctx); err != nil {
		return apperror.Wrap(apperror.KindConnection, err, "ping database")
	}
	return nil
}

func (p *Pool) Close() error {
	return p.sqlDB.Close()
}

// StartMetricsCollector publishes pool gauges every interval until ctx is done.
func (p *Pool) StartMetricsCollector(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.publishStats()
			}
		}
	}()
}

func (p *Pool) publishStats() {
	stats := p.sqlDB.Stats()
	if stats.MaxOpenConnections > 0 {
		metrics.PoolUsage.Set(float64(stats.OpenConnections) / float64(stats.MaxOpenConnections) * 100)
	}
	metrics.PoolConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	metrics.PoolConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	metrics.PoolWaitCount.Set(float64(stats.WaitCount))
}

// SilentLogger discards gorm output.
func SilentLogger() logger.Interface {
	return logger.New(log.Default(), logger.Config{LogLevel: logger.Silent})
}

// DebugLogger reports slow queries and errors through the application logger.
func DebugLogger() logger.Interface {
	return logger.New(log.Default(), logger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
