package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeadershipTTL   = 45 * time.Second
	defaultRetryDelay      = time.Second
	renewalTimeout         = 5 * time.Second
	minRenewalInterval     = 100 * time.Millisecond
	defaultRenewalFraction = 3
)

var (
	leaderCounter atomic.Uint64

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
)

// Leader is a Redis lock that lets exactly one replica run a job at a time.
type Leader struct {
	client     *redis.Client
	key        string
	ttl        time.Duration
	RetryDelay time.Duration
}

func NewLeader(client *redis.Client, key string, ttl time.Duration) *Leader {
	if ttl <= 0 {
		ttl = DefaultLeadershipTTL
	}
	return &Leader{
		client:     client,
		key:        key,
		ttl:        ttl,
		RetryDelay: defaultRetryDelay,
	}
}

// Run blocks until the lock is acquired, invokes run while holding it and starts over once
// run returns. The context handed to run is cancelled when the lock is lost. Run returns
// when ctx is done.
func (l *Leader) Run(ctx context.Context, run func(context.Context)) error {
	if run == nil {
		return errors.New("support: leader run function cannot be nil")
	}
	if l.client == nil {
		return errors.New("support: leader lock requires a redis client")
	}

	for {
		session, err := l.acquire(ctx)
		if err != nil {
			return err
		}

		log.Debug("leader lock: acquired", "key", l.key)
		run(session.ctx)
		session.close()
		log.Debug("leader lock: released", "key", l.key)

		if err := l.wait(ctx); err != nil {
			return err
		}
	}
}

// tryAcquire makes a single attempt. The returned release func is nil when the lock is
// held elsewhere.
func (l *Leader) tryAcquire(ctx context.Context) (context.Context, func(), error) {
	session, err := l.tryOnce(ctx)
	if err != nil || session == nil {
		return nil, nil, err
	}
	return session.ctx, session.close, nil
}

func (l *Leader) acquire(ctx context.Context) (*leaderSession, error) {
	for {
		session, err := l.tryOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("leader lock: setnx failed", "key", l.key, "error", err)
		}
		if session != nil {
			return session, nil
		}
		if err := l.wait(ctx); err != nil {
			return nil, err
		}
	}
}

func (l *Leader) tryOnce(ctx context.Context) (*leaderSession, error) {
	value := generateLeaderID()

	ok, err := l.client.SetNX(ctx, l.key, value, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("leader lock setnx: %w", err)
	}
	if !ok {
		return nil, nil
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	session := &leaderSession{
		leader:    l,
		value:     value,
		ctx:       sessionCtx,
		cancel:    cancel,
		stopRenew: make(chan struct{}),
	}
	go session.renewLoop()
	return session, nil
}

func (l *Leader) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(l.RetryDelay):
		return nil
	}
}

type leaderSession struct {
	leader    *Leader
	value     string
	ctx       context.Context
	cancel    context.CancelFunc
	stopRenew chan struct{}
	closeOnce sync.Once
}

func (ls *leaderSession) close() {
	ls.closeOnce.Do(func() {
		close(ls.stopRenew)
		ls.cancel()
		if err := ls.release(); err != nil {
			log.Warn("leader lock: release failed", "key", ls.leader.key, "error", err)
		}
	})
}

func (ls *leaderSession) renewLoop() {
	interval := ls.leader.ttl / defaultRenewalFraction
	if interval < minRenewalInterval {
		interval = minRenewalInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ls.stopRenew:
			return
		case <-ls.ctx.Done():
			return
		case <-ticker.C:
			if err := ls.renew(); err != nil {
				log.Warn("leader lock: renewal failed", "key", ls.leader.key, "error", err)
				ls.cancel()
				return
			}
		}
	}
}

func (ls *leaderSession) renew() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	res, err := renewScript.Run(ctx, ls.leader.client, []string{ls.leader.key}, ls.value, ls.leader.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if updated, ok := res.(int64); ok && updated == 0 {
		return errors.New("lock lost")
	}
	return nil
}

func (ls *leaderSession) release() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	_, err := releaseScript.Run(ctx, ls.leader.client, []string{ls.leader.key}, ls.value).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func generateLeaderID() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%d-%d", host, os.Getpid(), time.Now().UnixNano(), leaderCounter.Add(1))
}
