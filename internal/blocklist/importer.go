package blocklist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"blocklist/internal/domain"
	"blocklist/internal/metrics"
	"blocklist/internal/support"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

const (
	maxResponseBytes = 10 << 20
	LeaderKey        = "blocklist:leader:feed_import"
)

// Store is the bulk write path the importer feeds.
type Store interface {
	Import(ctx context.Context, entries []domain.NewEntry) (int, error)
}

type Outcome struct {
	Sources  int
	Failed   int
	Fetched  int
	Invalid  int
	Inserted int
}

// Importer periodically downloads the configured feeds and bulk imports their networks.
type Importer struct {
	store    Store
	sources  []string
	interval time.Duration
	client   *http.Client
	maxBody  int64
	leader   *support.Leader
	group    singleflight.Group
}

type ImporterOption func(*Importer)

// WithLeader restricts the refresh loop to the replica holding the lock.
func WithLeader(leader *support.Leader) ImporterOption {
	return func(i *Importer) {
		i.leader = leader
	}
}

func WithHTTPClient(client *http.Client) ImporterOption {
	return func(i *Importer) {
		i.client = client
	}
}

func NewImporter(store Store, sources []string, interval time.Duration, opts ...ImporterOption) *Importer {
	i := &Importer{
		store:    store,
		sources:  append([]string(nil), sources...),
		interval: interval,
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBody:  maxResponseBytes,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run refreshes once and then on every interval until ctx is done. With a leader
// configured only one replica runs the loop at a time.
func (i *Importer) Run(ctx context.Context) {
	if len(i.sources) == 0 {
		log.Debug("feed importer disabled, no sources configured")
		return
	}

	if i.leader == nil {
		i.loop(ctx)
		return
	}

	if err := i.leader.Run(ctx, i.loop); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("feed importer stopped", "error", err)
	}
}

func (i *Importer) loop(ctx context.Context) {
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	i.trigger(ctx, "startup")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.trigger(ctx, "scheduled")
		}
	}
}

func (i *Importer) trigger(ctx context.Context, reason string) {
	outcome, err := i.Refresh(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("feed import canceled", "reason", reason)
		} else {
			log.Error("feed import failed", "reason", reason, "error", err)
		}
		return
	}

	log.Info("feed import completed",
		"reason", reason,
		"sources", outcome.Sources,
		"failed", outcome.Failed,
		"fetched", outcome.Fetched,
		"invalid", outcome.Invalid,
		"inserted", outcome.Inserted,
	)
}

// Refresh downloads every source and imports what it finds. Concurrent calls share a
// single run. A failing source is skipped; the others are still imported.
func (i *Importer) Refresh(ctx context.Context) (Outcome, error) {
	result, err, _ := i.group.Do("refresh", func() (any, error) {
		return i.refresh(ctx)
	})
	if err != nil {
		return Outcome{}, err
	}
	return result.(Outcome), nil
}

func (i *Importer) refresh(ctx context.Context) (Outcome, error) {
	outcome := Outcome{Sources: len(i.sources)}

	for _, src := range i.sources {
		entries, invalid, err := i.fetch(ctx, src)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return outcome, err
			}
			outcome.Failed++
			metrics.FeedFetchFailures.WithLabelValues(src).Inc()
			log.Warn("feed fetch failed", "source", src, "error", err)
			continue
		}

		outcome.Fetched += len(entries)
		outcome.Invalid += invalid

		inserted, err := i.store.Import(ctx, entries)
		if err != nil {
			return outcome, fmt.Errorf("import %s: %w", src, err)
		}
		outcome.Inserted += inserted
		metrics.EntriesImported.WithLabelValues(src).Add(float64(inserted))
	}

	return outcome, nil
}

func (i *Importer) fetch(ctx context.Context, source string) ([]domain.NewEntry, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// A feed cut at the limit would end in a partial line, so oversize feeds fail whole.
	body, err := io.ReadAll(io.LimitReader(resp.Body, i.maxBody+1))
	if err != nil {
		return nil, 0, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > i.maxBody {
		return nil, 0, fmt.Errorf("feed exceeds %d bytes", i.maxBody)
	}

	entries, invalid, err := ParseList(bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	return entries, len(invalid), nil
}
