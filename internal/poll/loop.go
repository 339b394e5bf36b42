// Package poll runs the hot-thread polling loop: fetch a batch, drop items that
// were already handled, and publish a word cloud for each new one.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kalambet/cloudbot/internal/corpus"
	"github.com/kalambet/cloudbot/internal/feed"
	"github.com/kalambet/cloudbot/internal/state"
	"github.com/kalambet/cloudbot/internal/storage"
)

// Feed lists and fetches threads.
type Feed interface {
	ListHot(ctx context.Context, scope string, limit int) ([]feed.Item, error)
	GetItem(ctx context.Context, id string) (feed.Item, error)
}

// ProcessedStore is the durable set of handled item ids.
type ProcessedStore interface {
	Snapshot() state.Set
	MarkAndPersist(id string) error
}

// Publisher turns a thread corpus into a posted reply.
type Publisher interface {
	PublishThread(ctx context.Context, item feed.Item, c corpus.Result) (storage.Publication, error)
}

// ClaimPolicy decides when an item is marked as processed.
type ClaimPolicy string

const (
	// MarkFirst marks an item before any side effect. A crash mid-item skips
	// it forever but never double-posts.
	MarkFirst ClaimPolicy = "mark-first"
	// PublishFirst marks an item only after its reply is posted. A crash
	// between the two posts the reply again on restart.
	PublishFirst ClaimPolicy = "publish-first"
)

// ParseClaimPolicy validates a policy name.
func ParseClaimPolicy(s string) (ClaimPolicy, error) {
	switch p := ClaimPolicy(s); p {
	case MarkFirst, PublishFirst:
		return p, nil
	case "":
		return MarkFirst, nil
	default:
		return "", fmt.Errorf("unknown claim policy %q (want %q or %q)", s, MarkFirst, PublishFirst)
	}
}

// Options configures a Loop.
type Options struct {
	Scope       string        // defaults to "all"
	BatchSize   int           // defaults to 100
	ReplyPause  time.Duration // pause between items and after each cycle; 0 means 60s, negative means none
	ClaimPolicy ClaimPolicy   // defaults to MarkFirst

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// CycleReport summarizes one fetch-filter-process cycle.
type CycleReport struct {
	Fetched   int
	New       int
	Processed int
	Failed    int
	Empty     int
}

// Loop is the polling state machine. It is driven by a single goroutine;
// only Stats is safe to call concurrently.
type Loop struct {
	feed      Feed
	store     ProcessedStore
	publisher Publisher
	agg       *corpus.Aggregator
	opts      Options
	logger    *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a Loop.
func New(f Feed, store ProcessedStore, p Publisher, opts Options) *Loop {
	if opts.Scope == "" {
		opts.Scope = "all"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.ReplyPause < 0 {
		opts.ReplyPause = 0
	} else if opts.ReplyPause == 0 {
		opts.ReplyPause = 60 * time.Second
	}
	if opts.ClaimPolicy == "" {
		opts.ClaimPolicy = MarkFirst
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	return &Loop{
		feed:      f,
		store:     store,
		publisher: p,
		agg:       corpus.New(),
		opts:      opts,
		logger:    slog.Default(),
		stats:     Stats{State: Idle},
	}
}

// Run polls until ctx is cancelled. Transient failures are logged and never
// end the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("poll loop started",
		"scope", l.opts.Scope,
		"batch_size", l.opts.BatchSize,
		"reply_pause", l.opts.ReplyPause,
		"claim_policy", l.opts.ClaimPolicy,
	)
	defer l.setState(Idle)

	for {
		if ctx.Err() != nil {
			l.logger.Info("poll loop stopped")
			return nil
		}

		report, err := l.RunOnce(ctx)
		if err != nil {
			l.logger.Error("poll cycle failed", "error", err)
		} else {
			l.logger.Info("poll cycle finished",
				"fetched", report.Fetched,
				"new", report.New,
				"processed", report.Processed,
				"failed", report.Failed,
				"empty", report.Empty,
			)
		}

		l.setState(Sleeping)
		if err := l.opts.Sleep(ctx, l.opts.ReplyPause); err != nil {
			l.logger.Info("poll loop stopped")
			return nil
		}
	}
}

// RunOnce performs a single cycle. The returned error is non-nil only when the
// batch itself could not be fetched; per-item failures are counted in the report.
func (l *Loop) RunOnce(ctx context.Context) (report CycleReport, err error) {
	defer func() { l.finishCycle(report, err != nil) }()

	l.setState(Fetching)
	items, fetchErr := l.feed.ListHot(ctx, l.opts.Scope, l.opts.BatchSize)
	if fetchErr != nil {
		return report, fmt.Errorf("fetching batch: %w", fetchErr)
	}
	report.Fetched = len(items)

	l.setState(Filtering)
	fresh := Filter(items, l.store.Snapshot())
	report.New = len(fresh)
	l.addKnown(len(items) - len(fresh))

	l.setState(Processing)
	for i, item := range fresh {
		if i > 0 {
			l.setState(Sleeping)
			if err := l.opts.Sleep(ctx, l.opts.ReplyPause); err != nil {
				break
			}
			l.setState(Processing)
		}
		if ctx.Err() != nil {
			break
		}

		// Once started, an item runs to completion even if shutdown begins.
		itemErr := l.processItem(context.WithoutCancel(ctx), item)
		switch {
		case errors.Is(itemErr, errEmpty):
			report.Empty++
		case itemErr != nil:
			report.Failed++
			l.logger.Warn("item failed", "item_id", item.ID, "error", itemErr)
		default:
			report.Processed++
		}
	}
	return report, nil
}

var errEmpty = errors.New("no comments to publish")

func (l *Loop) processItem(ctx context.Context, item feed.Item) error {
	if l.opts.ClaimPolicy == MarkFirst {
		if err := l.store.MarkAndPersist(item.ID); err != nil {
			return fmt.Errorf("claiming item: %w", err)
		}
	}

	full, err := l.feed.GetItem(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("fetching comments: %w", err)
	}

	c := l.agg.FromTree(full.Comments)
	if c.Skipped > 0 {
		l.logger.Info("some comments could not be decoded", "item_id", item.ID, "skipped", c.Skipped)
	}
	if c.Empty() {
		l.logger.Info("nothing to publish", "item_id", item.ID)
		if l.opts.ClaimPolicy == PublishFirst {
			if err := l.store.MarkAndPersist(item.ID); err != nil {
				return fmt.Errorf("marking item: %w", err)
			}
		}
		return errEmpty
	}

	pub, err := l.publisher.PublishThread(ctx, full, c)
	if err != nil {
		return fmt.Errorf("publishing: %w", err)
	}

	if l.opts.ClaimPolicy == PublishFirst {
		if err := l.store.MarkAndPersist(item.ID); err != nil {
			// The reply is already out; the item may be posted to again after restart.
			return fmt.Errorf("marking published item: %w", err)
		}
	}

	l.logger.Info("published word cloud",
		"item_id", item.ID,
		"image_url", pub.ImageURL,
		"reply_id", pub.ReplyID,
		"comments", c.Processed,
	)
	return nil
}

// Filter returns the items whose ids are not in processed, in their original
// order. Repeated ids within items are kept once.
func Filter(items []feed.Item, processed state.Set) []feed.Item {
	out := make([]feed.Item, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if processed.Contains(it.ID) {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
