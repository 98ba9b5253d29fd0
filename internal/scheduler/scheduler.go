// Package scheduler drives the periodic ingest cycle: fetch, normalize,
// store, match, enqueue, then cache eviction and record pruning.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"feedpush/internal/fetcher"
	"feedpush/internal/match"
	"feedpush/internal/model"
	"feedpush/internal/push"
	"feedpush/internal/storage"
)

// Options holds the cycle parameters derived from configuration.
type Options struct {
	Interval     time.Duration
	CategoryCaps map[model.Category]int
	GlobalCap    int
	Retention    time.Duration
	PushEnabled  bool
}

// Scheduler periodically ingests the feed and feeds the push queue.
type Scheduler struct {
	store   storage.Storage
	fetcher *fetcher.Fetcher
	queue   *push.Queue
	opts    Options
	log     *slog.Logger

	mu      sync.Mutex
	lastRun time.Time
	lastNew int
	lastErr error
}

// New creates a Scheduler with the given collaborators.
func New(store storage.Storage, f *fetcher.Fetcher, queue *push.Queue, opts Options, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		fetcher: f,
		queue:   queue,
		opts:    opts,
		log:     log,
	}
}

// Run starts the fixed-period ingest loop, blocking until ctx is
// cancelled. The first cycle runs immediately. A cycle that outlives the
// period delays the next tick rather than overlapping it.
func (s *Scheduler) Run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	newCount, err := s.RunCycle(ctx)
	if err != nil {
		s.log.Error("ingest cycle failed", "error", err)
		return
	}
	if newCount > 0 {
		s.log.Info("ingest cycle complete", "new_posts", newCount)
	}
}

// RunCycle executes one ingest cycle. A fetch or store-write failure
// aborts this cycle only; eviction and pruning errors are logged and do
// not fail the cycle.
func (s *Scheduler) RunCycle(ctx context.Context) (int, error) {
	items, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.noteRun(0, err)
		return 0, fmt.Errorf("fetch feed: %w", err)
	}

	posts := fetcher.NormalizeAll(items, s.log)

	newIDs, err := s.store.UpsertPosts(ctx, posts)
	if err != nil {
		s.noteRun(0, err)
		return 0, fmt.Errorf("store posts: %w", err)
	}

	if s.opts.PushEnabled && len(newIDs) > 0 {
		s.enqueueMatches(ctx, posts, newIDs)
		s.queue.Drain(ctx)
	}

	if _, err := s.store.EvictPosts(ctx, s.opts.CategoryCaps, s.opts.GlobalCap); err != nil {
		s.log.Error("evict posts", "error", err)
	}
	horizon := time.Now().UTC().Add(-s.opts.Retention)
	if _, err := s.store.PrunePushRecords(ctx, horizon); err != nil {
		s.log.Error("prune push records", "error", err)
	}

	s.noteRun(len(newIDs), nil)
	return len(newIDs), nil
}

// enqueueMatches matches the newly inserted posts against every
// subscription and buffers the eligible ones. Only new posts are
// considered: a refreshed post never triggers re-delivery.
func (s *Scheduler) enqueueMatches(ctx context.Context, posts []model.Post, newIDs []string) {
	isNew := make(map[string]bool, len(newIDs))
	for _, id := range newIDs {
		isNew[id] = true
	}

	subs, err := s.store.ListSubscriptions(ctx)
	if err != nil {
		s.log.Error("list subscriptions", "error", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		var matched []model.Post
		for _, p := range posts {
			if !isNew[p.PostID] || !match.Matches(&p, sub) {
				continue
			}
			pushed, err := s.store.HasPushRecord(ctx, sub.PlatformID, sub.UserID, p.PostID)
			if err != nil {
				s.log.Error("check push record", "post_id", p.PostID, "error", err)
				continue
			}
			if pushed {
				continue
			}
			matched = append(matched, p)
		}
		if len(matched) > 0 {
			s.queue.Enqueue(sub.Recipient(), matched...)
		}
	}
}

func (s *Scheduler) noteRun(newCount int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = time.Now().UTC()
	s.lastNew = newCount
	s.lastErr = err
}

// Stats returns the time, new-post count and error of the last cycle.
func (s *Scheduler) Stats() (lastRun time.Time, lastNew int, lastErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastNew, s.lastErr
}
