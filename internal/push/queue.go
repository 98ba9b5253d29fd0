package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"feedpush/internal/model"
	"feedpush/internal/storage"
)

// Queue buffers matched posts per recipient and drains them through the
// notifier registry with rate limiting and batch capping. The buffer is
// in-memory only; posts queued but undelivered at shutdown are lost and
// stay eligible for a later pass since no push record exists for them.
type Queue struct {
	store     storage.Storage
	notifiers *Registry
	log       *slog.Logger
	batchSize int
	delay     time.Duration

	mu      sync.Mutex
	pending map[model.Recipient][]model.Post
	busy    bool
}

// NewQueue creates a Queue draining at most batchSize posts per recipient
// per pass, pausing delay between recipients.
func NewQueue(store storage.Storage, notifiers *Registry, batchSize int, delay time.Duration, log *slog.Logger) *Queue {
	return &Queue{
		store:     store,
		notifiers: notifiers,
		log:       log,
		batchSize: batchSize,
		delay:     delay,
		pending:   make(map[model.Recipient][]model.Post),
	}
}

// Enqueue appends posts to the recipient's buffer in arrival order.
func (q *Queue) Enqueue(rec model.Recipient, posts ...model.Post) {
	if len(posts) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[rec] = append(q.pending[rec], posts...)
}

// PendingCount returns the total number of queued posts.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int
	for _, posts := range q.pending {
		n += len(posts)
	}
	return n
}

// Drain runs one push pass. At most one pass runs at a time: a call while
// another pass is running is a no-op and the buffer keeps accumulating.
// The pass snapshots and clears the buffer atomically, so posts arriving
// mid-pass start a fresh accumulation for the next pass.
func (q *Queue) Drain(ctx context.Context) {
	q.mu.Lock()
	if q.busy {
		q.mu.Unlock()
		return
	}
	q.busy = true
	snapshot := q.pending
	q.pending = make(map[model.Recipient][]model.Post)
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.busy = false
		q.mu.Unlock()
	}()

	for i, rec := range sortedRecipients(snapshot) {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			q.pause(ctx)
		}
		q.deliver(ctx, rec, snapshot[rec])
	}
}

// deliver sends up to batchSize posts to one recipient. A delivery error
// abandons the recipient's remaining batch for this pass without writing a
// push record, leaving those posts eligible later; other recipients are
// unaffected.
func (q *Queue) deliver(ctx context.Context, rec model.Recipient, posts []model.Post) {
	batch := posts
	var remainder []model.Post
	if len(posts) > q.batchSize {
		batch, remainder = posts[:q.batchSize], posts[q.batchSize:]
	}

	if rec.PlatformID == SandboxPlatform {
		for _, p := range batch {
			q.record(ctx, rec, p.PostID)
		}
		q.requeue(rec, remainder)
		return
	}

	notifier, substituted := q.notifiers.Resolve(rec.PlatformID)
	if notifier == nil {
		q.log.Warn("no notifier for recipient", "platform", rec.PlatformID, "user", rec.UserID)
		return
	}
	if substituted && notifier.SelfID() == rec.UserID {
		q.log.Warn("refusing to deliver to the notifier's own identity",
			"platform", rec.PlatformID, "user", rec.UserID)
		return
	}

	for _, p := range batch {
		if err := notifier.SendPrivate(ctx, rec.UserID, FormatPushMessage(&p)); err != nil {
			if substituted && errors.Is(err, ErrRecipientUnreachable) {
				q.log.Debug("recipient unreachable via substitute session",
					"platform", rec.PlatformID, "user", rec.UserID)
				return
			}
			q.log.Error("push delivery failed",
				"platform", rec.PlatformID, "user", rec.UserID, "post_id", p.PostID, "error", err)
			return
		}
		q.record(ctx, rec, p.PostID)
	}

	if len(remainder) > 0 {
		notice := fmt.Sprintf("%d more matching posts are queued and will arrive with the next push.", len(remainder))
		if err := notifier.SendPrivate(ctx, rec.UserID, notice); err != nil {
			q.log.Error("send remainder notice",
				"platform", rec.PlatformID, "user", rec.UserID, "error", err)
		}
		q.requeue(rec, remainder)
	}
}

// record writes the proof-of-delivery marker. Recording happens right
// after a non-failing send; a record failure is logged but does not stop
// the batch.
func (q *Queue) record(ctx context.Context, rec model.Recipient, postID string) {
	err := q.store.RecordPush(ctx, model.PushRecord{
		PlatformID: rec.PlatformID,
		UserID:     rec.UserID,
		PostID:     postID,
		PushedAt:   time.Now().UTC(),
	})
	if err != nil {
		q.log.Error("record push",
			"platform", rec.PlatformID, "user", rec.UserID, "post_id", postID, "error", err)
	}
}

// requeue puts batch-cap leftovers back at the front of the recipient's
// buffer so they drain oldest-first on the next pass.
func (q *Queue) requeue(rec model.Recipient, posts []model.Post) {
	if len(posts) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[rec] = append(append([]model.Post{}, posts...), q.pending[rec]...)
}

func (q *Queue) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(q.delay):
	}
}

func sortedRecipients(m map[model.Recipient][]model.Post) []model.Recipient {
	recs := make([]model.Recipient, 0, len(m))
	for rec := range m {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].PlatformID != recs[j].PlatformID {
			return recs[i].PlatformID < recs[j].PlatformID
		}
		return recs[i].UserID < recs[j].UserID
	})
	return recs
}

// FormatPushMessage formats a post as a push notification message.
func FormatPushMessage(p *model.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", p.Category.DisplayName(), p.Title)
	if p.Description != "" {
		desc := p.Description
		if len(desc) > 300 {
			desc = desc[:300] + "..."
		}
		b.WriteString("\n\n")
		b.WriteString(desc)
	}
	if p.Link != "" {
		b.WriteString("\n\n")
		b.WriteString(p.Link)
	}
	return b.String()
}
