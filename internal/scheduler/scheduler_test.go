package scheduler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"feedpush/internal/fetcher"
	"feedpush/internal/model"
	"feedpush/internal/push"
	"feedpush/internal/storage"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error
}

func (m *mockTransport) Do(_ *http.Request) (*http.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

type fakeNotifier struct {
	platform string
	selfID   string
	sent     []string
}

func (f *fakeNotifier) PlatformID() string { return f.platform }
func (f *fakeNotifier) SelfID() string     { return f.selfID }

func (f *fakeNotifier) SendPrivate(_ context.Context, _, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	store    storage.Storage
	sched    *Scheduler
	notifier *fakeNotifier
}

func newTestEnv(t *testing.T, transport fetcher.HTTPClient) *testEnv {
	t.Helper()

	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	notifier := &fakeNotifier{platform: "telegram", selfID: "999"}
	notifiers := push.NewRegistry()
	notifiers.Register(notifier)

	queue := push.NewQueue(store, notifiers, 5, time.Millisecond, testLogger())
	f := fetcher.New(transport, "https://example.com/rss", testLogger())

	caps := make(map[model.Category]int)
	for _, c := range model.Categories() {
		caps[c] = 50
	}
	opts := Options{
		Interval:     time.Minute,
		CategoryCaps: caps,
		GlobalCap:    500,
		Retention:    30 * 24 * time.Hour,
		PushEnabled:  true,
	}

	return &testEnv{
		store:    store,
		sched:    New(store, f, queue, opts, testLogger()),
		notifier: notifier,
	}
}

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/sample.xml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(data)
}

func TestRunCycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &mockTransport{body: loadFixture(t), statusCode: 200})

	sub := &model.Subscription{PlatformID: "telegram", UserID: "42", Keywords: []string{"vps"}}
	if err := env.store.PutSubscription(ctx, sub); err != nil {
		t.Fatalf("put subscription: %v", err)
	}

	newCount, err := env.sched.RunCycle(ctx)
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if newCount != 6 {
		t.Errorf("expected 6 new posts, got %d", newCount)
	}

	// The fixture mentions vps in p1 and p5 only.
	if len(env.notifier.sent) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(env.notifier.sent))
	}
	for _, id := range []string{"p1", "p5"} {
		has, err := env.store.HasPushRecord(ctx, "telegram", "42", id)
		if err != nil {
			t.Fatalf("has record: %v", err)
		}
		if !has {
			t.Errorf("missing push record for %s", id)
		}
	}

	lastRun, lastNew, lastErr := env.sched.Stats()
	if lastRun.IsZero() || lastNew != 6 || lastErr != nil {
		t.Errorf("stats mismatch: run=%v new=%d err=%v", lastRun, lastNew, lastErr)
	}
}

func TestRunCycleIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &mockTransport{body: loadFixture(t), statusCode: 200})

	sub := &model.Subscription{PlatformID: "telegram", UserID: "42", Keywords: []string{"vps"}}
	if err := env.store.PutSubscription(ctx, sub); err != nil {
		t.Fatalf("put subscription: %v", err)
	}

	if _, err := env.sched.RunCycle(ctx); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	sent := len(env.notifier.sent)

	// The same feed content yields no new posts and no re-delivery.
	newCount, err := env.sched.RunCycle(ctx)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if newCount != 0 {
		t.Errorf("expected 0 new posts, got %d", newCount)
	}
	if len(env.notifier.sent) != sent {
		t.Errorf("expected no further deliveries, got %d", len(env.notifier.sent)-sent)
	}
}

func TestRunCycleFetchError(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &mockTransport{statusCode: 500, body: "boom"})

	if _, err := env.sched.RunCycle(ctx); err == nil {
		t.Fatal("expected fetch error")
	}
	if _, _, lastErr := env.sched.Stats(); lastErr == nil {
		t.Error("expected last error to be recorded")
	}
}

func TestRunCyclePushDisabled(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &mockTransport{body: loadFixture(t), statusCode: 200})
	env.sched.opts.PushEnabled = false

	sub := &model.Subscription{PlatformID: "telegram", UserID: "42", Keywords: []string{"vps"}}
	if err := env.store.PutSubscription(ctx, sub); err != nil {
		t.Fatalf("put subscription: %v", err)
	}

	newCount, err := env.sched.RunCycle(ctx)
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if newCount != 6 {
		t.Errorf("expected 6 new posts, got %d", newCount)
	}
	if len(env.notifier.sent) != 0 {
		t.Errorf("expected no deliveries with push disabled, got %d", len(env.notifier.sent))
	}
}
