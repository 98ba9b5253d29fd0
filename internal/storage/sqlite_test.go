package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"feedpush/internal/model"
)

var ignoreSubTS = cmpopts.IgnoreFields(model.Subscription{}, "CreatedAt", "UpdatedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testPost(id string, category model.Category, published time.Time) model.Post {
	return model.Post{
		PostID:      id,
		Title:       "post " + id,
		Description: "description of " + id,
		Link:        "https://example.com/post/" + id,
		Category:    category,
		Author:      "author",
		PublishedAt: published,
	}
}

func allCaps(n int) map[model.Category]int {
	caps := make(map[model.Category]int)
	for _, c := range model.Categories() {
		caps[c] = n
	}
	return caps
}

func TestUpsertPostsReportsNewIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	posts := []model.Post{
		testPost("p1", model.CategoryTrade, base),
		testPost("p2", model.CategoryDaily, base.Add(-time.Hour)),
	}

	newIDs, err := s.UpsertPosts(ctx, posts)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if diff := cmp.Diff([]string{"p1", "p2"}, newIDs); diff != "" {
		t.Errorf("new IDs mismatch (-want +got):\n%s", diff)
	}

	// Re-ingesting the same batch reports nothing new.
	newIDs, err = s.UpsertPosts(ctx, posts)
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if len(newIDs) != 0 {
		t.Errorf("expected no new IDs on re-ingest, got %v", newIDs)
	}

	// A refreshed post updates fields in place without duplication.
	posts[0].Title = "updated title"
	if _, err := s.UpsertPosts(ctx, posts[:1]); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got, err := s.QueryPosts(ctx, model.CategoryTrade, "", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 trade post, got %d", len(got))
	}
	if diff := cmp.Diff("updated title", got[0].Title); diff != "" {
		t.Errorf("title mismatch (-want +got):\n%s", diff)
	}

	count, err := s.CountPosts(ctx, model.CategoryAll)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 posts total, got %d", count)
	}
}

func TestQueryPosts(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	posts := []model.Post{
		testPost("p1", model.CategoryTrade, base.Add(-2*time.Hour)),
		testPost("p2", model.CategoryTrade, base),
		testPost("p3", model.CategoryTech, base.Add(-time.Hour)),
	}
	posts[1].Title = "VPS sale annual plan"
	posts[2].Description = "cheap vps tuning notes"

	if _, err := s.UpsertPosts(ctx, posts); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	tests := []struct {
		name     string
		category model.Category
		keyword  string
		limit    int
		wantIDs  []string
	}{
		{
			name:     "category filter, newest first",
			category: model.CategoryTrade,
			limit:    10,
			wantIDs:  []string{"p2", "p1"},
		},
		{
			name:     "all bypasses category filter",
			category: model.CategoryAll,
			limit:    10,
			wantIDs:  []string{"p2", "p3", "p1"},
		},
		{
			name:     "keyword matches title case-insensitively",
			category: model.CategoryAll,
			keyword:  "vPs",
			limit:    10,
			wantIDs:  []string{"p2", "p3"},
		},
		{
			name:     "keyword with category",
			category: model.CategoryTech,
			keyword:  "vps",
			limit:    10,
			wantIDs:  []string{"p3"},
		},
		{
			name:     "limit truncates after sort",
			category: model.CategoryAll,
			limit:    2,
			wantIDs:  []string{"p2", "p3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryPosts(ctx, tt.category, tt.keyword, tt.limit)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			var gotIDs []string
			for _, p := range got {
				gotIDs = append(gotIDs, p.PostID)
			}
			if diff := cmp.Diff(tt.wantIDs, gotIDs); diff != "" {
				t.Errorf("IDs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueryPostsHardCap(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	var posts []model.Post
	for i := 0; i < 25; i++ {
		posts = append(posts, testPost(fmt.Sprintf("p%02d", i), model.CategoryDaily, base.Add(time.Duration(i)*time.Minute)))
	}
	if _, err := s.UpsertPosts(ctx, posts); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.QueryPosts(ctx, model.CategoryDaily, "", 100)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 20 {
		t.Errorf("expected hard cap of 20 rows, got %d", len(got))
	}
}

func TestEvictPostsCategoryCap(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	var posts []model.Post
	for i := 0; i < 15; i++ {
		posts = append(posts, testPost(fmt.Sprintf("d%02d", i), model.CategoryDaily, base.Add(time.Duration(i)*time.Minute)))
	}
	if _, err := s.UpsertPosts(ctx, posts); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	caps := allCaps(50)
	caps[model.CategoryDaily] = 10

	deleted, err := s.EvictPosts(ctx, caps, 500)
	if err != nil {
		t.Fatalf("evict: %v", err)
	}
	if deleted != 5 {
		t.Errorf("expected 5 deletions, got %d", deleted)
	}

	got, err := s.QueryPosts(ctx, model.CategoryDaily, "", 20)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var gotIDs []string
	for _, p := range got {
		gotIDs = append(gotIDs, p.PostID)
	}
	// The 10 most recent by publish time survive.
	want := []string{"d14", "d13", "d12", "d11", "d10", "d09", "d08", "d07", "d06", "d05"}
	if diff := cmp.Diff(want, gotIDs); diff != "" {
		t.Errorf("surviving posts mismatch (-want +got):\n%s", diff)
	}

	// Eviction with no new ingest is a no-op.
	deleted, err = s.EvictPosts(ctx, caps, 500)
	if err != nil {
		t.Fatalf("second evict: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected idempotent evict, deleted %d", deleted)
	}
}

func TestEvictPostsGlobalCap(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	var posts []model.Post
	categories := []model.Category{model.CategoryDaily, model.CategoryTech, model.CategoryTrade}
	for i := 0; i < 30; i++ {
		posts = append(posts, testPost(fmt.Sprintf("g%02d", i), categories[i%3], base.Add(time.Duration(i)*time.Minute)))
	}
	if _, err := s.UpsertPosts(ctx, posts); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Per-category caps are generous; only the global cap bites.
	if _, err := s.EvictPosts(ctx, allCaps(50), 12); err != nil {
		t.Fatalf("evict: %v", err)
	}

	total, err := s.CountPosts(ctx, model.CategoryAll)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 12 {
		t.Errorf("expected 12 posts after global eviction, got %d", total)
	}

	// The newest post must have survived.
	got, err := s.QueryPosts(ctx, model.CategoryAll, "", 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].PostID != "g29" {
		t.Errorf("expected newest post g29 to survive, got %+v", got)
	}
}

func TestSubscriptionCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	sub := &model.Subscription{
		PlatformID: "telegram",
		UserID:     "42",
		Keywords:   []string{"vps", "storage"},
		Categories: []model.Category{model.CategoryTrade},
	}
	if err := s.PutSubscription(ctx, sub); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.GetSubscription(ctx, "telegram", "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(sub, got, ignoreSubTS); diff != "" {
		t.Errorf("subscription mismatch (-want +got):\n%s", diff)
	}

	// Absent records return nil without error.
	got, err = s.GetSubscription(ctx, "telegram", "999")
	if err != nil {
		t.Fatalf("get absent: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for absent subscription, got %+v", got)
	}

	// Replacing updates in place.
	sub.Keywords = []string{"vps"}
	if err := s.PutSubscription(ctx, sub); err != nil {
		t.Fatalf("put update: %v", err)
	}
	got, _ = s.GetSubscription(ctx, "telegram", "42")
	if diff := cmp.Diff([]string{"vps"}, got.Keywords); diff != "" {
		t.Errorf("keywords mismatch (-want +got):\n%s", diff)
	}

	other := &model.Subscription{PlatformID: "sandbox", UserID: "1", Keywords: []string{"*"}}
	if err := s.PutSubscription(ctx, other); err != nil {
		t.Fatalf("put other: %v", err)
	}

	subsList, err := s.ListSubscriptions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subsList) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(subsList))
	}

	count, err := s.CountSubscriptions(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 subscriptions, got %d", count)
	}

	if err := s.DeleteSubscription(ctx, "telegram", "42"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = s.GetSubscription(ctx, "telegram", "42")
	if got != nil {
		t.Error("expected subscription to be deleted")
	}
}

func TestPushRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	rec := model.PushRecord{PlatformID: "telegram", UserID: "42", PostID: "p1"}
	if err := s.RecordPush(ctx, rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	has, err := s.HasPushRecord(ctx, "telegram", "42", "p1")
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !has {
		t.Error("expected push record to exist")
	}

	has, err = s.HasPushRecord(ctx, "telegram", "42", "p2")
	if err != nil {
		t.Fatalf("has other: %v", err)
	}
	if has {
		t.Error("expected no push record for p2")
	}

	// Duplicate records are ignored, not errors.
	if err := s.RecordPush(ctx, rec); err != nil {
		t.Fatalf("duplicate record: %v", err)
	}
}

func TestPrunePushRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	now := time.Now().UTC()
	old := model.PushRecord{PlatformID: "telegram", UserID: "42", PostID: "old", PushedAt: now.Add(-31 * 24 * time.Hour)}
	fresh := model.PushRecord{PlatformID: "telegram", UserID: "42", PostID: "fresh", PushedAt: now.Add(-time.Hour)}
	for _, rec := range []model.PushRecord{old, fresh} {
		if err := s.RecordPush(ctx, rec); err != nil {
			t.Fatalf("record %s: %v", rec.PostID, err)
		}
	}

	pruned, err := s.PrunePushRecords(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Errorf("expected 1 pruned record, got %d", pruned)
	}

	has, _ := s.HasPushRecord(ctx, "telegram", "42", "old")
	if has {
		t.Error("expected old record to be pruned")
	}
	has, _ = s.HasPushRecord(ctx, "telegram", "42", "fresh")
	if !has {
		t.Error("expected fresh record to survive")
	}
}

// Ensure the Storage interface is satisfied.
var _ Storage = (*SQLite)(nil)
