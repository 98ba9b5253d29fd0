// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"feedpush/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	// UpsertPosts inserts or refreshes posts by PostID and returns the IDs
	// that were newly inserted, not merely refreshed.
	UpsertPosts(ctx context.Context, posts []model.Post) ([]string, error)
	// QueryPosts returns posts ordered by publish time descending.
	// CategoryAll bypasses the category filter; a non-empty keyword filters
	// by case-insensitive substring match on title or description.
	QueryPosts(ctx context.Context, category model.Category, keyword string, limit int) ([]model.Post, error)
	// EvictPosts deletes the oldest posts beyond each category cap, then
	// beyond the global cap, and returns the number of rows deleted.
	EvictPosts(ctx context.Context, caps map[model.Category]int, globalCap int) (int64, error)
	CountPosts(ctx context.Context, category model.Category) (int, error)

	// GetSubscription returns nil without error when no record exists.
	GetSubscription(ctx context.Context, platformID, userID string) (*model.Subscription, error)
	PutSubscription(ctx context.Context, sub *model.Subscription) error
	DeleteSubscription(ctx context.Context, platformID, userID string) error
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	CountSubscriptions(ctx context.Context) (int, error)

	RecordPush(ctx context.Context, rec model.PushRecord) error
	HasPushRecord(ctx context.Context, platformID, userID, postID string) (bool, error)
	PrunePushRecords(ctx context.Context, olderThan time.Time) (int64, error)

	Close() error
}
