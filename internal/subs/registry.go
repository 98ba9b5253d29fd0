// Package subs implements the per-recipient subscription registry.
package subs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"feedpush/internal/model"
	"feedpush/internal/storage"
)

// ErrLimitExceeded is returned when an add operation would grow a keyword
// set beyond the configured per-user maximum. The operation is rejected as
// a whole, never partially applied.
var ErrLimitExceeded = errors.New("keyword limit exceeded")

// ErrNotFound is returned when a remove operation matches no existing
// subscription or none of the given keywords.
var ErrNotFound = errors.New("subscription not found")

// Registry manages keyword/category subscriptions on top of the store.
type Registry struct {
	store       storage.Storage
	maxKeywords int
}

// NewRegistry creates a Registry enforcing the given keyword limit.
func NewRegistry(store storage.Storage, maxKeywords int) *Registry {
	return &Registry{store: store, maxKeywords: maxKeywords}
}

// AddKeywords creates a subscription for the recipient or unions the given
// keywords and categories into an existing one. Keywords are stored
// lower-cased; the wildcard token is kept as-is.
func (r *Registry) AddKeywords(ctx context.Context, platformID, userID string, keywords []string, categories []model.Category) (*model.Subscription, error) {
	sub, err := r.store.GetSubscription(ctx, platformID, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		sub = &model.Subscription{PlatformID: platformID, UserID: userID}
	}

	merged := unionKeywords(sub.Keywords, keywords)
	if len(merged) > r.maxKeywords {
		return nil, fmt.Errorf("%w: %d keywords, maximum is %d", ErrLimitExceeded, len(merged), r.maxKeywords)
	}
	if len(merged) == 0 {
		return nil, fmt.Errorf("no keywords given")
	}

	sub.Keywords = merged
	sub.Categories = unionCategories(sub.Categories, categories)

	if err := r.store.PutSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// RemoveKeywords removes the given keywords from the recipient's
// subscription. A nil or empty keyword list deletes the whole record, as
// does a removal that empties the keyword set. Returns the remaining
// subscription, or nil when the record was deleted.
func (r *Registry) RemoveKeywords(ctx context.Context, platformID, userID string, keywords []string) (*model.Subscription, error) {
	sub, err := r.store.GetSubscription(ctx, platformID, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNotFound
	}

	if len(keywords) == 0 {
		if err := r.store.DeleteSubscription(ctx, platformID, userID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	remaining, removed := differenceKeywords(sub.Keywords, keywords)
	if removed == 0 {
		return nil, fmt.Errorf("%w: none of the given keywords are subscribed", ErrNotFound)
	}

	if len(remaining) == 0 {
		if err := r.store.DeleteSubscription(ctx, platformID, userID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	sub.Keywords = remaining
	if err := r.store.PutSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Get returns the recipient's subscription, or nil when none exists.
func (r *Registry) Get(ctx context.Context, platformID, userID string) (*model.Subscription, error) {
	return r.store.GetSubscription(ctx, platformID, userID)
}

// ListAll returns every subscription record.
func (r *Registry) ListAll(ctx context.Context) ([]model.Subscription, error) {
	return r.store.ListSubscriptions(ctx)
}

func normalizeKeyword(kw string) string {
	kw = strings.TrimSpace(kw)
	if kw == model.WildcardKeyword {
		return kw
	}
	return strings.ToLower(kw)
}

func unionKeywords(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	var out []string
	for _, kw := range existing {
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	for _, kw := range added {
		kw = normalizeKeyword(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

func unionCategories(existing, added []model.Category) []model.Category {
	seen := make(map[model.Category]bool, len(existing)+len(added))
	var out []model.Category
	for _, c := range append(existing, added...) {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func differenceKeywords(existing, removed []string) (remaining []string, count int) {
	drop := make(map[string]bool, len(removed))
	for _, kw := range removed {
		drop[normalizeKeyword(kw)] = true
	}
	for _, kw := range existing {
		if drop[kw] {
			count++
			continue
		}
		remaining = append(remaining, kw)
	}
	return remaining, count
}
