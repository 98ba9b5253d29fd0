// Package model defines the domain types used across the application.
package model

import "time"

// Category identifies one of the feed's fixed post sections.
type Category string

// Stored categories. CategoryAll is accepted in queries only and never
// written to the posts table.
const (
	CategoryDaily  Category = "daily"
	CategoryTech   Category = "tech"
	CategoryInfo   Category = "info"
	CategoryReview Category = "review"
	CategoryTrade  Category = "trade"
	CategoryExpose Category = "expose"

	CategoryAll Category = "all"
)

// Categories returns every stored category in display order.
func Categories() []Category {
	return []Category{
		CategoryDaily,
		CategoryTech,
		CategoryInfo,
		CategoryReview,
		CategoryTrade,
		CategoryExpose,
	}
}

var displayNames = map[Category]string{
	CategoryDaily:  "Daily",
	CategoryTech:   "Tech",
	CategoryInfo:   "Intel",
	CategoryReview: "Review",
	CategoryTrade:  "Trade",
	CategoryExpose: "Expose",
	CategoryAll:    "All",
}

// DisplayName returns a human-readable label for the category.
func (c Category) DisplayName() string {
	if name, ok := displayNames[c]; ok {
		return name
	}
	return string(c)
}

// ParseCategory maps a raw category string to a stored category.
// The second return value is false for unknown values and for "all".
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	for _, known := range Categories() {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Post is a canonical normalized feed item.
type Post struct {
	PostID      string
	Title       string
	Description string
	Link        string
	Category    Category
	Author      string
	PublishedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WildcardKeyword subscribes a user to every post regardless of content.
const WildcardKeyword = "*"

// Recipient identifies a push destination.
type Recipient struct {
	PlatformID string
	UserID     string
}

// Subscription is a recipient's keyword/category interest record.
// An empty Categories slice means "all categories".
type Subscription struct {
	PlatformID string
	UserID     string
	Keywords   []string
	Categories []Category
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Recipient returns the push destination for this subscription.
func (s *Subscription) Recipient() Recipient {
	return Recipient{PlatformID: s.PlatformID, UserID: s.UserID}
}

// PushRecord marks a post as delivered to a recipient, preventing
// re-delivery until the record is pruned.
type PushRecord struct {
	PlatformID string
	UserID     string
	PostID     string
	PushedAt   time.Time
}
