package fetcher

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"feedpush/internal/model"
)

// unknownAuthor is the sentinel value for items without an author.
const unknownAuthor = "unknown"

// Normalize maps a raw feed item into a Post. The second return value is
// false for items lacking a GUID, title and link, which are skipped.
func Normalize(item *gofeed.Item) (*model.Post, bool) {
	if item.GUID == "" && item.Title == "" && item.Link == "" {
		return nil, false
	}

	id := item.GUID
	if id == "" {
		// Known gap: a random identifier can never be deduplicated on
		// re-ingest, so such an item reappears as new every cycle until
		// it is evicted.
		id = uuid.NewString()
	}

	category := model.CategoryDaily
	if len(item.Categories) > 0 {
		if c, ok := model.ParseCategory(item.Categories[0]); ok {
			category = c
		}
	}

	author := unknownAuthor
	if item.Author != nil && item.Author.Name != "" {
		author = item.Author.Name
	}

	published := time.Now().UTC()
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	}

	return &model.Post{
		PostID:      id,
		Title:       item.Title,
		Description: item.Description,
		Link:        item.Link,
		Category:    category,
		Author:      author,
		PublishedAt: published,
	}, true
}

// NormalizeAll maps raw items into Posts, logging and dropping malformed
// ones so the remaining items continue through the pipeline.
func NormalizeAll(items []*gofeed.Item, log *slog.Logger) []model.Post {
	posts := make([]model.Post, 0, len(items))
	for _, item := range items {
		post, ok := Normalize(item)
		if !ok {
			log.Warn("skipping malformed feed item", "title", item.Title, "link", item.Link)
			continue
		}
		posts = append(posts, *post)
	}
	return posts
}
