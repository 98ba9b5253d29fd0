// Package match implements the subscription matching predicates.
package match

import (
	"strings"

	"feedpush/internal/model"
)

// Keywords reports whether any keyword matches the post. An empty keyword
// set matches nothing; the wildcard token matches everything; otherwise a
// keyword matches when it is a case-insensitive substring of the post's
// title or description.
func Keywords(post *model.Post, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	text := strings.ToLower(post.Title + " " + post.Description)
	for _, kw := range keywords {
		if kw == model.WildcardKeyword {
			return true
		}
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Categories reports whether the post's category passes the filter.
// An empty category set means "no filter".
func Categories(post *model.Post, categories []model.Category) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if post.Category == c {
			return true
		}
	}
	return false
}

// Matches reports whether the post satisfies the subscription's keyword
// and category filters. A wildcard keyword matches every post regardless
// of the category filter.
func Matches(post *model.Post, sub *model.Subscription) bool {
	for _, kw := range sub.Keywords {
		if kw == model.WildcardKeyword {
			return true
		}
	}
	return Keywords(post, sub.Keywords) && Categories(post, sub.Categories)
}
