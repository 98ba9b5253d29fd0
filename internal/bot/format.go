package bot

import (
	"fmt"
	"strings"
	"time"

	"feedpush/internal/model"
)

// FormatPostList formats query results for display.
func FormatPostList(posts []model.Post) string {
	if len(posts) == 0 {
		return "No matching posts."
	}
	var b strings.Builder
	for i, p := range posts {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, p.Category.DisplayName(), p.Title)
		if p.Link != "" {
			fmt.Fprintf(&b, "   %s\n", p.Link)
		}
	}
	return b.String()
}

// FormatSubscription formats a subscription for display.
func FormatSubscription(sub *model.Subscription) string {
	var b strings.Builder
	b.WriteString("Your subscription:\n")
	fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(sub.Keywords, ", "))
	if len(sub.Categories) == 0 {
		b.WriteString("Categories: all\n")
	} else {
		var names []string
		for _, c := range sub.Categories {
			names = append(names, c.DisplayName())
		}
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(names, ", "))
	}
	return b.String()
}

// FormatStatus formats the /status report.
func FormatStatus(counts map[model.Category]int, total, subscribers, queued int, lastRun time.Time, lastNew int) string {
	var b strings.Builder
	b.WriteString("Cached posts:\n")
	for _, c := range model.Categories() {
		fmt.Fprintf(&b, "  %s: %d\n", c.DisplayName(), counts[c])
	}
	fmt.Fprintf(&b, "  Total: %d\n", total)
	fmt.Fprintf(&b, "Subscribers: %d\n", subscribers)
	fmt.Fprintf(&b, "Queued pushes: %d\n", queued)
	if lastRun.IsZero() {
		b.WriteString("Last update: never\n")
	} else {
		fmt.Fprintf(&b, "Last update: %s (%d new)\n", lastRun.Format("2006-01-02 15:04 UTC"), lastNew)
	}
	return b.String()
}
