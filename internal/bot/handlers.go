package bot

import (
	"context"
	"errors"
	"fmt"

	"feedpush/internal/model"
	"feedpush/internal/subs"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to FeedPush!

Subscribe to keywords and get new posts from the feed as they appear.

Quick start:
1. /sub <keyword> — subscribe to a keyword
2. /latest — browse recent posts
3. /mysub — review your subscription

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Subscriptions:
/sub <kw[,kw...]> [-c cat[,cat...]] — subscribe to keywords, optionally limited to categories
/suball — subscribe to every post
/unsub [kw[,kw...]] — remove keywords, or clear the whole subscription
/mysub — show your subscription

Browsing:
/latest [category] [keyword] [count] — recent posts, newest first
/status — cache and push statistics
/update — fetch the feed now

Categories: `+categoryNames())
}

func (b *Bot) handleSub(ctx context.Context, chatID int64, args string) {
	keywords, categories, err := ParseSubArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	sub, err := b.registry.AddKeywords(ctx, platformTelegram, formatChatID(chatID), keywords, categories)
	if err != nil {
		if errors.Is(err, subs.ErrLimitExceeded) {
			b.reply(chatID, fmt.Sprintf("Too many keywords: %v", err))
			return
		}
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	b.reply(chatID, "Subscribed.\n\n"+FormatSubscription(sub))
}

func (b *Bot) handleSubAll(ctx context.Context, chatID int64) {
	sub, err := b.registry.AddKeywords(ctx, platformTelegram, formatChatID(chatID),
		[]string{model.WildcardKeyword}, nil)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "Subscribed to every post.\n\n"+FormatSubscription(sub))
}

func (b *Bot) handleUnsub(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.askClearConfirmation(ctx, chatID)
		return
	}

	keywords := splitList(args)
	sub, err := b.registry.RemoveKeywords(ctx, platformTelegram, formatChatID(chatID), keywords)
	if err != nil {
		if errors.Is(err, subs.ErrNotFound) {
			b.reply(chatID, fmt.Sprintf("Nothing to remove: %v", err))
			return
		}
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	if sub == nil {
		b.reply(chatID, "Subscription cleared.")
		return
	}
	b.reply(chatID, "Keywords removed.\n\n"+FormatSubscription(sub))
}

func (b *Bot) handleMySub(ctx context.Context, chatID int64) {
	sub, err := b.registry.Get(ctx, platformTelegram, formatChatID(chatID))
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if sub == nil {
		b.reply(chatID, "You have no subscription yet. Use /sub <keyword> to create one.")
		return
	}
	b.reply(chatID, FormatSubscription(sub))
}

func (b *Bot) handleLatest(ctx context.Context, chatID int64, args string) {
	category, keyword, count, err := ParseLatestArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	posts, err := b.store.QueryPosts(ctx, category, keyword, count)
	if err != nil {
		b.log.Error("query posts", "error", err)
		b.reply(chatID, "Error querying posts.")
		return
	}
	b.reply(chatID, FormatPostList(posts))
}

func (b *Bot) handleUpdate(ctx context.Context, chatID int64) {
	newCount, err := b.sched.RunCycle(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Update failed: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Update complete: %d new post(s).", newCount))
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	counts := make(map[model.Category]int, len(model.Categories()))
	for _, c := range model.Categories() {
		n, err := b.store.CountPosts(ctx, c)
		if err != nil {
			b.log.Error("count posts", "category", c, "error", err)
			continue
		}
		counts[c] = n
	}
	total, err := b.store.CountPosts(ctx, model.CategoryAll)
	if err != nil {
		b.log.Error("count posts", "error", err)
	}
	subscribers, err := b.store.CountSubscriptions(ctx)
	if err != nil {
		b.log.Error("count subscriptions", "error", err)
	}

	lastRun, lastNew, _ := b.sched.Stats()
	b.reply(chatID, FormatStatus(counts, total, subscribers, b.queue.PendingCount(), lastRun, lastNew))
}
