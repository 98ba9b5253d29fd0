package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"feedpush/internal/model"
	"feedpush/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Query results are truncated to this many rows regardless of the
// requested limit.
const maxQueryLimit = 20

const defaultQueryLimit = 10

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// UpsertPosts inserts new posts and refreshes existing ones, returning the
// IDs of posts that were not previously stored.
func (s *SQLite) UpsertPosts(ctx context.Context, posts []model.Post) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	var newIDs []string

	for _, p := range posts {
		var count int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM posts WHERE post_id = ?`, p.PostID,
		).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("check post %s: %w", p.PostID, err)
		}

		if count == 0 {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO posts (post_id, title, description, link, category, author, published_at, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.PostID, p.Title, p.Description, p.Link, string(p.Category), p.Author,
				p.PublishedAt.UTC().Format(timeLayout), now, now,
			)
			if err != nil {
				return nil, fmt.Errorf("insert post %s: %w", p.PostID, err)
			}
			newIDs = append(newIDs, p.PostID)
			continue
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET title = ?, description = ?, link = ?, category = ?, author = ?, published_at = ?, updated_at = ?
			 WHERE post_id = ?`,
			p.Title, p.Description, p.Link, string(p.Category), p.Author,
			p.PublishedAt.UTC().Format(timeLayout), now, p.PostID,
		)
		if err != nil {
			return nil, fmt.Errorf("update post %s: %w", p.PostID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return newIDs, nil
}

// QueryPosts returns posts ordered by publish time descending.
func (s *SQLite) QueryPosts(ctx context.Context, category model.Category, keyword string, limit int) ([]model.Post, error) {
	if limit < 1 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	query := `SELECT post_id, title, description, link, category, author, published_at, created_at, updated_at
	          FROM posts`
	var conds []string
	var args []any

	if category != model.CategoryAll {
		conds = append(conds, "category = ?")
		args = append(args, string(category))
	}
	if keyword != "" {
		kw := "%" + strings.ToLower(keyword) + "%"
		conds = append(conds, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, kw, kw)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY published_at DESC, post_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanPosts(rows)
}

// EvictPosts enforces the per-category caps, then the global cap, deleting
// the oldest rows by publish time.
func (s *SQLite) EvictPosts(ctx context.Context, caps map[model.Category]int, globalCap int) (int64, error) {
	var deleted int64

	for _, cat := range model.Categories() {
		keep, ok := caps[cat]
		if !ok {
			continue
		}
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM posts WHERE post_id IN (
			   SELECT post_id FROM posts WHERE category = ?
			   ORDER BY published_at DESC, post_id DESC LIMIT -1 OFFSET ?)`,
			string(cat), keep,
		)
		if err != nil {
			return deleted, fmt.Errorf("evict category %s: %w", cat, err)
		}
		n, _ := res.RowsAffected()
		deleted += n
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM posts WHERE post_id IN (
		   SELECT post_id FROM posts
		   ORDER BY published_at DESC, post_id DESC LIMIT -1 OFFSET ?)`,
		globalCap,
	)
	if err != nil {
		return deleted, fmt.Errorf("evict global: %w", err)
	}
	n, _ := res.RowsAffected()
	deleted += n

	return deleted, nil
}

// CountPosts returns the stored post count, optionally for one category.
func (s *SQLite) CountPosts(ctx context.Context, category model.Category) (int, error) {
	query := `SELECT COUNT(*) FROM posts`
	var args []any
	if category != model.CategoryAll {
		query += ` WHERE category = ?`
		args = append(args, string(category))
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

// GetSubscription returns the subscription for the given recipient, or nil
// when none exists.
func (s *SQLite) GetSubscription(ctx context.Context, platformID, userID string) (*model.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT platform_id, user_id, keywords, categories, created_at, updated_at
		 FROM subscriptions WHERE platform_id = ? AND user_id = ?`,
		platformID, userID,
	)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// PutSubscription inserts or replaces the subscription for its recipient,
// preserving the original creation time on update.
func (s *SQLite) PutSubscription(ctx context.Context, sub *model.Subscription) error {
	keywords, err := json.Marshal(sub.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	categories, err := json.Marshal(sub.Categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	now := time.Now().UTC().Format(timeLayout)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (platform_id, user_id, keywords, categories, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(platform_id, user_id) DO UPDATE SET
		   keywords = excluded.keywords,
		   categories = excluded.categories,
		   updated_at = excluded.updated_at`,
		sub.PlatformID, sub.UserID, string(keywords), string(categories), now, now,
	)
	if err != nil {
		return fmt.Errorf("put subscription: %w", err)
	}
	return nil
}

// DeleteSubscription removes the subscription for the given recipient.
func (s *SQLite) DeleteSubscription(ctx context.Context, platformID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE platform_id = ? AND user_id = ?`,
		platformID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// ListSubscriptions returns every subscription record.
func (s *SQLite) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT platform_id, user_id, keywords, categories, created_at, updated_at
		 FROM subscriptions ORDER BY platform_id, user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// CountSubscriptions returns the number of subscription records.
func (s *SQLite) CountSubscriptions(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return count, nil
}

// RecordPush marks a post as delivered to a recipient. Duplicate records
// are ignored.
func (s *SQLite) RecordPush(ctx context.Context, rec model.PushRecord) error {
	pushedAt := rec.PushedAt
	if pushedAt.IsZero() {
		pushedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO push_records (platform_id, user_id, post_id, pushed_at) VALUES (?, ?, ?, ?)`,
		rec.PlatformID, rec.UserID, rec.PostID, pushedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record push: %w", err)
	}
	return nil
}

// HasPushRecord checks whether a post was already delivered to a recipient.
func (s *SQLite) HasPushRecord(ctx context.Context, platformID, userID, postID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM push_records WHERE platform_id = ? AND user_id = ? AND post_id = ?`,
		platformID, userID, postID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check push record: %w", err)
	}
	return count > 0, nil
}

// PrunePushRecords deletes push records older than the given time.
func (s *SQLite) PrunePushRecords(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM push_records WHERE pushed_at < ?`,
		olderThan.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune push records: %w", err)
	}
	return res.RowsAffected()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPost(row scannable) (*model.Post, error) {
	var p model.Post
	var category, publishedStr, createdStr, updatedStr string
	err := row.Scan(&p.PostID, &p.Title, &p.Description, &p.Link, &category, &p.Author,
		&publishedStr, &createdStr, &updatedStr)
	if err != nil {
		return nil, fmt.Errorf("scan post: %w", err)
	}
	p.Category = model.Category(category)
	p.PublishedAt, _ = time.Parse(timeLayout, publishedStr)
	p.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	p.UpdatedAt, _ = time.Parse(timeLayout, updatedStr)
	return &p, nil
}

func scanPosts(rows *sql.Rows) ([]model.Post, error) {
	var posts []model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func scanSubscription(row scannable) (*model.Subscription, error) {
	var sub model.Subscription
	var keywords, categories, createdStr, updatedStr string
	err := row.Scan(&sub.PlatformID, &sub.UserID, &keywords, &categories, &createdStr, &updatedStr)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(keywords), &sub.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	if err := json.Unmarshal([]byte(categories), &sub.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	sub.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	sub.UpdatedAt, _ = time.Parse(timeLayout, updatedStr)
	return &sub, nil
}
