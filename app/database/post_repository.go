package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

var _ PostRepository = (*PostRepositoryImpl)(nil)

// PostRepositoryImpl handles database operations for posts
type PostRepositoryImpl struct {
	db *DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *DB) *PostRepositoryImpl {
	return &PostRepositoryImpl{db: db}
}

const postColumns = `id, telegram_id, COALESCE(title, ''), COALESCE(content, ''), COALESCE(excerpt, ''),
	COALESCE(media_url, ''), published_at, scraped_at, channel_id, category, language,
	is_duplicate, duplicate_of, similarity_score, content_hash, COALESCE(title_hash, ''),
	views, forwards, replies, has_media, COALESCE(media_type, ''),
	moderation_status, COALESCE(moderated_by, ''), moderated_at, COALESCE(moderation_notes, '')`

func scanPost(row interface{ Scan(...any) error }) (*Post, error) {
	var post Post
	var publishedAt, moderatedAt sql.NullTime
	var duplicateOf sql.NullInt64
	var similarity sql.NullFloat64
	var views, forwards, replies sql.NullInt64

	err := row.Scan(
		&post.ID, &post.TelegramID, &post.Title, &post.Content, &post.Excerpt,
		&post.MediaURL, &publishedAt, &post.ScrapedAt, &post.ChannelID,
		&post.Category, &post.Language,
		&post.IsDuplicate, &duplicateOf, &similarity, &post.ContentHash, &post.TitleHash,
		&views, &forwards, &replies, &post.HasMedia, &post.MediaType,
		&post.ModerationStatus, &post.ModeratedBy, &moderatedAt, &post.ModerationNotes,
	)
	if err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		post.PublishedAt = &publishedAt.Time
	}
	if moderatedAt.Valid {
		post.ModeratedAt = &moderatedAt.Time
	}
	if duplicateOf.Valid {
		post.DuplicateOf = &duplicateOf.Int64
	}
	if similarity.Valid {
		post.SimilarityScore = &similarity.Float64
	}
	if views.Valid {
		v := int(views.Int64)
		post.Views = &v
	}
	if forwards.Valid {
		v := int(forwards.Int64)
		post.Forwards = &v
	}
	if replies.Valid {
		v := int(replies.Int64)
		post.Replies = &v
	}

	return &post, nil
}

func (r *PostRepositoryImpl) GetByID(id int64) (*Post, error) {
	row := r.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE id = ?`, id)

	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post by id: %w", err)
	}
	return post, nil
}

func (r *PostRepositoryImpl) GetByTelegramID(telegramID int64) (*Post, error) {
	row := r.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE telegram_id = ?`, telegramID)

	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post by telegram id: %w", err)
	}
	return post, nil
}

// List returns one page of posts matching the filter along with the total
// match count.
func (r *PostRepositoryImpl) List(filter PostFilter) ([]Post, int, error) {
	where, args := buildPostFilter(filter)

	var total int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM posts WHERE `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count filtered posts: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.Size
	if size < 1 {
		size = 20
	}

	query := `SELECT ` + postColumns + ` FROM posts WHERE ` + where +
		` ORDER BY COALESCE(published_at, scraped_at) DESC LIMIT ? OFFSET ?`
	rows, err := r.db.Query(query, append(args, size, (page-1)*size)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, *post)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, total, nil
}

func buildPostFilter(filter PostFilter) (string, []any) {
	conditions := []string{"1 = 1"}
	var args []any

	if filter.ChannelID != nil {
		conditions = append(conditions, "channel_id = ?")
		args = append(args, *filter.ChannelID)
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Language != "" {
		conditions = append(conditions, "language = ?")
		args = append(args, filter.Language)
	}
	if filter.ModerationStatus != "" {
		conditions = append(conditions, "moderation_status = ?")
		args = append(args, filter.ModerationStatus)
	}
	if filter.HasMedia != nil {
		conditions = append(conditions, "has_media = ?")
		args = append(args, *filter.HasMedia)
	}
	if filter.Search != "" {
		conditions = append(conditions, "(title LIKE ? OR content LIKE ? OR excerpt LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, "published_at >= ?")
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, "published_at <= ?")
		args = append(args, *filter.DateTo)
	}

	return strings.Join(conditions, " AND "), args
}

// ListWithMedia returns all posts carrying a stored media reference.
func (r *PostRepositoryImpl) ListWithMedia() ([]Post, error) {
	rows, err := r.db.Query(`SELECT ` + postColumns + ` FROM posts WHERE media_url IS NOT NULL AND media_url != ''`)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts with media: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, *post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}

func (r *PostRepositoryImpl) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

func (r *PostRepositoryImpl) CountByCategory() (map[string]int, error) {
	return r.countGrouped("category")
}

func (r *PostRepositoryImpl) CountByLanguage() (map[string]int, error) {
	return r.countGrouped("language")
}

func (r *PostRepositoryImpl) CountByModerationStatus() (map[string]int, error) {
	return r.countGrouped("moderation_status")
}

// countGrouped groups post counts by one of the fixed enumerable columns.
// column is never user input.
func (r *PostRepositoryImpl) countGrouped(column string) (map[string]int, error) {
	rows, err := r.db.Query(`SELECT ` + column + `, COUNT(*) FROM posts GROUP BY ` + column)
	if err != nil {
		return nil, fmt.Errorf("failed to count posts by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[key] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating count rows: %w", err)
	}

	return counts, nil
}

// Insert creates a new post and sets its assigned ID. The unique constraint
// on telegram_id guarantees at most one row per external message.
func (r *PostRepositoryImpl) Insert(post *Post) error {
	result, err := r.db.Exec(`
		INSERT INTO posts (
			telegram_id, title, content, excerpt, media_url, published_at, scraped_at,
			channel_id, category, language, content_hash, title_hash,
			views, forwards, replies, has_media, media_type, moderation_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, post.TelegramID, post.Title, post.Content, post.Excerpt, nullableString(post.MediaURL),
		nullableTime(post.PublishedAt), post.ScrapedAt,
		post.ChannelID, post.Category, post.Language, post.ContentHash, post.TitleHash,
		nullableInt(post.Views), nullableInt(post.Forwards), nullableInt(post.Replies),
		post.HasMedia, nullableString(post.MediaType), post.ModerationStatus)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get post id: %w", err)
	}

	post.ID = id
	return nil
}

// Update overwrites the content fields of an existing post, as done by a
// forced re-ingestion. Moderation fields and the media reference are left
// untouched.
func (r *PostRepositoryImpl) Update(post *Post) error {
	_, err := r.db.Exec(`
		UPDATE posts
		SET title = ?, content = ?, excerpt = ?, published_at = ?, scraped_at = ?,
		    content_hash = ?, title_hash = ?, views = ?, forwards = ?, replies = ?,
		    has_media = ?, media_type = ?
		WHERE telegram_id = ?
	`, post.Title, post.Content, post.Excerpt, nullableTime(post.PublishedAt), post.ScrapedAt,
		post.ContentHash, post.TitleHash,
		nullableInt(post.Views), nullableInt(post.Forwards), nullableInt(post.Replies),
		post.HasMedia, nullableString(post.MediaType), post.TelegramID)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

func (r *PostRepositoryImpl) UpdateMediaURL(id int64, mediaURL string) error {
	_, err := r.db.Exec(`UPDATE posts SET media_url = ? WHERE id = ?`, mediaURL, id)
	if err != nil {
		return fmt.Errorf("failed to update media url: %w", err)
	}
	return nil
}

func (r *PostRepositoryImpl) UpdateModeration(id int64, status, moderatedBy, notes string, moderatedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE posts
		SET moderation_status = ?, moderated_by = ?, moderation_notes = ?, moderated_at = ?
		WHERE id = ?
	`, status, moderatedBy, notes, moderatedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update moderation: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
