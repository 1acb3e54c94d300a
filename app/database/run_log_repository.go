package database

import (
	"fmt"
	"time"
)

var _ RunLogRepository = (*RunLogRepositoryImpl)(nil)

// RunLogRepositoryImpl handles database operations for scrape run logs
type RunLogRepositoryImpl struct {
	db *DB
}

// NewRunLogRepository creates a new run log repository
func NewRunLogRepository(db *DB) *RunLogRepositoryImpl {
	return &RunLogRepositoryImpl{db: db}
}

// Insert records the outcome of one channel run and sets the assigned ID.
func (r *RunLogRepositoryImpl) Insert(log *RunLog) error {
	now := time.Now().UTC()

	result, err := r.db.Exec(`
		INSERT INTO scrape_logs (channel_id, status, posts_found, posts_new, posts_duplicate,
			images_downloaded, error_message, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, log.ChannelID, log.Status, log.PostsFound, log.PostsNew, log.PostsDuplicate,
		log.ImagesDownloaded, nullableString(log.ErrorMessage), log.Duration, now)
	if err != nil {
		return fmt.Errorf("failed to insert run log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get run log id: %w", err)
	}

	log.ID = id
	log.CreatedAt = now
	return nil
}

// Recent returns the most recent run logs, newest first.
func (r *RunLogRepositoryImpl) Recent(limit int) ([]RunLog, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, channel_id, status, posts_found, posts_new, posts_duplicate,
			images_downloaded, COALESCE(error_message, ''), COALESCE(duration, 0), created_at
		FROM scrape_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	defer rows.Close()

	var logs []RunLog
	for rows.Next() {
		var log RunLog
		err := rows.Scan(
			&log.ID, &log.ChannelID, &log.Status, &log.PostsFound, &log.PostsNew,
			&log.PostsDuplicate, &log.ImagesDownloaded, &log.ErrorMessage,
			&log.Duration, &log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run log row: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run log rows: %w", err)
	}

	return logs, nil
}

func (r *RunLogRepositoryImpl) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM scrape_logs`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count run logs: %w", err)
	}
	return count, nil
}
