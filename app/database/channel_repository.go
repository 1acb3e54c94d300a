package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ ChannelRepository = (*ChannelRepositoryImpl)(nil)

// ChannelRepositoryImpl handles database operations for channels
type ChannelRepositoryImpl struct {
	db *DB
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db *DB) *ChannelRepositoryImpl {
	return &ChannelRepositoryImpl{db: db}
}

const channelColumns = `id, name, username, url, category, language, is_active, last_scraped_at, created_at, updated_at`

func scanChannel(row interface{ Scan(...any) error }) (*Channel, error) {
	var channel Channel
	var lastScraped sql.NullTime

	err := row.Scan(
		&channel.ID, &channel.Name, &channel.Username, &channel.URL,
		&channel.Category, &channel.Language, &channel.IsActive,
		&lastScraped, &channel.CreatedAt, &channel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastScraped.Valid {
		channel.LastScrapedAt = &lastScraped.Time
	}

	return &channel, nil
}

func (r *ChannelRepositoryImpl) GetByID(id int64) (*Channel, error) {
	row := r.db.QueryRow(`SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)

	channel, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel by id: %w", err)
	}
	return channel, nil
}

func (r *ChannelRepositoryImpl) GetByName(name string) (*Channel, error) {
	row := r.db.QueryRow(`SELECT `+channelColumns+` FROM channels WHERE name = ?`, name)

	channel, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel by name: %w", err)
	}
	return channel, nil
}

func (r *ChannelRepositoryImpl) GetByUsername(username string) (*Channel, error) {
	row := r.db.QueryRow(`SELECT `+channelColumns+` FROM channels WHERE username = ?`, username)

	channel, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel by username: %w", err)
	}
	return channel, nil
}

func (r *ChannelRepositoryImpl) List() ([]Channel, error) {
	rows, err := r.db.Query(`SELECT ` + channelColumns + ` FROM channels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		channels = append(channels, *channel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel rows: %w", err)
	}

	return channels, nil
}

func (r *ChannelRepositoryImpl) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM channels`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count channels: %w", err)
	}
	return count, nil
}

// Create inserts a new channel and sets its assigned ID.
func (r *ChannelRepositoryImpl) Create(channel *Channel) error {
	now := time.Now().UTC()

	result, err := r.db.Exec(`
		INSERT INTO channels (name, username, url, category, language, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, channel.Name, channel.Username, channel.URL, channel.Category,
		channel.Language, channel.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to create channel: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get channel id: %w", err)
	}

	channel.ID = id
	channel.CreatedAt = now
	channel.UpdatedAt = now
	return nil
}

func (r *ChannelRepositoryImpl) UpdateLastScraped(id int64, scrapedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE channels
		SET last_scraped_at = ?, updated_at = ?
		WHERE id = ?
	`, scrapedAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update last scraped time: %w", err)
	}
	return nil
}
