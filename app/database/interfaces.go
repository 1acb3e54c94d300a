package database

import (
	"time"
)

// PostFilter narrows List queries. Nil/empty fields are ignored.
type PostFilter struct {
	Page             int
	Size             int
	ChannelID        *int64
	Category         string
	Language         string
	ModerationStatus string
	HasMedia         *bool
	Search           string // matched against title, content and excerpt
	DateFrom         *time.Time
	DateTo           *time.Time
}

type ChannelRepository interface {
	GetByID(id int64) (*Channel, error)
	GetByName(name string) (*Channel, error)
	GetByUsername(username string) (*Channel, error)
	List() ([]Channel, error)
	Count() (int, error)

	Create(channel *Channel) error
	UpdateLastScraped(id int64, scrapedAt time.Time) error
}

type PostRepository interface {
	GetByID(id int64) (*Post, error)
	GetByTelegramID(telegramID int64) (*Post, error)
	List(filter PostFilter) ([]Post, int, error)
	ListWithMedia() ([]Post, error)
	Count() (int, error)
	CountByCategory() (map[string]int, error)
	CountByLanguage() (map[string]int, error)
	CountByModerationStatus() (map[string]int, error)

	Insert(post *Post) error
	Update(post *Post) error
	UpdateMediaURL(id int64, mediaURL string) error
	UpdateModeration(id int64, status, moderatedBy, notes string, moderatedAt time.Time) error
}

type RunLogRepository interface {
	Insert(log *RunLog) error
	Recent(limit int) ([]RunLog, error)
	Count() (int, error)
}
