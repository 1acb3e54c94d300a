package database

import (
	"time"
)

// Moderation states a post can be in. The pipeline always writes
// ModerationPending; transitions happen only through the moderation API.
const (
	ModerationPending = "pending"
	ModerationReady   = "ready"
	ModerationWrong   = "wrong"
)

// Run log outcome states
const (
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

type Channel struct {
	ID            int64
	Name          string
	Username      string // unique external handle
	URL           string
	Category      string
	Language      string
	IsActive      bool
	LastScrapedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Post struct {
	ID          int64
	TelegramID  int64 // unique, immutable natural key for dedup
	Title       string
	Content     string
	Excerpt     string
	MediaURL    string
	PublishedAt *time.Time
	ScrapedAt   time.Time
	ChannelID   int64
	Category    string // inherited from channel at ingestion time
	Language    string

	// Dedup bookkeeping. duplicate_of and similarity_score are kept for
	// forward compatibility; no code path populates them.
	IsDuplicate     bool
	DuplicateOf     *int64
	SimilarityScore *float64
	ContentHash     string
	TitleHash       string

	// Source-provided engagement counters, absent when the source omits them
	Views    *int
	Forwards *int
	Replies  *int

	HasMedia  bool
	MediaType string

	// Moderation fields, mutated only by the moderation API
	ModerationStatus string
	ModeratedBy      string
	ModeratedAt      *time.Time
	ModerationNotes  string
}

// RunLog is one immutable record per channel ingestion attempt.
type RunLog struct {
	ID               int64
	ChannelID        int64
	Status           string
	PostsFound       int
	PostsNew         int
	PostsDuplicate   int
	ImagesDownloaded int
	ErrorMessage     string
	Duration         float64 // seconds
	CreatedAt        time.Time
}
