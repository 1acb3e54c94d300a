package api

import (
	"context"
	"time"

	"github.com/addisnews/tg-scraper/app/config"
	"github.com/addisnews/tg-scraper/app/database"
	"github.com/addisnews/tg-scraper/app/media"
	"github.com/addisnews/tg-scraper/app/scraper"
)

type ScraperInterface interface {
	RunAll(ctx context.Context, channels []config.Channel, force bool) []scraper.RunResult
	RunChannel(ctx context.Context, channel config.Channel, force bool) scraper.RunResult
}

var _ ScraperInterface = (*scraper.Scraper)(nil)

type PublicizerInterface interface {
	Publicize(ctx context.Context, objectPath string) (string, error)
}

var _ PublicizerInterface = (*media.Handler)(nil)

type ChannelLoaderInterface interface {
	LoadAll() ([]config.Channel, error)
}

var _ ChannelLoaderInterface = (*config.Loader)(nil)

type Handler struct {
	channelRepo database.ChannelRepository
	postRepo    database.PostRepository
	logRepo     database.RunLogRepository
	scraper     ScraperInterface
	publicizer  PublicizerInterface
	channels    ChannelLoaderInterface
}

type PostResponse struct {
	ID               int64      `json:"id"`
	TelegramID       int64      `json:"telegram_id"`
	Title            string     `json:"title"`
	Content          string     `json:"content"`
	Excerpt          string     `json:"excerpt"`
	MediaURL         string     `json:"media_url,omitempty"`
	PublishedAt      *time.Time `json:"published_at"`
	ScrapedAt        time.Time  `json:"scraped_at"`
	ChannelID        int64      `json:"channel_id"`
	Category         string     `json:"category"`
	Language         string     `json:"language"`
	Views            *int       `json:"views,omitempty"`
	Forwards         *int       `json:"forwards,omitempty"`
	Replies          *int       `json:"replies,omitempty"`
	HasMedia         bool       `json:"has_media"`
	MediaType        string     `json:"media_type,omitempty"`
	ModerationStatus string     `json:"moderation_status"`
	ModeratedBy      string     `json:"moderated_by,omitempty"`
	ModeratedAt      *time.Time `json:"moderated_at,omitempty"`
	ModerationNotes  string     `json:"moderation_notes,omitempty"`
}

type PostListResponse struct {
	Posts []PostResponse `json:"posts"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

type ChannelResponse struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Username      string     `json:"username"`
	URL           string     `json:"url"`
	Category      string     `json:"category"`
	Language      string     `json:"language"`
	IsActive      bool       `json:"is_active"`
	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type RunLogResponse struct {
	ID               int64     `json:"id"`
	ChannelID        int64     `json:"channel_id"`
	Status           string    `json:"status"`
	PostsFound       int       `json:"posts_found"`
	PostsNew         int       `json:"posts_new"`
	PostsDuplicate   int       `json:"posts_duplicate"`
	ImagesDownloaded int       `json:"images_downloaded"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	Duration         float64   `json:"duration"`
	CreatedAt        time.Time `json:"created_at"`
}

type ScrapeRequest struct {
	Channel  string `json:"channel"`
	MaxPosts int    `json:"max_posts"`
	Force    bool   `json:"force"`
}

type PublicizeRequest struct {
	PostID int64 `json:"post_id"`
}

type ScrapeResultResponse struct {
	Channel          string `json:"channel"`
	PostsFound       int    `json:"posts_found"`
	PostsNew         int    `json:"posts_new"`
	PostsDuplicate   int    `json:"posts_duplicate"`
	ImagesDownloaded int    `json:"images_downloaded"`
	Error            string `json:"error,omitempty"`
}

type ModerationRequest struct {
	Status      string `json:"status" binding:"required"`
	ModeratedBy string `json:"moderated_by"`
	Notes       string `json:"notes"`
}
