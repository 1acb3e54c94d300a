package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Telegram API credentials
	TelegramAPIID   int    `long:"telegram-api-id" env:"TELEGRAM_API_ID" description:"Telegram API ID (required for scraping)"`
	TelegramAPIHash string `long:"telegram-api-hash" env:"TELEGRAM_API_HASH" description:"Telegram API hash (required for scraping)"`
	TelegramPhone   string `long:"telegram-phone" env:"TELEGRAM_PHONE" description:"Phone number of the scraping account"`
	TelegramSession string `long:"telegram-session" env:"TELEGRAM_SESSION_FILE" default:"./data/telegram.session" description:"Path to the MTProto session file"`

	// Storage configuration
	DBPath         string `long:"db-path" env:"DB_PATH" default:"./data/telegram_news.db" description:"Path to the sqlite database file"`
	GCSBucket      string `long:"gcs-bucket" env:"GCS_BUCKET_NAME" default:"telegram-news-images" description:"Cloud Storage bucket for downloaded media"`
	GCSCredentials string `long:"gcs-credentials" env:"GCS_CREDENTIALS_PATH" description:"Path to a service account JSON key (optional, default credentials otherwise)"`
	ImagesDir      string `long:"images-dir" env:"IMAGES_DIR" default:"./images" description:"Scratch directory for media downloads"`
	MaxImageSize   int64  `long:"max-image-size" env:"MAX_IMAGE_SIZE" default:"5242880" description:"Media size ceiling in bytes"`

	// Scraping configuration
	ChannelsDir    string `long:"channels-dir" env:"CHANNELS_DIR" default:"./channels" description:"Directory containing channel definition files"`
	MaxPosts       int    `long:"max-posts" env:"MAX_POSTS" default:"10" description:"Default number of posts to fetch per channel"`
	RateLimitDelay int    `long:"rate-limit-delay" env:"RATE_LIMIT_DELAY" default:"2" description:"Delay in seconds between channel runs within a batch"`
	ScrapeInterval int    `long:"scrape-interval" env:"SCRAPE_INTERVAL" default:"3600" description:"Interval in seconds between scheduled batch runs (0 disables the scheduler)"`

	// HTTP configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key protecting mutating endpoints (optional)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Africa/Addis_Ababa)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		TelegramAPIID:   raw.TelegramAPIID,
		TelegramAPIHash: raw.TelegramAPIHash,
		TelegramPhone:   raw.TelegramPhone,
		TelegramSession: raw.TelegramSession,
		DBPath:          raw.DBPath,
		GCSBucket:       raw.GCSBucket,
		GCSCredentials:  raw.GCSCredentials,
		ImagesDir:       raw.ImagesDir,
		MaxImageSize:    raw.MaxImageSize,
		ChannelsDir:     raw.ChannelsDir,
		MaxPosts:        raw.MaxPosts,
		RateLimitDelay:  raw.RateLimitDelay,
		ScrapeInterval:  raw.ScrapeInterval,
		Port:            raw.Port,
		APIAccessKey:    raw.APIAccessKey,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
