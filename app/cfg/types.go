package cfg

type Cfg struct {
	// Telegram API credentials
	TelegramAPIID   int
	TelegramAPIHash string
	TelegramPhone   string
	TelegramSession string

	// Storage configuration
	DBPath         string
	GCSBucket      string
	GCSCredentials string
	ImagesDir      string
	MaxImageSize   int64

	// Scraping configuration
	ChannelsDir    string
	MaxPosts       int
	RateLimitDelay int
	ScrapeInterval int

	// HTTP configuration
	Port         string
	APIAccessKey string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

// TelegramConfigured reports whether the MTProto credentials needed for
// scraping are all present.
func (c *Cfg) TelegramConfigured() bool {
	return c.TelegramAPIID != 0 && c.TelegramAPIHash != "" && c.TelegramPhone != ""
}
