package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/addisnews/tg-scraper/app/config"
	"github.com/addisnews/tg-scraper/app/database"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func NewHandler(channelRepo database.ChannelRepository, postRepo database.PostRepository,
	logRepo database.RunLogRepository, scraperSvc ScraperInterface,
	publicizer PublicizerInterface, channels ChannelLoaderInterface) *Handler {
	return &Handler{
		channelRepo: channelRepo,
		postRepo:    postRepo,
		logRepo:     logRepo,
		scraper:     scraperSvc,
		publicizer:  publicizer,
		channels:    channels,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if channelCount, err := h.channelRepo.Count(); err == nil {
		health["channels"] = channelCount
	}
	if postCount, err := h.postRepo.Count(); err == nil {
		health["posts"] = postCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{}

	if channelCount, err := h.channelRepo.Count(); err == nil {
		stats["channels"] = channelCount
	}
	if postCount, err := h.postRepo.Count(); err == nil {
		stats["posts"] = postCount
	}
	if runCount, err := h.logRepo.Count(); err == nil {
		stats["scrape_runs"] = runCount
	}
	if byCategory, err := h.postRepo.CountByCategory(); err == nil {
		stats["posts_by_category"] = byCategory
	}
	if byLanguage, err := h.postRepo.CountByLanguage(); err == nil {
		stats["posts_by_language"] = byLanguage
	}
	if byModeration, err := h.postRepo.CountByModerationStatus(); err == nil {
		stats["posts_by_moderation_status"] = byModeration
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListPosts(c *gin.Context) {
	filter, err := parsePostFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	posts, total, err := h.postRepo.List(filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_posts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := PostListResponse{
		Posts: make([]PostResponse, 0, len(posts)),
		Total: total,
		Page:  filter.Page,
		Size:  filter.Size,
	}
	for _, post := range posts {
		response.Posts = append(response.Posts, toPostResponse(post))
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetPost(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	post, err := h.postRepo.GetByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_post", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	c.JSON(http.StatusOK, toPostResponse(*post))
}

func (h *Handler) ListChannels(c *gin.Context) {
	channels, err := h.channelRepo.List()
	if err != nil {
		slog.Error("Database error", "operation", "list_channels", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]ChannelResponse, 0, len(channels))
	for _, channel := range channels {
		response = append(response, toChannelResponse(channel))
	}

	c.JSON(http.StatusOK, gin.H{"channels": response, "total": len(response)})
}

func (h *Handler) GetChannel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel id"})
		return
	}

	channel, err := h.channelRepo.GetByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_channel", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if channel == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}

	c.JSON(http.StatusOK, toChannelResponse(*channel))
}

func (h *Handler) ListLogs(c *gin.Context) {
	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		limit = parsed
	}

	logs, err := h.logRepo.Recent(limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]RunLogResponse, 0, len(logs))
	for _, log := range logs {
		response = append(response, RunLogResponse{
			ID:               log.ID,
			ChannelID:        log.ChannelID,
			Status:           log.Status,
			PostsFound:       log.PostsFound,
			PostsNew:         log.PostsNew,
			PostsDuplicate:   log.PostsDuplicate,
			ImagesDownloaded: log.ImagesDownloaded,
			ErrorMessage:     log.ErrorMessage,
			Duration:         log.Duration,
			CreatedAt:        log.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"logs": response, "total": len(response)})
}

// APIScrape triggers an ingestion run, for all configured channels or one
// named channel.
func (h *Handler) APIScrape(c *gin.Context) {
	var req ScrapeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}

	channels, err := h.channels.LoadAll()
	if err != nil {
		slog.Error("Failed to load channel configurations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load channel configurations"})
		return
	}

	if req.Channel != "" {
		channels = filterChannels(channels, req.Channel)
		if len(channels) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not configured"})
			return
		}
	}
	if req.MaxPosts > 0 {
		for i := range channels {
			channels[i].MaxPosts = req.MaxPosts
		}
	}

	results := h.scraper.RunAll(c.Request.Context(), channels, req.Force)

	response := make([]ScrapeResultResponse, 0, len(results))
	for _, result := range results {
		response = append(response, ScrapeResultResponse{
			Channel:          result.ChannelName,
			PostsFound:       result.PostsFound,
			PostsNew:         result.PostsNew,
			PostsDuplicate:   result.PostsDuplicate,
			ImagesDownloaded: result.ImagesDownloaded,
			Error:            result.Error,
		})
	}

	c.JSON(http.StatusOK, gin.H{"results": response, "total": len(response)})
}

func filterChannels(channels []config.Channel, name string) []config.Channel {
	var out []config.Channel
	for _, channel := range channels {
		if channel.Name == name || channel.Username == name {
			out = append(out, channel)
		}
	}
	return out
}

// APIModeratePost updates the moderation state of one post.
func (h *Handler) APIModeratePost(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	var req ModerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	switch req.Status {
	case database.ModerationPending, database.ModerationReady, database.ModerationWrong:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid moderation status"})
		return
	}

	post, err := h.postRepo.GetByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_post", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	moderatedAt := time.Now().UTC()
	if err := h.postRepo.UpdateModeration(id, req.Status, req.ModeratedBy, req.Notes, moderatedAt); err != nil {
		slog.Error("Database error", "operation", "update_moderation", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"id":                id,
		"moderation_status": req.Status,
		"moderated_at":      moderatedAt.Format(time.RFC3339),
	})
}

// APIPublicizeMedia re-applies public read access to stored media objects,
// for buckets that lost their ACLs. Without a post_id every post with media
// is processed.
func (h *Handler) APIPublicizeMedia(c *gin.Context) {
	var req PublicizeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}

	var posts []database.Post
	if req.PostID != 0 {
		post, err := h.postRepo.GetByID(req.PostID)
		if err != nil {
			slog.Error("Database error", "operation", "get_post", "id", req.PostID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		if post == nil || post.MediaURL == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post with media not found"})
			return
		}
		posts = []database.Post{*post}
	} else {
		var err error
		posts, err = h.postRepo.ListWithMedia()
		if err != nil {
			slog.Error("Database error", "operation", "list_posts_with_media", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
	}

	updated := 0
	failed := 0
	for _, post := range posts {
		objectPath, ok := objectPathFromURL(post.MediaURL)
		if !ok {
			failed++
			continue
		}
		url, err := h.publicizer.Publicize(c.Request.Context(), objectPath)
		if err != nil {
			slog.Error("Failed to publicize media", "post_id", post.ID, "object", objectPath, "error", err)
			failed++
			continue
		}
		if url != "" && url != post.MediaURL {
			if err := h.postRepo.UpdateMediaURL(post.ID, url); err != nil {
				slog.Error("Failed to store normalized media url", "post_id", post.ID, "error", err)
			}
		}
		updated++
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   len(posts),
		"updated": updated,
		"failed":  failed,
	})
}

// objectPathFromURL extracts the bucket object path from a public GCS URL.
func objectPathFromURL(url string) (string, bool) {
	const host = "storage.googleapis.com/"
	idx := strings.Index(url, host)
	if idx < 0 {
		return "", false
	}
	rest := url[idx+len(host):]
	slash := strings.Index(rest, "/")
	if slash < 0 || slash == len(rest)-1 {
		return "", false
	}
	return rest[slash+1:], true
}

func parsePostFilter(c *gin.Context) (database.PostFilter, error) {
	filter := database.PostFilter{
		Page: 1,
		Size: defaultPageSize,
	}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, errInvalidParam("page")
		}
		filter.Page = page
	}
	if raw := c.Query("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return filter, errInvalidParam("size")
		}
		if size > maxPageSize {
			size = maxPageSize
		}
		filter.Size = size
	}
	if raw := c.Query("channel_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, errInvalidParam("channel_id")
		}
		filter.ChannelID = &id
	}
	filter.Category = c.Query("category")
	filter.Language = c.Query("language")
	filter.ModerationStatus = c.Query("moderation_status")
	if raw := c.Query("has_media"); raw != "" {
		hasMedia, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errInvalidParam("has_media")
		}
		filter.HasMedia = &hasMedia
	}
	filter.Search = c.Query("search")
	if raw := c.Query("date_from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errInvalidParam("date_from")
		}
		filter.DateFrom = &from
	}
	if raw := c.Query("date_to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errInvalidParam("date_to")
		}
		filter.DateTo = &to
	}

	return filter, nil
}

type paramError struct {
	name string
}

func (e paramError) Error() string {
	return "invalid query parameter: " + e.name
}

func errInvalidParam(name string) error {
	return paramError{name: name}
}

func toPostResponse(post database.Post) PostResponse {
	return PostResponse{
		ID:               post.ID,
		TelegramID:       post.TelegramID,
		Title:            post.Title,
		Content:          post.Content,
		Excerpt:          post.Excerpt,
		MediaURL:         post.MediaURL,
		PublishedAt:      post.PublishedAt,
		ScrapedAt:        post.ScrapedAt,
		ChannelID:        post.ChannelID,
		Category:         post.Category,
		Language:         post.Language,
		Views:            post.Views,
		Forwards:         post.Forwards,
		Replies:          post.Replies,
		HasMedia:         post.HasMedia,
		MediaType:        post.MediaType,
		ModerationStatus: post.ModerationStatus,
		ModeratedBy:      post.ModeratedBy,
		ModeratedAt:      post.ModeratedAt,
		ModerationNotes:  post.ModerationNotes,
	}
}

func toChannelResponse(channel database.Channel) ChannelResponse {
	return ChannelResponse{
		ID:            channel.ID,
		Name:          channel.Name,
		Username:      channel.Username,
		URL:           channel.URL,
		Category:      channel.Category,
		Language:      channel.Language,
		IsActive:      channel.IsActive,
		LastScrapedAt: channel.LastScrapedAt,
		CreatedAt:     channel.CreatedAt,
	}
}
