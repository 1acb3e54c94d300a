package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/addisnews/tg-scraper/app/config"
	"github.com/addisnews/tg-scraper/app/database"
)

// Scraper runs the ingestion pipeline: fetch recent channel messages,
// extract content, detect duplicates, attach media and record the run.
type Scraper struct {
	source       MessageSource
	media        MediaProcessor
	extractor    *Extractor
	channelsRepo database.ChannelRepository
	postsRepo    database.PostRepository
	logsRepo     database.RunLogRepository
	delay        time.Duration
}

func New(source MessageSource, media MediaProcessor,
	channelsRepo database.ChannelRepository, postsRepo database.PostRepository,
	logsRepo database.RunLogRepository, delay time.Duration) *Scraper {
	return &Scraper{
		source:       source,
		media:        media,
		extractor:    NewExtractor(),
		channelsRepo: channelsRepo,
		postsRepo:    postsRepo,
		logsRepo:     logsRepo,
		delay:        delay,
	}
}

// RunAll processes every active channel sequentially, pausing between
// channels to stay under rate limits. A failing channel never aborts the
// remaining ones.
func (s *Scraper) RunAll(ctx context.Context, channels []config.Channel, force bool) []RunResult {
	var results []RunResult

	first := true
	for _, channel := range channels {
		if !channel.IsActive {
			slog.Debug("Skipping inactive channel", "channel", channel.Name)
			continue
		}

		if !first && s.delay > 0 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(s.delay):
			}
		}
		first = false

		results = append(results, s.RunChannel(ctx, channel, force))
	}

	return results
}

// RunChannel ingests one channel and always records the outcome, whether the
// run succeeded or failed.
func (s *Scraper) RunChannel(ctx context.Context, channel config.Channel, force bool) RunResult {
	start := time.Now()
	result := RunResult{ChannelName: channel.Name}

	err := s.runChannel(ctx, channel, force, &result)
	if err != nil {
		result.Error = err.Error()
		slog.Error("Channel run failed", "channel", channel.Name, "error", err)
	} else {
		slog.Info("Channel run finished", "channel", channel.Name,
			"found", result.PostsFound, "new", result.PostsNew,
			"duplicate", result.PostsDuplicate, "images", result.ImagesDownloaded)
	}

	s.recordRun(channel, result, time.Since(start))
	return result
}

func (s *Scraper) runChannel(ctx context.Context, channel config.Channel, force bool, result *RunResult) error {
	dbChannel, err := s.ensureChannel(channel)
	if err != nil {
		return err
	}

	messages, err := s.fetchMessages(ctx, channel)
	if err != nil {
		return err
	}
	result.PostsFound = len(messages)

	for _, msg := range messages {
		if err := s.processMessage(ctx, msg, dbChannel, force, result); err != nil {
			slog.Error("Failed to process message", "channel", channel.Name,
				"message_id", msg.ID, "error", err)
		}
	}

	if err := s.channelsRepo.UpdateLastScraped(dbChannel.ID, time.Now().UTC()); err != nil {
		slog.Error("Failed to update channel scrape time", "channel", channel.Name, "error", err)
	}

	return nil
}

// ensureChannel returns the stored channel matching the configured one,
// creating it on first sight. The username is the unique external handle;
// display names can collide across definitions.
func (s *Scraper) ensureChannel(channel config.Channel) (*database.Channel, error) {
	existing, err := s.channelsRepo.GetByUsername(channel.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up channel: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	created := &database.Channel{
		Name:     channel.Name,
		Username: channel.Username,
		URL:      channel.URL,
		Category: channel.Category,
		Language: channel.Language,
		IsActive: channel.IsActive,
	}
	if err := s.channelsRepo.Create(created); err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	slog.Info("Registered new channel", "channel", channel.Name, "username", channel.Username)
	return created, nil
}

// fetchMessages pulls the recent message batch. Channels we cannot read are
// treated as empty so the run still completes and gets logged.
func (s *Scraper) fetchMessages(ctx context.Context, channel config.Channel) ([]Message, error) {
	messages, err := s.source.RecentMessages(ctx, channel.Username, channel.MaxPosts)
	if errors.Is(err, ErrChannelPrivate) || errors.Is(err, ErrAccessForbidden) {
		slog.Warn("Channel is not readable, skipping", "channel", channel.Name, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return messages, nil
}

func (s *Scraper) processMessage(ctx context.Context, msg Message, channel *database.Channel, force bool, result *RunResult) error {
	existing, err := s.postsRepo.GetByTelegramID(msg.ID)
	if err != nil {
		return err
	}

	if existing != nil && !force {
		result.PostsDuplicate++
		return nil
	}

	post := s.buildPost(msg, channel)

	if existing != nil {
		if err := s.postsRepo.Update(post); err != nil {
			return err
		}
		post.ID = existing.ID
	} else {
		if err := s.postsRepo.Insert(post); err != nil {
			return err
		}
	}
	result.PostsNew++

	if msg.Media != nil && s.media != nil {
		url, err := s.media.Process(ctx, msg)
		if err != nil {
			slog.Error("Failed to process media", "message_id", msg.ID, "error", err)
			return nil
		}
		if url != "" {
			if err := s.postsRepo.UpdateMediaURL(post.ID, url); err != nil {
				slog.Error("Failed to store media url", "message_id", msg.ID, "error", err)
				return nil
			}
			result.ImagesDownloaded++
		}
	}

	return nil
}

func (s *Scraper) buildPost(msg Message, channel *database.Channel) *database.Post {
	extracted := s.extractor.Run(msg.Text, msg.Spans)

	post := &database.Post{
		TelegramID:       msg.ID,
		Title:            extracted.Title,
		Content:          extracted.Content,
		Excerpt:          extracted.Excerpt,
		PublishedAt:      msg.PublishedAt,
		ScrapedAt:        time.Now().UTC(),
		ChannelID:        channel.ID,
		Category:         channel.Category,
		Language:         channel.Language,
		ContentHash:      Fingerprint(extracted.Content),
		TitleHash:        Fingerprint(extracted.Title),
		Views:            msg.Views,
		Forwards:         msg.Forwards,
		Replies:          msg.Replies,
		ModerationStatus: database.ModerationPending,
	}

	if msg.Media != nil {
		post.HasMedia = true
		post.MediaType = string(msg.Media.Kind)
	}

	return post
}

// recordRun persists the run outcome. Logging failures never surface to the
// caller.
func (s *Scraper) recordRun(configChannel config.Channel, result RunResult, elapsed time.Duration) {
	channel, err := s.channelsRepo.GetByUsername(configChannel.Username)
	if err != nil || channel == nil {
		slog.Error("Failed to resolve channel for run log", "channel", configChannel.Name, "error", err)
		return
	}

	status := database.RunStatusSuccess
	if result.Error != "" {
		status = database.RunStatusError
	}

	log := &database.RunLog{
		ChannelID:        channel.ID,
		Status:           status,
		PostsFound:       result.PostsFound,
		PostsNew:         result.PostsNew,
		PostsDuplicate:   result.PostsDuplicate,
		ImagesDownloaded: result.ImagesDownloaded,
		ErrorMessage:     result.Error,
		Duration:         elapsed.Seconds(),
	}
	if err := s.logsRepo.Insert(log); err != nil {
		slog.Error("Failed to record run log", "channel", configChannel.Name, "error", err)
	}
}
