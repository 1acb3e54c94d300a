package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/addisnews/tg-scraper/app/api"
)

// Scheduler runs the full ingestion pass on a fixed interval.
type Scheduler struct {
	scraper  api.ScraperInterface
	channels api.ChannelLoaderInterface
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func New(scraper api.ScraperInterface, channels api.ChannelLoaderInterface, interval time.Duration) *Scheduler {
	return &Scheduler{
		scraper:  scraper,
		channels: channels,
		interval: interval,
	}
}

// Start launches the periodic run loop. A non-positive interval disables
// scheduling entirely.
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		slog.Info("Periodic scraping disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	slog.Info("Periodic scraping enabled", "interval", s.interval)
}

// Stop halts the run loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	channels, err := s.channels.LoadAll()
	if err != nil {
		slog.Error("Failed to load channel configurations", "error", err)
		return
	}

	results := s.scraper.RunAll(ctx, channels, false)

	var newPosts, failures int
	for _, result := range results {
		newPosts += result.PostsNew
		if result.Error != "" {
			failures++
		}
	}
	slog.Info("Scheduled run finished", "channels", len(results),
		"new_posts", newPosts, "failures", failures)
}
