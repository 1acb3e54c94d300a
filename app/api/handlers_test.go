package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/addisnews/tg-scraper/app/config"
	"github.com/addisnews/tg-scraper/app/database"
	"github.com/addisnews/tg-scraper/app/scraper"
)

type stubChannelRepo struct {
	channels []database.Channel
}

func (r *stubChannelRepo) GetByID(id int64) (*database.Channel, error) {
	for i := range r.channels {
		if r.channels[i].ID == id {
			return &r.channels[i], nil
		}
	}
	return nil, nil
}

func (r *stubChannelRepo) GetByName(string) (*database.Channel, error)     { return nil, nil }
func (r *stubChannelRepo) GetByUsername(string) (*database.Channel, error) { return nil, nil }
func (r *stubChannelRepo) List() ([]database.Channel, error)               { return r.channels, nil }
func (r *stubChannelRepo) Count() (int, error)                             { return len(r.channels), nil }
func (r *stubChannelRepo) Create(*database.Channel) error                  { return nil }
func (r *stubChannelRepo) UpdateLastScraped(int64, time.Time) error        { return nil }

type stubPostRepo struct {
	posts      []database.Post
	lastFilter database.PostFilter
	moderated  map[int64]string
}

func (r *stubPostRepo) GetByID(id int64) (*database.Post, error) {
	for i := range r.posts {
		if r.posts[i].ID == id {
			return &r.posts[i], nil
		}
	}
	return nil, nil
}

func (r *stubPostRepo) GetByTelegramID(int64) (*database.Post, error) { return nil, nil }

func (r *stubPostRepo) List(filter database.PostFilter) ([]database.Post, int, error) {
	r.lastFilter = filter
	return r.posts, len(r.posts), nil
}

func (r *stubPostRepo) ListWithMedia() ([]database.Post, error) {
	var out []database.Post
	for _, p := range r.posts {
		if p.MediaURL != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *stubPostRepo) Count() (int, error)                              { return len(r.posts), nil }
func (r *stubPostRepo) CountByCategory() (map[string]int, error)         { return map[string]int{}, nil }
func (r *stubPostRepo) CountByLanguage() (map[string]int, error)         { return map[string]int{}, nil }
func (r *stubPostRepo) CountByModerationStatus() (map[string]int, error) { return map[string]int{}, nil }
func (r *stubPostRepo) Insert(*database.Post) error                      { return nil }
func (r *stubPostRepo) Update(*database.Post) error                      { return nil }
func (r *stubPostRepo) UpdateMediaURL(int64, string) error               { return nil }

func (r *stubPostRepo) UpdateModeration(id int64, status, _, _ string, _ time.Time) error {
	if r.moderated == nil {
		r.moderated = make(map[int64]string)
	}
	r.moderated[id] = status
	return nil
}

type stubLogRepo struct{}

func (r *stubLogRepo) Insert(*database.RunLog) error         { return nil }
func (r *stubLogRepo) Recent(int) ([]database.RunLog, error) { return nil, nil }
func (r *stubLogRepo) Count() (int, error)                   { return 0, nil }

type stubScraper struct {
	lastChannels []config.Channel
	lastForce    bool
}

func (s *stubScraper) RunAll(_ context.Context, channels []config.Channel, force bool) []scraper.RunResult {
	s.lastChannels = channels
	s.lastForce = force

	results := make([]scraper.RunResult, 0, len(channels))
	for _, channel := range channels {
		results = append(results, scraper.RunResult{ChannelName: channel.Name, PostsFound: 2, PostsNew: 2})
	}
	return results
}

func (s *stubScraper) RunChannel(_ context.Context, channel config.Channel, _ bool) scraper.RunResult {
	return scraper.RunResult{ChannelName: channel.Name}
}

type stubPublicizer struct {
	calls []string
}

func (p *stubPublicizer) Publicize(_ context.Context, objectPath string) (string, error) {
	p.calls = append(p.calls, objectPath)
	return "https://storage.googleapis.com/test-bucket/" + objectPath, nil
}

type stubLoader struct {
	channels []config.Channel
}

func (l *stubLoader) LoadAll() ([]config.Channel, error) { return l.channels, nil }

func newTestServer(postRepo *stubPostRepo, scraperStub *stubScraper, publicizer *stubPublicizer, apiKey string) http.Handler {
	handler := NewHandler(
		&stubChannelRepo{channels: []database.Channel{{ID: 1, Name: "Test", Username: "test"}}},
		postRepo,
		&stubLogRepo{},
		scraperStub,
		publicizer,
		&stubLoader{channels: []config.Channel{{Name: "Test", Username: "test", IsActive: true, MaxPosts: 10}}},
	)
	return NewServer(handler, apiKey)
}

func TestListPostsClampsPageSize(t *testing.T) {
	postRepo := &stubPostRepo{}
	server := newTestServer(postRepo, &stubScraper{}, &stubPublicizer{}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/posts?page=3&size=500", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if postRepo.lastFilter.Page != 3 {
		t.Errorf("expected page 3, got %d", postRepo.lastFilter.Page)
	}
	if postRepo.lastFilter.Size != maxPageSize {
		t.Errorf("expected size clamped to %d, got %d", maxPageSize, postRepo.lastFilter.Size)
	}
}

func TestListPostsInvalidParam(t *testing.T) {
	server := newTestServer(&stubPostRepo{}, &stubScraper{}, &stubPublicizer{}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/posts?has_media=maybe", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestGetPostNotFound(t *testing.T) {
	server := newTestServer(&stubPostRepo{}, &stubScraper{}, &stubPublicizer{}, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/posts/99", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestScrapeRequiresAPIKey(t *testing.T) {
	server := newTestServer(&stubPostRepo{}, &stubScraper{}, &stubPublicizer{}, "secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/scrape", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/scrape", nil)
	req.Header.Set("X-API-Key", "wrong")
	server.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong key, got %d", w.Code)
	}
}

func TestScrapeRunsConfiguredChannels(t *testing.T) {
	scraperStub := &stubScraper{}
	server := newTestServer(&stubPostRepo{}, scraperStub, &stubPublicizer{}, "secret")

	body := strings.NewReader(`{"force": true, "max_posts": 5}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/scrape", body)
	req.Header.Set("X-API-Key", "secret")
	req.Header.Set("Content-Type", "application/json")
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !scraperStub.lastForce {
		t.Error("expected force flag to be passed through")
	}
	if len(scraperStub.lastChannels) != 1 || scraperStub.lastChannels[0].MaxPosts != 5 {
		t.Errorf("expected max_posts override, got %+v", scraperStub.lastChannels)
	}

	var response struct {
		Results []ScrapeResultResponse `json:"results"`
		Total   int                    `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Total != 1 || response.Results[0].PostsNew != 2 {
		t.Errorf("unexpected response: %+v", response)
	}
}

func TestScrapeUnknownChannel(t *testing.T) {
	server := newTestServer(&stubPostRepo{}, &stubScraper{}, &stubPublicizer{}, "secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/scrape", strings.NewReader(`{"channel": "nope"}`))
	req.Header.Set("X-API-Key", "secret")
	req.Header.Set("Content-Type", "application/json")
	server.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestModeratePost(t *testing.T) {
	postRepo := &stubPostRepo{posts: []database.Post{{ID: 7, ModerationStatus: database.ModerationPending}}}
	server := newTestServer(postRepo, &stubScraper{}, &stubPublicizer{}, "secret")

	body := strings.NewReader(`{"status": "ready", "moderated_by": "editor"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("PATCH", "/api/posts/7/moderation", body)
	req.Header.Set("X-API-Key", "secret")
	req.Header.Set("Content-Type", "application/json")
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if postRepo.moderated[7] != database.ModerationReady {
		t.Errorf("expected post 7 moderated to ready, got %q", postRepo.moderated[7])
	}
}

func TestModeratePostInvalidStatus(t *testing.T) {
	postRepo := &stubPostRepo{posts: []database.Post{{ID: 7}}}
	server := newTestServer(postRepo, &stubScraper{}, &stubPublicizer{}, "secret")

	body := strings.NewReader(`{"status": "approved"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("PATCH", "/api/posts/7/moderation", body)
	req.Header.Set("X-API-Key", "secret")
	req.Header.Set("Content-Type", "application/json")
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestPublicizeMediaAllPosts(t *testing.T) {
	postRepo := &stubPostRepo{posts: []database.Post{
		{ID: 1, MediaURL: "https://storage.googleapis.com/old-bucket/telegram_images/telegram_photo_1.jpg"},
		{ID: 2},
	}}
	publicizer := &stubPublicizer{}
	server := newTestServer(postRepo, &stubScraper{}, publicizer, "secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/media/publicize", nil)
	req.Header.Set("X-API-Key", "secret")
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(publicizer.calls) != 1 || publicizer.calls[0] != "telegram_images/telegram_photo_1.jpg" {
		t.Errorf("unexpected publicize calls: %v", publicizer.calls)
	}
}

func TestObjectPathFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://storage.googleapis.com/bucket/telegram_images/photo.jpg", "telegram_images/photo.jpg", true},
		{"https://storage.googleapis.com/bucket/", "", false},
		{"https://example.com/photo.jpg", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := objectPathFromURL(tt.url)
		if got != tt.want || ok != tt.ok {
			t.Errorf("objectPathFromURL(%q) = (%q, %v), want (%q, %v)", tt.url, got, ok, tt.want, tt.ok)
		}
	}
}
