package database

import (
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewConnection(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func testChannel(name, username string) *Channel {
	return &Channel{
		Name:     name,
		Username: username,
		URL:      "https://t.me/" + username,
		Category: "news",
		Language: "en",
		IsActive: true,
	}
}

func testPost(telegramID, channelID int64) *Post {
	published := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &Post{
		TelegramID:       telegramID,
		Title:            "Breaking news headline",
		Content:          "<p>Breaking news headline</p>",
		Excerpt:          "Some excerpt",
		PublishedAt:      &published,
		ScrapedAt:        time.Now().UTC(),
		ChannelID:        channelID,
		Category:         "news",
		Language:         "en",
		ContentHash:      "hash-abc",
		TitleHash:        "hash-title",
		ModerationStatus: ModerationPending,
	}
}

func TestChannelRepositoryCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChannelRepository(db)

	channel := testChannel("Test Channel", "testchannel")
	if err := repo.Create(channel); err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}
	if channel.ID == 0 {
		t.Error("expected channel ID to be set after create")
	}

	got, err := repo.GetByID(channel.ID)
	if err != nil {
		t.Fatalf("failed to get channel by id: %v", err)
	}
	if got == nil {
		t.Fatal("expected channel, got nil")
	}
	if got.Name != "Test Channel" {
		t.Errorf("expected name 'Test Channel', got %q", got.Name)
	}
	if got.LastScrapedAt != nil {
		t.Error("expected LastScrapedAt to be nil for new channel")
	}

	byName, err := repo.GetByName("Test Channel")
	if err != nil {
		t.Fatalf("failed to get channel by name: %v", err)
	}
	if byName == nil || byName.ID != channel.ID {
		t.Error("expected GetByName to return the created channel")
	}

	byUsername, err := repo.GetByUsername("testchannel")
	if err != nil {
		t.Fatalf("failed to get channel by username: %v", err)
	}
	if byUsername == nil || byUsername.ID != channel.ID {
		t.Error("expected GetByUsername to return the created channel")
	}
}

func TestChannelRepositoryGetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChannelRepository(db)

	got, err := repo.GetByID(42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing channel")
	}
}

func TestChannelRepositoryUpdateLastScraped(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChannelRepository(db)

	channel := testChannel("Test Channel", "testchannel")
	if err := repo.Create(channel); err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}

	scrapedAt := time.Date(2025, 7, 1, 8, 30, 0, 0, time.UTC)
	if err := repo.UpdateLastScraped(channel.ID, scrapedAt); err != nil {
		t.Fatalf("failed to update last scraped: %v", err)
	}

	got, err := repo.GetByID(channel.ID)
	if err != nil {
		t.Fatalf("failed to get channel: %v", err)
	}
	if got.LastScrapedAt == nil {
		t.Fatal("expected LastScrapedAt to be set")
	}
	if !got.LastScrapedAt.Equal(scrapedAt) {
		t.Errorf("expected LastScrapedAt %v, got %v", scrapedAt, got.LastScrapedAt)
	}
}

func TestPostRepositoryInsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	channels := NewChannelRepository(db)
	posts := NewPostRepository(db)

	channel := testChannel("Test Channel", "testchannel")
	if err := channels.Create(channel); err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}

	post := testPost(1001, channel.ID)
	views := 250
	post.Views = &views
	if err := posts.Insert(post); err != nil {
		t.Fatalf("failed to insert post: %v", err)
	}
	if post.ID == 0 {
		t.Error("expected post ID to be set after insert")
	}

	got, err := posts.GetByTelegramID(1001)
	if err != nil {
		t.Fatalf("failed to get post by telegram id: %v", err)
	}
	if got == nil {
		t.Fatal("expected post, got nil")
	}
	if got.Title != "Breaking news headline" {
		t.Errorf("expected title 'Breaking news headline', got %q", got.Title)
	}
	if got.Views == nil || *got.Views != 250 {
		t.Errorf("expected views 250, got %v", got.Views)
	}
	if got.Forwards != nil {
		t.Error("expected forwards to be nil")
	}
	if got.ModerationStatus != ModerationPending {
		t.Errorf("expected moderation status %q, got %q", ModerationPending, got.ModerationStatus)
	}
}

func TestPostRepositoryInsertDuplicateTelegramID(t *testing.T) {
	db := setupTestDB(t)
	channels := NewChannelRepository(db)
	posts := NewPostRepository(db)

	channel := testChannel("Test Channel", "testchannel")
	if err := channels.Create(channel); err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}

	if err := posts.Insert(testPost(1001, channel.ID)); err != nil {
		t.Fatalf("failed to insert post: %v", err)
	}
	if err := posts.Insert(testPost(1001, channel.ID)); err == nil {
		t.Error("expected error for duplicate telegram id")
	}
}

func TestPostRepositoryUpdate(t *testing.T) {
	db := setupTestDB(t)
	channels := NewChannelRepository(db)
	posts := NewPostRepository(db)

	channel := testChannel("Test Channel", "testchannel")
	if err := channels.Create(channel); err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}

	post := testPost(1001, channel.ID)
	if err := posts.Insert(post); err != nil {
		t.Fatalf("failed to insert post: %v", err)
	}
	if err := posts.UpdateModeration(post.ID, ModerationReady, "editor", "looks fine", time.Now().UTC()); err != nil {
		t.Fatalf("failed to update moderation: %v", err)
	}

	refreshed := testPost(1001, channel.ID)
	refreshed.Title = "Updated headline"
	refreshed.ContentHash = "hash-new"
	if err := posts.Update(refreshed); err != nil {
		t.Fatalf("failed to update post: %v", err)
	}

	got, err := posts.GetByTelegramID(1001)
	if err != nil {
		t.Fatalf("failed to get post: %v", err)
	}
	if got.Title != "Updated headline" {
		t.Errorf("expected updated title, got %q", got.Title)
	}
	if got.ContentHash != "hash-new" {
		t.Errorf("expected updated content hash, got %q", got.ContentHash)
	}
	if got.ModerationStatus != ModerationReady {
		t.Error("expected update to leave moderation status untouched")
	}
	if got.ModeratedBy != "editor" {
		t.Errorf("expected moderated_by 'editor', got %q", got.ModeratedBy)
	}
}

func TestPostRepositoryUpdateMediaURL(t *testing.T) {
	db := setupTestDB(t)
	channels := NewChannelRepository(db)
	posts := NewPostRepository(db)

	channel := testChannel("Test Channel", "testchannel")
	if err := channels.Create(channel); err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}

	post := testPost(1001, channel.ID)
	if err := posts.Insert(post); err != nil {
		t.Fatalf("failed to insert post: %v", err)
	}

	url := "https://storage.googleapis.com/bucket/telegram_images/telegram_photo_1001.jpg"
	if err := posts.UpdateMediaURL(post.ID, url); err != nil {
		t.Fatalf("failed to update media url: %v", err)
	}

	got, err := posts.GetByID(post.ID)
	if err != nil {
		t.Fatalf("failed to get post: %v", err)
	}
	if got.MediaURL != url {
		t.Errorf("expected media url %q, got %q", url, got.MediaURL)
	}

	withMedia, err := posts.ListWithMedia()
	if err != nil {
		t.Fatalf("failed to list posts with media: %v", err)
	}
	if len(withMedia) != 1 {
		t.Errorf("expected 1 post with media, got %d", len(withMedia))
	}
}

func TestPostRepositoryListFilters(t *testing.T) {
	db := setupTestDB(t)
	channels := NewChannelRepository(db)
	posts := NewPostRepository(db)

	first := testChannel("First Channel", "firstchannel")
	if err := channels.Create(first); err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}
	second := testChannel("Second Channel", "secondchannel")
	second.Category = "sports"
	if err := channels.Create(second); err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}

	for i := int64(0); i < 5; i++ {
		post := testPost(1000+i, first.ID)
		published := time.Date(2025, 6, 1, int(12+i), 0, 0, 0, time.UTC)
		post.PublishedAt = &published
		if err := posts.Insert(post); err != nil {
			t.Fatalf("failed to insert post: %v", err)
		}
	}
	sportsPost := testPost(2000, second.ID)
	sportsPost.Category = "sports"
	sportsPost.Title = "Match recap"
	if err := posts.Insert(sportsPost); err != nil {
		t.Fatalf("failed to insert post: %v", err)
	}

	all, total, err := posts.List(PostFilter{Page: 1, Size: 10})
	if err != nil {
		t.Fatalf("failed to list posts: %v", err)
	}
	if total != 6 {
		t.Errorf("expected total 6, got %d", total)
	}
	if len(all) != 6 {
		t.Errorf("expected 6 posts, got %d", len(all))
	}

	paged, total, err := posts.List(PostFilter{Page: 2, Size: 4})
	if err != nil {
		t.Fatalf("failed to list page 2: %v", err)
	}
	if total != 6 {
		t.Errorf("expected total 6, got %d", total)
	}
	if len(paged) != 2 {
		t.Errorf("expected 2 posts on page 2, got %d", len(paged))
	}

	byChannel, total, err := posts.List(PostFilter{Page: 1, Size: 10, ChannelID: &second.ID})
	if err != nil {
		t.Fatalf("failed to list by channel: %v", err)
	}
	if total != 1 || len(byChannel) != 1 {
		t.Errorf("expected 1 post for second channel, got total=%d len=%d", total, len(byChannel))
	}

	byCategory, _, err := posts.List(PostFilter{Page: 1, Size: 10, Category: "sports"})
	if err != nil {
		t.Fatalf("failed to list by category: %v", err)
	}
	if len(byCategory) != 1 {
		t.Errorf("expected 1 sports post, got %d", len(byCategory))
	}

	bySearch, _, err := posts.List(PostFilter{Page: 1, Size: 10, Search: "recap"})
	if err != nil {
		t.Fatalf("failed to list by search: %v", err)
	}
	if len(bySearch) != 1 {
		t.Errorf("expected 1 post matching search, got %d", len(bySearch))
	}

	// Newest first
	if len(all) > 1 && all[0].PublishedAt != nil && all[1].PublishedAt != nil {
		if all[0].PublishedAt.Before(*all[1].PublishedAt) {
			t.Error("expected posts ordered newest first")
		}
	}
}

func TestPostRepositoryCounts(t *testing.T) {
	db := setupTestDB(t)
	channels := NewChannelRepository(db)
	posts := NewPostRepository(db)

	channel := testChannel("Test Channel", "testchannel")
	if err := channels.Create(channel); err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}

	newsPost := testPost(1, channel.ID)
	if err := posts.Insert(newsPost); err != nil {
		t.Fatalf("failed to insert post: %v", err)
	}
	sportsPost := testPost(2, channel.ID)
	sportsPost.Category = "sports"
	sportsPost.Language = "am"
	if err := posts.Insert(sportsPost); err != nil {
		t.Fatalf("failed to insert post: %v", err)
	}

	byCategory, err := posts.CountByCategory()
	if err != nil {
		t.Fatalf("failed to count by category: %v", err)
	}
	if byCategory["news"] != 1 || byCategory["sports"] != 1 {
		t.Errorf("unexpected category counts: %v", byCategory)
	}

	byLanguage, err := posts.CountByLanguage()
	if err != nil {
		t.Fatalf("failed to count by language: %v", err)
	}
	if byLanguage["en"] != 1 || byLanguage["am"] != 1 {
		t.Errorf("unexpected language counts: %v", byLanguage)
	}

	byModeration, err := posts.CountByModerationStatus()
	if err != nil {
		t.Fatalf("failed to count by moderation status: %v", err)
	}
	if byModeration[ModerationPending] != 2 {
		t.Errorf("unexpected moderation counts: %v", byModeration)
	}
}

func TestRunLogRepositoryInsertAndRecent(t *testing.T) {
	db := setupTestDB(t)
	channels := NewChannelRepository(db)
	logs := NewRunLogRepository(db)

	channel := testChannel("Test Channel", "testchannel")
	if err := channels.Create(channel); err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}

	success := &RunLog{
		ChannelID:        channel.ID,
		Status:           RunStatusSuccess,
		PostsFound:       10,
		PostsNew:         7,
		PostsDuplicate:   3,
		ImagesDownloaded: 2,
		Duration:         4.2,
	}
	if err := logs.Insert(success); err != nil {
		t.Fatalf("failed to insert run log: %v", err)
	}
	if success.ID == 0 {
		t.Error("expected run log ID to be set after insert")
	}

	failure := &RunLog{
		ChannelID:    channel.ID,
		Status:       RunStatusError,
		ErrorMessage: "channel is private",
		Duration:     0.3,
	}
	if err := logs.Insert(failure); err != nil {
		t.Fatalf("failed to insert run log: %v", err)
	}

	recent, err := logs.Recent(10)
	if err != nil {
		t.Fatalf("failed to list recent run logs: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 run logs, got %d", len(recent))
	}
	if recent[0].Status != RunStatusError {
		t.Errorf("expected newest log first, got status %q", recent[0].Status)
	}
	if recent[0].ErrorMessage != "channel is private" {
		t.Errorf("unexpected error message: %q", recent[0].ErrorMessage)
	}

	count, err := logs.Count()
	if err != nil {
		t.Fatalf("failed to count run logs: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
}
