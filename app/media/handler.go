package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/addisnews/tg-scraper/app/scraper"
	"github.com/addisnews/tg-scraper/app/storage"
)

// objectPrefix is the bucket directory all uploaded images live under.
const objectPrefix = "telegram_images"

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var _ scraper.MediaProcessor = (*Handler)(nil)

// Handler downloads message attachments, filters them to acceptable images
// and uploads them to the object store. Temporary files are removed once
// the upload finishes or fails.
type Handler struct {
	store   storage.ObjectStore
	source  scraper.MessageSource
	baseDir string
	maxSize int64
}

func NewHandler(store storage.ObjectStore, source scraper.MessageSource, baseDir string, maxSize int64) *Handler {
	return &Handler{
		store:   store,
		source:  source,
		baseDir: baseDir,
		maxSize: maxSize,
	}
}

// Process handles one message attachment. An empty URL with a nil error
// means the attachment was skipped (wrong type, too large, or no store
// configured).
func (h *Handler) Process(ctx context.Context, msg scraper.Message) (string, error) {
	if msg.Media == nil {
		return "", nil
	}

	objectName, ok := h.objectName(msg)
	if !ok {
		return "", nil
	}

	if h.maxSize > 0 && msg.Media.Size > h.maxSize {
		slog.Warn("Skipping oversized media", "message_id", msg.ID,
			"size", msg.Media.Size, "limit", h.maxSize)
		return "", nil
	}

	if h.store == nil {
		slog.Warn("No object store configured, skipping media", "message_id", msg.ID)
		return "", nil
	}

	tempDir := filepath.Join(h.baseDir, uuid.NewString())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	localPath, err := h.source.DownloadMedia(ctx, msg.Media, tempDir)
	if err != nil {
		return "", fmt.Errorf("failed to download media: %w", err)
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat downloaded media: %w", err)
	}
	if h.maxSize > 0 && info.Size() > h.maxSize {
		slog.Warn("Discarding oversized download", "message_id", msg.ID,
			"size", info.Size(), "limit", h.maxSize)
		return "", nil
	}

	url, err := h.store.Upload(ctx, localPath, path.Join(objectPrefix, objectName))
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}

	return url, nil
}

// objectName derives the bucket object name for the attachment. Photos are
// always accepted; documents only when their filename carries an image
// extension.
func (h *Handler) objectName(msg scraper.Message) (string, bool) {
	switch msg.Media.Kind {
	case scraper.MediaPhoto:
		return fmt.Sprintf("telegram_photo_%d.jpg", msg.ID), true
	case scraper.MediaDocument:
		ext := strings.ToLower(filepath.Ext(msg.Media.Filename))
		if !imageExtensions[ext] {
			return "", false
		}
		return fmt.Sprintf("telegram_doc_%d%s", msg.ID, ext), true
	default:
		return "", false
	}
}

// Publicize re-applies public read access to an already stored object.
func (h *Handler) Publicize(ctx context.Context, objectPath string) (string, error) {
	if h.store == nil {
		return "", fmt.Errorf("no object store configured")
	}
	return h.store.MakePublic(ctx, objectPath)
}
