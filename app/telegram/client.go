package telegram

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/addisnews/tg-scraper/app/scraper"
)

var _ scraper.MessageSource = (*Client)(nil)

// Client is the MTProto-backed message source. It keeps a long-running
// connection between Start and Stop.
type Client struct {
	client   *telegram.Client
	api      *tg.Client
	resolver *peers.Manager
	phone    string
	cancel   context.CancelFunc
	done     chan error
}

func NewClient(apiID int, apiHash, phone, sessionPath string) *Client {
	client := telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: sessionPath},
	})
	api := client.API()

	return &Client{
		client:   client,
		api:      api,
		resolver: peers.Options{}.Build(api),
		phone:    phone,
	}
}

// Start connects and authenticates, blocking until the connection is ready.
// The connection keeps running until Stop is called.
func (c *Client) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan error, 1)

	ready := make(chan struct{})
	go func() {
		c.done <- c.client.Run(runCtx, func(ctx context.Context) error {
			flow := auth.NewFlow(
				auth.CodeOnly(c.phone, auth.CodeAuthenticatorFunc(askCode)),
				auth.SendCodeOptions{},
			)
			if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
				return fmt.Errorf("failed to authenticate: %w", err)
			}
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
		slog.Info("Telegram client connected", "phone", c.phone)
		return nil
	case err := <-c.done:
		cancel()
		return fmt.Errorf("telegram client stopped during startup: %w", err)
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// Stop terminates the connection and waits for the run loop to exit.
func (c *Client) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func askCode(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	fmt.Print("Enter the login code sent to your Telegram account: ")
	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(code), nil
}

// RecentMessages fetches up to limit recent messages of the channel,
// keeping only the ones carrying text.
func (c *Client) RecentMessages(ctx context.Context, username string, limit int) ([]scraper.Message, error) {
	peer, err := c.resolver.ResolveDomain(ctx, username)
	if err != nil {
		return nil, mapAccessError(fmt.Errorf("failed to resolve channel %s: %w", username, err))
	}

	history, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  peer.InputPeer(),
		Limit: limit,
	})
	if err != nil {
		return nil, mapAccessError(fmt.Errorf("failed to fetch history for %s: %w", username, err))
	}

	raw, err := historyMessages(history)
	if err != nil {
		return nil, err
	}

	var messages []scraper.Message
	for _, m := range raw {
		msg, ok := m.(*tg.Message)
		if !ok || msg.Message == "" {
			continue
		}
		messages = append(messages, convertMessage(msg))
	}

	return messages, nil
}

func mapAccessError(err error) error {
	if tgerr.Is(err, "CHANNEL_PRIVATE") {
		return scraper.ErrChannelPrivate
	}
	if tgerr.Is(err, "CHAT_ADMIN_REQUIRED") {
		return scraper.ErrAccessForbidden
	}
	return err
}

func historyMessages(history tg.MessagesMessagesClass) ([]tg.MessageClass, error) {
	switch v := history.(type) {
	case *tg.MessagesChannelMessages:
		return v.Messages, nil
	case *tg.MessagesMessagesSlice:
		return v.Messages, nil
	case *tg.MessagesMessages:
		return v.Messages, nil
	default:
		return nil, fmt.Errorf("unexpected history response %T", history)
	}
}

func convertMessage(msg *tg.Message) scraper.Message {
	published := time.Unix(int64(msg.Date), 0).UTC()

	out := scraper.Message{
		ID:          int64(msg.ID),
		Text:        msg.Message,
		Spans:       convertEntities(msg.Message, msg.Entities),
		PublishedAt: &published,
	}

	if views, ok := msg.GetViews(); ok {
		out.Views = &views
	}
	if forwards, ok := msg.GetForwards(); ok {
		out.Forwards = &forwards
	}
	if replies, ok := msg.GetReplies(); ok {
		count := replies.Replies
		out.Replies = &count
	}
	if media, ok := msg.GetMedia(); ok {
		out.Media = convertMedia(media)
	}

	return out
}

// convertEntities translates formatting entities into spans. Entity offsets
// count UTF-16 code units while spans count runes.
func convertEntities(text string, entities []tg.MessageEntityClass) []scraper.Span {
	if len(entities) == 0 {
		return nil
	}

	toRune := utf16RuneIndex(text)

	var spans []scraper.Span
	for _, entity := range entities {
		var kind scraper.SpanKind
		var url string

		switch e := entity.(type) {
		case *tg.MessageEntityBold:
			kind = scraper.SpanBold
		case *tg.MessageEntityItalic:
			kind = scraper.SpanItalic
		case *tg.MessageEntityCode:
			kind = scraper.SpanCode
		case *tg.MessageEntityPre:
			kind = scraper.SpanPre
		case *tg.MessageEntityTextURL:
			kind = scraper.SpanLink
			url = e.URL
		default:
			// Plain URLs, mentions and hashtags stay as-is in the text.
			continue
		}

		offset := toRune(entity.GetOffset())
		end := toRune(entity.GetOffset() + entity.GetLength())
		spans = append(spans, scraper.Span{
			Kind:   kind,
			Offset: offset,
			Length: end - offset,
			URL:    url,
		})
	}

	return spans
}

// utf16RuneIndex returns a converter from UTF-16 code unit positions to
// rune positions in text.
func utf16RuneIndex(text string) func(int) int {
	var offsets []int
	runeIdx := 0
	for _, r := range text {
		units := 1
		if r > 0xFFFF {
			units = 2
		}
		for i := 0; i < units; i++ {
			offsets = append(offsets, runeIdx)
		}
		runeIdx++
	}
	total := runeIdx

	return func(u int) int {
		if u < 0 {
			return 0
		}
		if u >= len(offsets) {
			return total
		}
		return offsets[u]
	}
}

type photoRef struct {
	photo *tg.Photo
	thumb string
}

type documentRef struct {
	doc *tg.Document
}

func convertMedia(media tg.MessageMediaClass) *scraper.Media {
	switch v := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := v.Photo.(*tg.Photo)
		if !ok {
			return nil
		}
		thumb, size := largestPhotoSize(photo)
		if thumb == "" {
			return nil
		}
		return &scraper.Media{
			Kind: scraper.MediaPhoto,
			Size: size,
			Ref:  photoRef{photo: photo, thumb: thumb},
		}
	case *tg.MessageMediaDocument:
		doc, ok := v.Document.(*tg.Document)
		if !ok {
			return nil
		}
		return &scraper.Media{
			Kind:     scraper.MediaDocument,
			Filename: documentFilename(doc),
			Size:     doc.Size,
			Ref:      documentRef{doc: doc},
		}
	default:
		return nil
	}
}

func documentFilename(doc *tg.Document) string {
	for _, attr := range doc.Attributes {
		if a, ok := attr.(*tg.DocumentAttributeFilename); ok {
			return a.FileName
		}
	}
	return ""
}

// largestPhotoSize picks the biggest available size variant of a photo.
func largestPhotoSize(photo *tg.Photo) (string, int64) {
	var thumb string
	var best int64
	for _, s := range photo.Sizes {
		switch v := s.(type) {
		case *tg.PhotoSize:
			if int64(v.Size) >= best {
				best = int64(v.Size)
				thumb = v.Type
			}
		case *tg.PhotoSizeProgressive:
			var max int
			for _, size := range v.Sizes {
				if size > max {
					max = size
				}
			}
			if int64(max) >= best {
				best = int64(max)
				thumb = v.Type
			}
		}
	}
	return thumb, best
}

// DownloadMedia fetches the media payload into dir and returns the written
// file path.
func (c *Client) DownloadMedia(ctx context.Context, media *scraper.Media, dir string) (string, error) {
	d := downloader.NewDownloader()

	switch ref := media.Ref.(type) {
	case photoRef:
		loc := &tg.InputPhotoFileLocation{
			ID:            ref.photo.ID,
			AccessHash:    ref.photo.AccessHash,
			FileReference: ref.photo.FileReference,
			ThumbSize:     ref.thumb,
		}
		dst := filepath.Join(dir, fmt.Sprintf("photo_%d.jpg", ref.photo.ID))
		if _, err := d.Download(c.api, loc).ToPath(ctx, dst); err != nil {
			return "", fmt.Errorf("failed to download photo: %w", err)
		}
		return dst, nil
	case documentRef:
		name := documentFilename(ref.doc)
		if name == "" {
			name = fmt.Sprintf("document_%d", ref.doc.ID)
		}
		dst := filepath.Join(dir, filepath.Base(name))
		if _, err := d.Download(c.api, ref.doc.AsInputDocumentFileLocation()).ToPath(ctx, dst); err != nil {
			return "", fmt.Errorf("failed to download document: %w", err)
		}
		return dst, nil
	default:
		return "", fmt.Errorf("unsupported media reference %T", media.Ref)
	}
}
