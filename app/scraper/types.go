package scraper

import (
	"context"
	"errors"
	"time"
)

// SpanKind identifies a formatting annotation within a message text.
type SpanKind string

const (
	SpanBold   SpanKind = "bold"
	SpanItalic SpanKind = "italic"
	SpanCode   SpanKind = "code"
	SpanPre    SpanKind = "pre"
	SpanLink   SpanKind = "link"
)

// Span is a formatting annotation over a rune range of a message text.
// Offset and Length are in runes.
type Span struct {
	Kind   SpanKind
	Offset int
	Length int
	URL    string
}

// MediaKind distinguishes the message attachment shapes we handle.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
)

// Media describes an attachment on a message. Ref is an opaque handle
// understood by the MessageSource that produced it.
type Media struct {
	Kind     MediaKind
	Filename string
	Size     int64
	Ref      any
}

// Message is a single channel message as returned by a MessageSource.
type Message struct {
	ID          int64
	Text        string
	Spans       []Span
	PublishedAt *time.Time
	Views       *int
	Forwards    *int
	Replies     *int
	Media       *Media
}

// MessageSource fetches messages and media from a channel backend.
type MessageSource interface {
	// RecentMessages returns up to limit recent text-bearing messages
	// for the given channel username, newest first.
	RecentMessages(ctx context.Context, username string, limit int) ([]Message, error)
	// DownloadMedia stores the media payload into dir and returns the
	// path of the written file.
	DownloadMedia(ctx context.Context, media *Media, dir string) (string, error)
}

// MediaProcessor turns a message attachment into a publicly reachable URL.
// An empty URL with a nil error means the attachment was skipped.
type MediaProcessor interface {
	Process(ctx context.Context, msg Message) (string, error)
}

// RunResult summarizes one channel run.
type RunResult struct {
	ChannelName      string
	PostsFound       int
	PostsNew         int
	PostsDuplicate   int
	ImagesDownloaded int
	Error            string
}

var (
	// ErrChannelPrivate is returned by sources when the channel cannot be
	// read because it is private.
	ErrChannelPrivate = errors.New("channel is private")
	// ErrAccessForbidden is returned by sources when the account lacks
	// permission to read the channel.
	ErrAccessForbidden = errors.New("access to channel forbidden")
)

// UnavailableSource is a MessageSource standing in when no backend is
// configured. Every fetch fails with the wrapped error so runs are
// recorded as failures instead of aborting the process.
type UnavailableSource struct {
	Err error
}

var _ MessageSource = (*UnavailableSource)(nil)

func (s *UnavailableSource) RecentMessages(_ context.Context, _ string, _ int) ([]Message, error) {
	return nil, s.Err
}

func (s *UnavailableSource) DownloadMedia(_ context.Context, _ *Media, _ string) (string, error) {
	return "", s.Err
}
