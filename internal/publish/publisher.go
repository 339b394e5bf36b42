// Package publish renders a corpus, uploads the image and replies with a link.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/cloudbot/internal/corpus"
	"github.com/kalambet/cloudbot/internal/feed"
	"github.com/kalambet/cloudbot/internal/render"
	"github.com/kalambet/cloudbot/internal/storage"
)

// ErrEmptyCorpus is returned when there is no comment text to draw.
var ErrEmptyCorpus = errors.New("no comment text to publish")

// Bytes of markdown above which a user is told to write a book.
const bookThreshold = 1_000_000

// Renderer draws a word cloud PNG.
type Renderer interface {
	Render(text string, opts render.Options) ([]byte, error)
}

// Uploader publishes an image file and returns its public URL.
type Uploader interface {
	UploadFile(ctx context.Context, path string) (string, error)
}

// Feed is the part of the feed client the publisher talks to.
type Feed interface {
	PostReply(ctx context.Context, parent, text string) (string, error)
	GetUserComments(ctx context.Context, username string, limit int) ([]feed.CommentNode, error)
}

// History records successful publications.
type History interface {
	SavePublication(p storage.Publication) error
}

// Options configures a Publisher.
type Options struct {
	FontsDir  string
	Render    render.Options // FontPath is filled in per publication
	Signature string
	TempDir   string // where images are written before upload; defaults to os.TempDir()
}

// Publisher turns corpora into posted replies.
type Publisher struct {
	renderer Renderer
	uploader Uploader
	feed     Feed
	history  History
	agg      *corpus.Aggregator
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Publisher. history may be nil to skip recording.
func New(r Renderer, u Uploader, f Feed, history History, opts Options) *Publisher {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &Publisher{
		renderer: r,
		uploader: u,
		feed:     f,
		history:  history,
		agg:      corpus.New(),
		opts:     opts,
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// PublishThread replies to a thread with a word cloud of all its comments.
func (p *Publisher) PublishThread(ctx context.Context, item feed.Item, c corpus.Result) (storage.Publication, error) {
	if c.Empty() {
		return storage.Publication{}, ErrEmptyCorpus
	}
	font, err := render.RandomFont(p.opts.FontsDir)
	if err != nil {
		return storage.Publication{}, fmt.Errorf("picking font: %w", err)
	}

	link, err := p.renderAndUpload(ctx, c.Text, font)
	if err != nil {
		return storage.Publication{}, err
	}

	text := p.withSignature(fmt.Sprintf("[Word cloud out of all the comments.](%s)", link))
	replyID, err := p.feed.PostReply(ctx, item.Name, text)
	if err != nil {
		return storage.Publication{}, fmt.Errorf("posting reply: %w", err)
	}

	return p.record(storage.Publication{
		ItemID:       item.ID,
		Mode:         storage.ModeHot,
		Target:       item.Name,
		ImageURL:     link,
		ReplyID:      replyID,
		CommentCount: c.Processed,
		SkippedCount: c.Skipped,
	}), nil
}

// PublishUserHistory replies to the comment replyTo (a fullname) with a word
// cloud of username's recent comments. An empty font picks one at random.
func (p *Publisher) PublishUserHistory(ctx context.Context, username, replyTo, font string) (storage.Publication, error) {
	comments, err := p.feed.GetUserComments(ctx, username, feed.UserHistoryCap)
	if err != nil {
		return storage.Publication{}, fmt.Errorf("fetching comments of %s: %w", username, err)
	}
	p.logger.Info("fetched user history", "username", username, "comments", len(comments))

	c := p.agg.FromList(comments)
	if c.Empty() {
		return storage.Publication{}, ErrEmptyCorpus
	}

	if font == "" {
		if font, err = render.RandomFont(p.opts.FontsDir); err != nil {
			return storage.Publication{}, fmt.Errorf("picking font: %w", err)
		}
	}

	link, err := p.renderAndUpload(ctx, c.Text, font)
	if err != nil {
		return storage.Publication{}, err
	}

	replyID, err := p.feed.PostReply(ctx, replyTo, p.withSignature(UserHistoryMessage(len(comments), c.MarkdownBytes, link)))
	if err != nil {
		return storage.Publication{}, fmt.Errorf("posting reply: %w", err)
	}

	return p.record(storage.Publication{
		ItemID:       username,
		Mode:         storage.ModeUser,
		Target:       replyTo,
		ImageURL:     link,
		ReplyID:      replyID,
		CommentCount: c.Processed,
		SkippedCount: c.Skipped,
	}), nil
}

// UserHistoryMessage builds the reply body (without signature) for a user history cloud.
func UserHistoryMessage(comments, markdownBytes int, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Word cloud for %d comments of yours.](%s)", comments, link)
	fmt.Fprintf(&b, " That's %.2f KB of Markdown, by the way.", float64(markdownBytes)/1000)
	if markdownBytes > bookThreshold {
		b.WriteString(" You should write a book.")
	}
	if comments == feed.UserHistoryCap {
		fmt.Fprintf(&b, " (I cannot get more than %d comments of yours.)", feed.UserHistoryCap)
	}
	return b.String()
}

func (p *Publisher) withSignature(text string) string {
	if p.opts.Signature == "" {
		return text
	}
	return text + "\n\n" + p.opts.Signature
}

// renderAndUpload writes the PNG to a uniquely named temp file, uploads it
// and removes the file whatever the outcome.
func (p *Publisher) renderAndUpload(ctx context.Context, text, font string) (string, error) {
	opts := p.opts.Render
	opts.FontPath = font
	img, err := p.renderer.Render(text, opts)
	if err != nil {
		return "", fmt.Errorf("rendering: %w", err)
	}

	path := filepath.Join(p.opts.TempDir, "cloud-"+uuid.New().String()+".png")
	if err := os.WriteFile(path, img, 0o600); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			p.logger.Warn("failed to remove temp image", "path", path, "error", err)
		}
	}()

	link, err := p.uploader.UploadFile(ctx, path)
	if err != nil {
		return "", fmt.Errorf("uploading: %w", err)
	}
	p.logger.Debug("image uploaded", "font", filepath.Base(font), "link", link)
	return link, nil
}

// record stamps and saves pub. The reply is already public, so a history
// failure is logged rather than returned.
func (p *Publisher) record(pub storage.Publication) storage.Publication {
	pub.ID = uuid.New().String()
	pub.CreatedAt = p.now().UTC()
	if p.history != nil {
		if err := p.history.SavePublication(pub); err != nil {
			p.logger.Error("failed to record publication", "item_id", pub.ItemID, "error", err)
		}
	}
	return pub
}
