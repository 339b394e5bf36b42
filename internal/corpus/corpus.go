// Package corpus concatenates the plain text of comment trees and lists.
package corpus

import (
	"log/slog"
	"strings"

	"github.com/kalambet/cloudbot/internal/feed"
	"github.com/kalambet/cloudbot/internal/textextract"
)

// Result is the aggregated text of a set of comments.
type Result struct {
	Text          string // one line per processed comment, in traversal order
	Processed     int
	Skipped       int
	Errors        []error
	MarkdownBytes int // sum of len(Body) over processed comments
}

// Empty reports whether no comment contributed text.
func (r Result) Empty() bool { return r.Processed == 0 }

// Aggregator builds corpora. The zero value is not usable; use New.
type Aggregator struct {
	extract func(string) (string, error)
	logger  *slog.Logger
}

// New creates an Aggregator that decodes bodies with textextract.ExtractRendered.
func New() *Aggregator {
	return &Aggregator{
		extract: textextract.ExtractRendered,
		logger:  slog.Default(),
	}
}

// FromTree walks nodes depth-first, parents before their replies.
func (a *Aggregator) FromTree(nodes []feed.CommentNode) Result {
	var b builder
	var walk func([]feed.CommentNode)
	walk = func(ns []feed.CommentNode) {
		for i := range ns {
			a.add(&b, &ns[i])
			walk(ns[i].Replies)
		}
	}
	walk(nodes)
	return b.result()
}

// FromList aggregates nodes in order and ignores their replies.
func (a *Aggregator) FromList(nodes []feed.CommentNode) Result {
	var b builder
	for i := range nodes {
		a.add(&b, &nodes[i])
	}
	return b.result()
}

type builder struct {
	sb  strings.Builder
	res Result
}

func (b *builder) result() Result {
	b.res.Text = b.sb.String()
	return b.res
}

func (a *Aggregator) add(b *builder, n *feed.CommentNode) {
	if n.Kind == feed.KindMore || n.BodyHTML == "" {
		return
	}
	text, err := a.extract(n.BodyHTML)
	if err != nil {
		a.logger.Warn("skipping comment", "comment_id", n.ID, "error", err)
		b.res.Skipped++
		b.res.Errors = append(b.res.Errors, err)
		return
	}
	b.sb.WriteString(text)
	b.sb.WriteByte('\n')
	b.res.Processed++
	b.res.MarkdownBytes += len(n.Body)
}
