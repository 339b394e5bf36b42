package feed

import (
	"fmt"
	"time"
)

// NodeKind distinguishes real comments from placeholder nodes in a tree.
type NodeKind int

const (
	// KindComment is an actual reply carrying a body.
	KindComment NodeKind = iota
	// KindMore is a "load more comments" stub with no body.
	KindMore
)

func (k NodeKind) String() string {
	switch k {
	case KindComment:
		return "comment"
	case KindMore:
		return "more"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// CommentNode is one node of a comment tree, or one entry of a flat comment list.
type CommentNode struct {
	ID       string
	Name     string // fullname, e.g. "t1_abc"
	Kind     NodeKind
	Author   string
	Body     string // markdown source
	BodyHTML string // rendered markup, HTML-escaped by the feed
	Replies  []CommentNode
}

// Item is a top-level feed entry (a thread).
type Item struct {
	ID          string
	Name        string // fullname, e.g. "t3_abc"
	Title       string
	Subreddit   string
	Permalink   string
	CreatedAt   time.Time
	NumComments int
	Comments    []CommentNode // populated by GetItem only
}
