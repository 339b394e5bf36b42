package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Mode is the kind of word cloud a publication was made for.
type Mode string

const (
	ModeHot  Mode = "hot"  // all comments of a hot thread
	ModeUser Mode = "user" // one user's comment history
)

// Publication is one posted word cloud.
type Publication struct {
	ID           string    `json:"id"`
	ItemID       string    `json:"item_id"` // thread id, or username in ModeUser
	Mode         Mode      `json:"mode"`
	Target       string    `json:"target"` // fullname replied to
	ImageURL     string    `json:"image_url"`
	ReplyID      string    `json:"reply_id"`
	CommentCount int       `json:"comment_count"`
	SkippedCount int       `json:"skipped_count"`
	CreatedAt    time.Time `json:"created_at"`
}
