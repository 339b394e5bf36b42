package feed

import (
	"encoding/json"
	"fmt"
	"time"
)

// thing mirrors the {"kind": ..., "data": ...} envelope used by every API object.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// listing mirrors a paginated "Listing" object.
type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type linkData struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	CreatedUTC  float64 `json:"created_utc"`
	NumComments int     `json:"num_comments"`
}

type commentData struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Author   string          `json:"author"`
	Body     string          `json:"body"`
	BodyHTML string          `json:"body_html"`
	Replies  json.RawMessage `json:"replies"` // "" when empty, a listing otherwise
}

type moreData struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Count    int      `json:"count"`
	Children []string `json:"children"`
}

const (
	kindLink    = "t3"
	kindComment = "t1"
	kindMore    = "more"
)

func (d linkData) item() Item {
	return Item{
		ID:          d.ID,
		Name:        d.Name,
		Title:       d.Title,
		Subreddit:   d.Subreddit,
		Permalink:   d.Permalink,
		CreatedAt:   time.Unix(int64(d.CreatedUTC), 0).UTC(),
		NumComments: d.NumComments,
	}
}

func itemsFromListing(l listing) ([]Item, error) {
	items := make([]Item, 0, len(l.Data.Children))
	for _, c := range l.Data.Children {
		if c.Kind != kindLink {
			continue
		}
		var d linkData
		if err := json.Unmarshal(c.Data, &d); err != nil {
			return nil, fmt.Errorf("decoding link: %w", err)
		}
		items = append(items, d.item())
	}
	return items, nil
}

// commentsFromThings converts a comment listing's children into CommentNodes,
// recursing into replies. Unknown kinds are ignored.
func commentsFromThings(children []thing) ([]CommentNode, error) {
	nodes := make([]CommentNode, 0, len(children))
	for _, c := range children {
		switch c.Kind {
		case kindComment:
			var d commentData
			if err := json.Unmarshal(c.Data, &d); err != nil {
				return nil, fmt.Errorf("decoding comment: %w", err)
			}
			node := CommentNode{
				ID:       d.ID,
				Name:     d.Name,
				Kind:     KindComment,
				Author:   d.Author,
				Body:     d.Body,
				BodyHTML: d.BodyHTML,
			}
			if len(d.Replies) > 0 && d.Replies[0] == '{' {
				var sub listing
				if err := json.Unmarshal(d.Replies, &sub); err != nil {
					return nil, fmt.Errorf("decoding replies of %s: %w", d.ID, err)
				}
				replies, err := commentsFromThings(sub.Data.Children)
				if err != nil {
					return nil, err
				}
				node.Replies = replies
			}
			nodes = append(nodes, node)
		case kindMore:
			var d moreData
			if err := json.Unmarshal(c.Data, &d); err != nil {
				return nil, fmt.Errorf("decoding more stub: %w", err)
			}
			nodes = append(nodes, CommentNode{ID: d.ID, Name: d.Name, Kind: KindMore})
		}
	}
	return nodes, nil
}
