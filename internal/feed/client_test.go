package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newTestServer serves a token endpoint plus the given API routes and returns
// a logged-in client pointed at it.
func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) *Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		if r.Form.Get("grant_type") != "password" || r.Form.Get("password") != "hunter2" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusUnauthorized)
			return
		}
		if ua := r.Header.Get("User-Agent"); ua != "test-agent/1.0" {
			t.Errorf("token request User-Agent = %q", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`))
	})
	for pattern, h := range routes {
		h := h
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
				t.Errorf("%s Authorization = %q", r.URL.Path, got)
			}
			if ua := r.Header.Get("User-Agent"); ua != "test-agent/1.0" {
				t.Errorf("%s User-Agent = %q", r.URL.Path, ua)
			}
			w.Header().Set("Content-Type", "application/json")
			h(w, r)
		})
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(Config{
		UserAgent:         "test-agent/1.0",
		ClientID:          "id",
		ClientSecret:      "secret",
		Username:          "cloudbot",
		Password:          "hunter2",
		BaseURL:           srv.URL,
		TokenURL:          srv.URL + "/api/v1/access_token",
		RequestsPerMinute: 600000,
	})
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	return c
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	c := New(Config{Username: "cloudbot", Password: "wrong", BaseURL: srv.URL, TokenURL: srv.URL})
	err := c.Login(context.Background())

	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("Login error = %v, want *AuthError", err)
	}
	if ae.Username != "cloudbot" {
		t.Errorf("Username = %q", ae.Username)
	}
}

func TestNotLoggedIn(t *testing.T) {
	c := New(Config{})
	_, err := c.ListHot(context.Background(), "all", 10)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
}

func TestListHot(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		"/r/all/hot": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("limit"); got != "25" {
				t.Errorf("limit = %q, want 25", got)
			}
			w.Write([]byte(`{"kind":"Listing","data":{"after":"t3_c","children":[
				{"kind":"t3","data":{"id":"a","name":"t3_a","title":"First","subreddit":"pics","num_comments":10,"created_utc":1700000000}},
				{"kind":"t3","data":{"id":"b","name":"t3_b","title":"Second","subreddit":"news","num_comments":3,"created_utc":1700000100.0}}
			]}}`))
		},
	})

	items, err := c.ListHot(context.Background(), "all", 25)
	if err != nil {
		t.Fatalf("ListHot: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].ID != "a" || items[0].Name != "t3_a" || items[0].NumComments != 10 {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].Subreddit != "news" || items[1].CreatedAt.Unix() != 1700000100 {
		t.Errorf("items[1] = %+v", items[1])
	}
}

func TestListHot_ServerError(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		"/r/all/hot": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "busy", http.StatusServiceUnavailable)
		},
	})

	_, err := c.ListHot(context.Background(), "all", 25)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fe.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", fe.StatusCode)
	}
}

const threadJSON = `[
{"kind":"Listing","data":{"children":[{"kind":"t3","data":{"id":"abc","name":"t3_abc","title":"Thread"}}]}},
{"kind":"Listing","data":{"children":[
	{"kind":"t1","data":{"id":"c1","name":"t1_c1","author":"alice","body":"hi","body_html":"&lt;p&gt;hi&lt;/p&gt;","replies":
		{"kind":"Listing","data":{"children":[
			{"kind":"t1","data":{"id":"c2","name":"t1_c2","author":"bob","body":"yo","body_html":"&lt;p&gt;yo&lt;/p&gt;","replies":""}},
			{"kind":"more","data":{"id":"m1","name":"t1_m1","count":4,"children":["x","y"]}}
		]}}}},
	{"kind":"t1","data":{"id":"c3","name":"t1_c3","author":"carol","body":"hey","body_html":"&lt;p&gt;hey&lt;/p&gt;","replies":""}}
]}}
]`

func TestGetItem(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		"/comments/abc": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(threadJSON))
		},
	})

	item, err := c.GetItem(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.Name != "t3_abc" {
		t.Errorf("Name = %q", item.Name)
	}
	if len(item.Comments) != 2 {
		t.Fatalf("got %d top-level comments, want 2", len(item.Comments))
	}
	first := item.Comments[0]
	if first.Author != "alice" || first.BodyHTML != "&lt;p&gt;hi&lt;/p&gt;" {
		t.Errorf("first = %+v", first)
	}
	if len(first.Replies) != 2 {
		t.Fatalf("got %d replies, want 2", len(first.Replies))
	}
	if first.Replies[1].Kind != KindMore {
		t.Errorf("Replies[1].Kind = %v, want more", first.Replies[1].Kind)
	}
	if len(item.Comments[1].Replies) != 0 {
		t.Errorf("empty replies decoded as %+v", item.Comments[1].Replies)
	}
}

func TestGetItem_MalformedResponse(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		"/comments/abc": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"kind":"Listing","data":{"children":[]}}]`))
		},
	})

	_, err := c.GetItem(context.Background(), "abc")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
}

func TestGetUserComments_Paginates(t *testing.T) {
	calls := 0
	c := newTestServer(t, map[string]http.HandlerFunc{
		"/user/alice/comments": func(w http.ResponseWriter, r *http.Request) {
			calls++
			switch r.URL.Query().Get("after") {
			case "":
				w.Write([]byte(`{"kind":"Listing","data":{"after":"t1_b","children":[
					{"kind":"t1","data":{"id":"a","name":"t1_a","body":"one","body_html":"&lt;p&gt;one&lt;/p&gt;"}},
					{"kind":"t1","data":{"id":"b","name":"t1_b","body":"two","body_html":"&lt;p&gt;two&lt;/p&gt;"}}
				]}}`))
			case "t1_b":
				w.Write([]byte(`{"kind":"Listing","data":{"after":null,"children":[
					{"kind":"t1","data":{"id":"c","name":"t1_c","body":"three","body_html":"&lt;p&gt;three&lt;/p&gt;"}}
				]}}`))
			default:
				t.Errorf("unexpected after = %q", r.URL.Query().Get("after"))
			}
		},
	})

	comments, err := c.GetUserComments(context.Background(), "alice", 0)
	if err != nil {
		t.Fatalf("GetUserComments: %v", err)
	}
	if len(comments) != 3 {
		t.Fatalf("got %d comments, want 3", len(comments))
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if comments[2].Body != "three" {
		t.Errorf("comments[2].Body = %q", comments[2].Body)
	}
}

func TestGetUserComments_Limit(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		"/user/alice/comments": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("limit"); got != "1" {
				t.Errorf("limit = %q, want 1", got)
			}
			w.Write([]byte(`{"kind":"Listing","data":{"after":"t1_a","children":[
				{"kind":"t1","data":{"id":"a","name":"t1_a","body":"one"}}
			]}}`))
		},
	})

	comments, err := c.GetUserComments(context.Background(), "alice", 1)
	if err != nil {
		t.Fatalf("GetUserComments: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("got %d comments, want 1", len(comments))
	}
}

func TestPostReply(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		"/api/comment": func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("method = %s, want POST", r.Method)
			}
			if err := r.ParseForm(); err != nil {
				t.Errorf("ParseForm: %v", err)
				return
			}
			if r.PostForm.Get("thing_id") != "t3_abc" {
				t.Errorf("thing_id = %q", r.PostForm.Get("thing_id"))
			}
			if !strings.HasPrefix(r.PostForm.Get("text"), "[Word cloud") {
				t.Errorf("text = %q", r.PostForm.Get("text"))
			}
			w.Write([]byte(`{"json":{"errors":[],"data":{"things":[{"kind":"t1","data":{"id":"new","name":"t1_new"}}]}}}`))
		},
	})

	id, err := c.PostReply(context.Background(), "t3_abc", "[Word cloud out of all the comments.](https://i.example/x.png)")
	if err != nil {
		t.Fatalf("PostReply: %v", err)
	}
	if id != "t1_new" {
		t.Errorf("id = %q, want t1_new", id)
	}
}

func TestPostReply_APIErrors(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		"/api/comment": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"json":{"errors":[["RATELIMIT","you are doing that too much","ratelimit"]]}}`))
		},
	})

	_, err := c.PostReply(context.Background(), "t3_abc", "text")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if !strings.Contains(err.Error(), "RATELIMIT") {
		t.Errorf("error = %v, want it to mention RATELIMIT", err)
	}
}

func TestResolveComment(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		"/r/pics/comments/abc/some_title/def": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[
				{"kind":"Listing","data":{"children":[{"kind":"t3","data":{"id":"abc","name":"t3_abc"}}]}},
				{"kind":"Listing","data":{"children":[{"kind":"t1","data":{"id":"def","name":"t1_def","body":"x"}}]}}
			]`))
		},
	})

	name, err := c.ResolveComment(context.Background(), "https://www.reddit.com/r/pics/comments/abc/some_title/def/")
	if err != nil {
		t.Fatalf("ResolveComment: %v", err)
	}
	if name != "t1_def" {
		t.Errorf("name = %q, want t1_def", name)
	}
}

func TestResolveComment_NotAComment(t *testing.T) {
	c := New(Config{})
	for _, link := range []string{
		"https://www.reddit.com/r/pics/comments/abc/some_title/",
		"https://www.reddit.com/r/pics/",
		"not a url at all",
	} {
		if _, err := c.ResolveComment(context.Background(), link); err == nil {
			t.Errorf("ResolveComment(%q) = nil error, want error", link)
		}
	}
}
