// Package feed is a small Reddit API client covering what the bot needs:
// hot listings, full comment trees, user histories and posting replies.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://oauth.reddit.com"
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"

	// UserHistoryCap is the most comments the API returns for one user.
	UserHistoryCap = 1000

	defaultRequestsPerMinute = 60
	maxPageSize              = 100
	maxThreadComments        = 500
)

// Config describes how to reach and authenticate against the API.
type Config struct {
	UserAgent    string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string

	BaseURL           string       // defaults to DefaultBaseURL
	TokenURL          string       // defaults to DefaultTokenURL
	HTTPClient        *http.Client // base transport; defaults to a 30s-timeout client
	RequestsPerMinute int          // defaults to 60
}

// Client talks to the Reddit API. Call Login before any other method.
type Client struct {
	cfg        Config
	baseURL    string
	base       *http.Client
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a Client from cfg, filling in defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = defaultRequestsPerMinute
	}
	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		base:    base,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		logger:  slog.Default(),
	}
}

// userAgentTransport stamps every request with the configured User-Agent,
// which the API requires for both token and resource requests.
type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

// passwordTokenSource re-runs the password grant whenever a token is needed.
// The grant issues no refresh token, so this is how expired tokens are renewed.
type passwordTokenSource struct {
	ctx      context.Context
	conf     *oauth2.Config
	username string
	password string
}

func (s *passwordTokenSource) Token() (*oauth2.Token, error) {
	return s.conf.PasswordCredentialsToken(s.ctx, s.username, s.password)
}

// Login obtains an access token with the script-app password grant.
// It returns an *AuthError when the credentials are rejected.
func (c *Client) Login(ctx context.Context) error {
	baseTransport := c.base.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	ua := &userAgentTransport{userAgent: c.cfg.UserAgent, base: baseTransport}

	tokenHTTP := &http.Client{Transport: ua, Timeout: c.base.Timeout}
	// The token source outlives this call, so it must not inherit ctx cancellation.
	tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, tokenHTTP)

	conf := &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	src := &passwordTokenSource{ctx: tokenCtx, conf: conf, username: c.cfg.Username, password: c.cfg.Password}

	tok, err := src.Token()
	if err != nil {
		return &AuthError{Username: c.cfg.Username, Err: err}
	}

	c.httpClient = &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(tok, src),
			Base:   ua,
		},
		Timeout: c.base.Timeout,
	}
	c.logger.Info("authenticated with feed", "username", c.cfg.Username)
	return nil
}

// ListHot returns up to limit currently hot threads in scope (a subreddit name,
// "all" for the front of the site).
func (c *Client) ListHot(ctx context.Context, scope string, limit int) ([]Item, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}

	var l listing
	if err := c.getJSON(ctx, "list hot", "/r/"+url.PathEscape(scope)+"/hot", q, &l); err != nil {
		return nil, err
	}
	items, err := itemsFromListing(l)
	if err != nil {
		return nil, &FetchError{Op: "list hot", Err: err}
	}
	return items, nil
}

// GetItem returns a thread with its comment tree. Collapsed branches appear
// as KindMore placeholders.
func (c *Client) GetItem(ctx context.Context, id string) (Item, error) {
	op := "get item " + id
	q := url.Values{"limit": {strconv.Itoa(maxThreadComments)}}

	var pair []listing
	if err := c.getJSON(ctx, op, "/comments/"+url.PathEscape(id), q, &pair); err != nil {
		return Item{}, err
	}
	if len(pair) != 2 {
		return Item{}, &FetchError{Op: op, Err: fmt.Errorf("expected 2 listings, got %d", len(pair))}
	}

	items, err := itemsFromListing(pair[0])
	if err != nil {
		return Item{}, &FetchError{Op: op, Err: err}
	}
	if len(items) == 0 {
		return Item{}, &FetchError{Op: op, Err: errors.New("thread not found")}
	}
	item := items[0]

	comments, err := commentsFromThings(pair[1].Data.Children)
	if err != nil {
		return Item{}, &FetchError{Op: op, Err: err}
	}
	item.Comments = comments
	return item, nil
}

// GetUserComments returns up to limit of a user's most recent comments as a
// flat list, newest first. The API never returns more than UserHistoryCap.
func (c *Client) GetUserComments(ctx context.Context, username string, limit int) ([]CommentNode, error) {
	if limit <= 0 || limit > UserHistoryCap {
		limit = UserHistoryCap
	}
	op := "get comments of " + username
	path := "/user/" + url.PathEscape(username) + "/comments"

	var out []CommentNode
	after := ""
	for len(out) < limit {
		q := url.Values{
			"limit": {strconv.Itoa(min(maxPageSize, limit-len(out)))},
			"sort":  {"new"},
		}
		if after != "" {
			q.Set("after", after)
		}

		var l listing
		if err := c.getJSON(ctx, op, path, q, &l); err != nil {
			return nil, err
		}
		page, err := commentsFromThings(l.Data.Children)
		if err != nil {
			return nil, &FetchError{Op: op, Err: err}
		}
		out = append(out, page...)
		c.logger.Debug("fetched comment page", "username", username, "total", len(out))

		if l.Data.After == "" || len(page) == 0 {
			break
		}
		after = l.Data.After
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// commentResponse is the api_type=json response of POST /api/comment.
type commentResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			Things []thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

// PostReply posts text as a reply to the thing with the given fullname and
// returns the fullname of the new comment.
func (c *Client) PostReply(ctx context.Context, parent, text string) (string, error) {
	op := "reply to " + parent
	form := url.Values{
		"api_type": {"json"},
		"thing_id": {parent},
		"text":     {text},
	}

	var resp commentResponse
	if err := c.postForm(ctx, op, "/api/comment", form, &resp); err != nil {
		return "", err
	}
	if len(resp.JSON.Errors) > 0 {
		return "", &FetchError{Op: op, Err: fmt.Errorf("api errors: %v", resp.JSON.Errors)}
	}
	for _, t := range resp.JSON.Data.Things {
		var d commentData
		if err := json.Unmarshal(t.Data, &d); err == nil && d.Name != "" {
			return d.Name, nil
		}
	}
	return "", &FetchError{Op: op, Err: errors.New("response did not include the new comment")}
}

// ResolveComment returns the fullname of the comment a permalink points at,
// e.g. https://www.reddit.com/r/x/comments/abc/title/def/ -> "t1_def".
func (c *Client) ResolveComment(ctx context.Context, permalink string) (string, error) {
	u, err := url.Parse(permalink)
	if err != nil {
		return "", fmt.Errorf("parsing permalink: %w", err)
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	idx := -1
	for i, s := range segs {
		if s == "comments" {
			idx = i
			break
		}
	}
	// .../comments/<thread>/<slug>/<comment>
	if idx < 0 || len(segs) < idx+4 || segs[idx+3] == "" {
		return "", fmt.Errorf("permalink %q does not point at a comment", permalink)
	}

	op := "resolve " + permalink
	var pair []listing
	q := url.Values{"limit": {"1"}}
	if err := c.getJSON(ctx, op, "/"+strings.Join(segs, "/"), q, &pair); err != nil {
		return "", err
	}
	if len(pair) != 2 {
		return "", &FetchError{Op: op, Err: fmt.Errorf("expected 2 listings, got %d", len(pair))}
	}
	comments, err := commentsFromThings(pair[1].Data.Children)
	if err != nil {
		return "", &FetchError{Op: op, Err: err}
	}
	for _, n := range comments {
		if n.Kind == KindComment && n.Name != "" {
			return n.Name, nil
		}
	}
	return "", fmt.Errorf("no comment found at %q", permalink)
}

func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, v any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	return c.do(req, op, v)
}

func (c *Client) postForm(ctx context.Context, op, path string, form url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, op, v)
}

func (c *Client) do(req *http.Request, op string, v any) error {
	if c.httpClient == nil {
		return &FetchError{Op: op, Err: errors.New("client is not logged in")}
	}
	if err := c.limiter.Wait(req.Context()); err != nil {
		return &FetchError{Op: op, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &FetchError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body)))}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
