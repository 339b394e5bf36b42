// Package imghost uploads rendered images to Imgur.
package imghost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.imgur.com"

// Client uploads images anonymously with an application client id.
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client. baseURL may be empty to use DefaultBaseURL.
func New(baseURL, clientID string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		clientID:   clientID,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
	}
}

type uploadResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		ID    string          `json:"id"`
		Link  string          `json:"link"`
		Error json.RawMessage `json:"error"`
	} `json:"data"`
}

// Upload posts image bytes and returns the public link.
func (c *Client) Upload(ctx context.Context, name string, image []byte) (string, error) {
	if c.clientID == "" {
		return "", errors.New("imgur client id is not configured")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", name)
	if err != nil {
		return "", fmt.Errorf("creating form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	if err := mw.WriteField("type", "file"); err != nil {
		return "", fmt.Errorf("writing form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/3/image", &body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Client-ID "+c.clientID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("imgur returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if !out.Success || out.Data.Link == "" {
		return "", fmt.Errorf("imgur rejected upload: %s", out.Data.Error)
	}

	c.logger.Debug("uploaded image", "id", out.Data.ID, "link", out.Data.Link, "bytes", len(image))
	return out.Data.Link, nil
}

// UploadFile uploads the image at path.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	return c.Upload(ctx, filepath.Base(path), data)
}
