// Package receipts uploads receipt photos to an image host and returns a
// link to the hosted image.
package receipts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultEndpoint = "https://api.imgbb.com/1/upload"
	// MaxUploadBytes bounds a single receipt image.
	MaxUploadBytes = 16 << 20
)

var (
	ErrNotConfigured   = errors.New("image host not configured")
	ErrUnsupportedType = errors.New("unsupported receipt type (png, jpg, jpeg)")
	ErrTooLarge        = errors.New("receipt too large")
)

// Uploader stores a receipt image and returns a viewer link.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// AllowedFile reports whether filename has an accepted image extension.
func AllowedFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png", ".jpg", ".jpeg":
		return true
	default:
		return false
	}
}

// ImgBB uploads to the ImgBB API.
type ImgBB struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

var _ Uploader = (*ImgBB)(nil)

// NewImgBB creates a client. An empty endpoint uses DefaultEndpoint and a nil
// client gets a 30 second timeout.
func NewImgBB(apiKey, endpoint string, client *http.Client) *ImgBB {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ImgBB{apiKey: strings.TrimSpace(apiKey), endpoint: endpoint, client: client}
}

type imgbbResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		URL       string `json:"url"`
		URLViewer string `json:"url_viewer"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload posts the image as multipart form data and returns the viewer URL.
func (c *ImgBB) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	if !AllowedFile(filename) {
		return "", ErrUnsupportedType
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("read receipt: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return "", ErrTooLarge
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("key", c.apiKey); err != nil {
		return "", fmt.Errorf("write key field: %w", err)
	}
	fw, err := mw.CreateFormFile("image", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("create image field: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload receipt: %w", err)
	}
	defer resp.Body.Close()

	var out imgbbResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upload response (status %d): %w", resp.StatusCode, err)
	}
	if !out.Success {
		msg := out.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("image host rejected upload: %s", msg)
	}
	link := out.Data.URLViewer
	if link == "" {
		link = out.Data.URL
	}
	if link == "" {
		return "", errors.New("image host returned no link")
	}
	return link, nil
}
