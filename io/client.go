// Package io moves city models between the viewer, the model server and
// files on disk.
package io

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	stdio "io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"city-viewer/core"
)

const (
	uploadPath = "/measur3d/uploadCityModel"
	fetchPath  = "/measur3d/getCityModel"

	// DefaultMaxBody caps a response body. City models run to hundreds of MB.
	DefaultMaxBody = 1 << 30
	errBodyLimit   = 200
)

// Client talks to the city model server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *zap.Logger
	MaxBody int64 // bytes; a longer response fails
}

// NewClient creates a client for cfg.BaseURL with cfg.Timeout per request.
func NewClient(cfg core.ServerConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  logger.Named("client"),
		MaxBody: DefaultMaxBody,
	}
}

type uploadRequest struct {
	JSON  json.RawMessage `json:"json"`
	CmUID string          `json:"cm_uid"`
}

type uploadResponse struct {
	Success string `json:"success"`
}

// UploadCityModel posts the raw CityJSON document under modelID and
// returns the server's success message.
func (c *Client) UploadCityModel(ctx context.Context, content []byte, modelID string) (string, error) {
	if !json.Valid(content) {
		return "", fmt.Errorf("upload %q: payload is not valid JSON", modelID)
	}
	body, err := json.Marshal(uploadRequest{JSON: content, CmUID: modelID})
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", modelID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+uploadPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", modelID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", modelID, err)
	}

	var res uploadResponse
	if len(data) > 0 {
		if err := json.Unmarshal(data, &res); err != nil {
			return "", fmt.Errorf("upload %q: decode response: %w", modelID, err)
		}
	}
	c.Logger.Debug("uploaded", zap.String("model", modelID), zap.Int("bytes", len(content)))
	return res.Success, nil
}

// FetchCityModel downloads the CityJSON document stored under modelID.
func (c *Client) FetchCityModel(ctx context.Context, modelID string) ([]byte, error) {
	u := c.BaseURL + fetchPath + "?" + url.Values{"cm_uid": {modelID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", modelID, err)
	}
	req.Header.Set("Accept", "application/json")

	data, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", modelID, err)
	}
	c.Logger.Debug("fetched", zap.String("model", modelID), zap.Int("bytes", len(data)))
	return data, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("server returned %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limit := c.MaxBody
	if limit <= 0 {
		limit = DefaultMaxBody
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(stdio.LimitReader(resp.Body, limit+1)); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := truncate(strings.TrimSpace(buf.String()), errBodyLimit)
		return nil, &StatusError{Code: resp.StatusCode, Body: body}
	}
	if int64(buf.Len()) > limit {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return buf.Bytes(), nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
