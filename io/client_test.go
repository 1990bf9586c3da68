package io

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"city-viewer/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(core.ServerConfig{BaseURL: srv.URL + "/", Timeout: 5 * time.Second}, zaptest.NewLogger(t))
}

func TestUploadCityModel(t *testing.T) {
	var got map[string]json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, uploadPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":"City model stored."}`))
	})

	msg, err := c.UploadCityModel(context.Background(), []byte(`{"type":"CityJSON"}`), "delft")
	require.NoError(t, err)
	assert.Equal(t, "City model stored.", msg)
	assert.JSONEq(t, `{"type":"CityJSON"}`, string(got["json"]))
	assert.JSONEq(t, `"delft"`, string(got["cm_uid"]))
}

func TestUploadRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "disk full", http.StatusInternalServerError)
	})

	_, err := c.UploadCityModel(context.Background(), []byte(`{}`), "m")
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "disk full", se.Body)
}

func TestStatusBodyKeepsRunesWhole(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("€", 100), http.StatusBadGateway)
	})

	_, err := c.FetchCityModel(context.Background(), "m")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.True(t, utf8.ValidString(se.Body))
	assert.Len(t, se.Body, 198, "cut back to the last whole rune before 200 bytes")
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Query().Get("cm_uid")))
	})
	c.MaxBody = 16

	data, err := c.FetchCityModel(context.Background(), strings.Repeat("a", 16))
	require.NoError(t, err)
	assert.Len(t, data, 16)

	_, err = c.FetchCityModel(context.Background(), strings.Repeat("a", 17))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 16 bytes")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "ab", truncate("abcd", 2))
	assert.Equal(t, "a", truncate("aé", 2))
	assert.Equal(t, "", truncate("€", 2))
}

func TestUploadInvalidJSON(t *testing.T) {
	called := false
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) { called = true })

	_, err := c.UploadCityModel(context.Background(), []byte(`not json`), "m")
	assert.Error(t, err)
	assert.False(t, called)
}

func TestFetchCityModel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, fetchPath, r.URL.Path)
		if r.URL.Query().Get("cm_uid") != "a b" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"type":"CityJSON"}`))
	})

	data, err := c.FetchCityModel(context.Background(), "a b")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"CityJSON"}`, string(data))

	_, err = c.FetchCityModel(context.Background(), "missing")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestClientHonoursContext(t *testing.T) {
	block := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchCityModel(ctx, "m")
	assert.ErrorIs(t, err, context.Canceled)
}
