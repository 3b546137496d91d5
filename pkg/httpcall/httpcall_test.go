package httpcall

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Do_DecodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Token"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"email": "ann@example.com"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "crm-1", "score": 7}`))
	}))
	defer server.Close()

	resp, err := NewClient(nil).Do(context.Background(), Request{
		Method:  "post",
		URL:     server.URL,
		Headers: map[string]string{"X-Token": "secret"},
		Body:    `{"email": "ann@example.com"}`,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"id": "crm-1", "score": float64(7)}, resp.Body)
}

func TestClient_Do_PlainTextBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	}))
	defer server.Close()

	resp, err := NewClient(nil).Do(context.Background(), Request{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Body)
}

func TestClient_Do_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	_, err := NewClient(nil).Do(context.Background(), Request{URL: server.URL})
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Equal(t, "HTTP 502: upstream down", err.Error())
}

func TestClient_Do_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	_, err := NewClient(nil).Do(context.Background(), Request{URL: server.URL, Timeout: 20 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"to": "55"}`, string(body))

		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	resp, err := NewClient(nil).PostJSON(context.Background(), server.URL, nil, map[string]string{"to": "55"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, resp.Body)
}
