package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnguyen/tasktick/internal/model"
)

func testTask() model.Task {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return model.Task{
		ID:        "t-1",
		Title:     "remote me",
		Priority:  model.PriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
		Dirty:     true,
		IsNew:     true,
		SyncError: "stale failure",
	}
}

func TestConfigured(t *testing.T) {
	assert.False(t, NewClient("", "").Configured())
	assert.False(t, NewClient("https://api.example.com", "").Configured())
	assert.True(t, NewClient("https://api.example.com", "tok").Configured())
}

func TestCreateStripsSyncMetadata(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(received)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	stored, err := c.Create(context.Background(), "owner-1", testTask())
	require.NoError(t, err)

	assert.NotContains(t, received, "dirty")
	assert.NotContains(t, received, "is_new")
	assert.NotContains(t, received, "deleted")
	assert.NotContains(t, received, "sync_error")
	assert.Equal(t, "owner-1", received["owner_id"])

	assert.Equal(t, "t-1", stored.ID)
	assert.False(t, stored.Dirty, "wire round trip comes back clean")
	assert.Empty(t, stored.SyncError)
}

func TestFetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "owner-1", r.URL.Query().Get("owner_id"))
		w.Write([]byte(`{"tasks": [
			{"id": "a", "title": "A", "priority": "high"},
			{"id": "b", "title": "B", "priority": "bogus"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	tasks, err := c.FetchAll(context.Background(), "owner-1")
	require.NoError(t, err)

	require.Len(t, tasks, 2)
	assert.Equal(t, model.PriorityHigh, tasks[0].Priority)
	assert.Equal(t, model.PriorityNone, tasks[1].Priority,
		"unknown wire priorities normalize instead of failing")
}

func TestRetryOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"tasks": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	c.maxRetries = 3

	_, err := c.FetchAll(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestUnauthorizedIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "expired")
	_, err := c.FetchAll(context.Background(), "owner-1")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestDeleteTreatsNotFoundAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	assert.NoError(t, c.Delete(context.Background(), "gone"))
}

func TestClientErrorDoesNotRetry(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "title required"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.Update(context.Background(), testTask())
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "4xx responses are not retried")
	assert.Contains(t, err.Error(), "400")
}
