package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_GetDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/history", r.URL.Path)
		assert.Equal(t, "failed", r.URL.Query().Get("status"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count":2}`))
	}))
	defer srv.Close()

	var out struct {
		Count int `json:"count"`
	}
	err := newAPIClient(srv.URL+"/").get("/api/v1/history", map[string][]string{"status": {"failed"}}, &out)

	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)
}

func TestAPIClient_PostSendsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc123", body["id"])
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"started"}`))
	}))
	defer srv.Close()

	var out struct {
		Status string `json:"status"`
	}
	require.NoError(t, newAPIClient(srv.URL).post("/api/v1/downloads", map[string]string{"id": "abc123"}, &out))
	assert.Equal(t, "started", out.Status)
}

func TestAPIClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"track not downloaded"}`))
	}))
	defer srv.Close()

	err := newAPIClient(srv.URL).delete("/api/v1/library/abc123", nil)

	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "track not downloaded", apiErr.Message)
}

func TestAPIClient_PlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := newAPIClient(srv.URL).get("/health", nil, nil)

	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestWaitForDownload_StopsOnTerminalRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/downloads/abc123":
			w.Write([]byte(`{"id":"abc123","fraction":1,"completed":true}`))
		case "/api/v1/downloads/xyz999":
			w.Write([]byte(`{"id":"xyz999","error":"retries exhausted"}`))
		case "/api/v1/library/abc123":
			w.Write([]byte(`{"id":"abc123","downloaded":true,"path":"/music/Song - Band.m4a"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	client := newAPIClient(srv.URL)

	assert.NoError(t, waitForDownload(client, "abc123"))

	err := waitForDownload(client, "xyz999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries exhausted")
}
