package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iconidentify/tunegrab/internal/service"
	"github.com/iconidentify/tunegrab/internal/worker"
)

func TestHealthHandler_Index(t *testing.T) {
	h := NewHealthHandler(service.NewStatsService(), nil, nil, t.TempDir())

	w := httptest.NewRecorder()
	h.Index(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK || w.Body.String() != "Bot is running!" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.Index(w, httptest.NewRequest(http.MethodHead, "/", nil))
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("HEAD got %d %q", w.Code, w.Body.String())
	}
}

func TestHealthHandler_Live(t *testing.T) {
	h := NewHealthHandler(service.NewStatsService(), nil, nil, t.TempDir())

	w := httptest.NewRecorder()
	h.Live(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Timestamp == "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHealthHandler_Ready_Success(t *testing.T) {
	pool := fakePool{stats: worker.Stats{Workers: 4, Queued: 2}}
	h := NewHealthHandler(service.NewStatsService(), pool, map[string]Checker{
		"yt-dlp": fakeChecker{},
		"ffmpeg": fakeChecker{},
	}, t.TempDir())

	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp HealthResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Checks["yt-dlp"] != "ok" || resp.Checks["ffmpeg"] != "ok" {
		t.Errorf("checks = %v", resp.Checks)
	}
	if resp.Workers == nil || resp.Workers.Workers != 4 || resp.Workers.Queued != 2 {
		t.Errorf("workers = %+v", resp.Workers)
	}
}

func TestHealthHandler_Ready_Failure(t *testing.T) {
	h := NewHealthHandler(service.NewStatsService(), nil, map[string]Checker{
		"yt-dlp": fakeChecker{err: errors.New("executable file not found")},
	}, t.TempDir())

	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var resp HealthResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Status != "error" || resp.Checks["yt-dlp"] != "executable file not found" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHealthHandler_Stats(t *testing.T) {
	stats := service.NewStatsService()
	stats.RecordDelivery()
	dir := t.TempDir()
	h := NewHealthHandler(stats, fakePool{stats: worker.Stats{Processed: 3}}, nil, dir)

	w := httptest.NewRecorder()
	h.Stats(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp SystemStats
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Downloads != 1 {
		t.Errorf("downloads = %d, want 1", resp.Downloads)
	}
	if resp.Workers == nil || resp.Workers.Processed != 3 {
		t.Errorf("workers = %+v", resp.Workers)
	}
	if resp.DownloadPath != dir || resp.NumCPU == 0 || resp.UptimeHuman == "" {
		t.Errorf("resp = %+v", resp)
	}
}
