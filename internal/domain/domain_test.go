package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// =============================================================================
// Formatting Tests
// =============================================================================

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Believer", "Believer"},
		{"all illegal", `/\:*?"<>|`, "_________"},
		{"mixed", `AC/DC: Back in "Black"?`, "AC_DC_ Back in _Black__"},
		{"unicode kept", "Café · 夜に駆ける", "Café · 夜に駆ける"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.in)
			if got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := SanitizeFilename(got); again != got {
				t.Errorf("not idempotent: %q -> %q", got, again)
			}
			if strings.ContainsAny(got, `/\:*?"<>|`) {
				t.Errorf("result %q still contains illegal characters", got)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{59, "0:59"},
		{60, "1:00"},
		{125, "2:05"},
		{204, "3:24"},
		{3600, "60:00"},
		{-3, "0:00"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.seconds), func(t *testing.T) {
			if got := FormatDuration(tt.seconds); got != tt.want {
				t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestFormatViews(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{2100000000, "2,100,000,000"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatViews(tt.n); got != tt.want {
				t.Errorf("FormatViews(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Entry Tests
// =============================================================================

func TestMediaEntry_Defaults(t *testing.T) {
	var nilEntry *MediaEntry
	empty := &MediaEntry{}

	for name, e := range map[string]*MediaEntry{"nil": nilEntry, "empty": empty} {
		t.Run(name, func(t *testing.T) {
			if got := e.TitleOrUnknown(); got != UnknownValue {
				t.Errorf("TitleOrUnknown() = %q", got)
			}
			if got := e.ArtistOrUnknown(); got != UnknownValue {
				t.Errorf("ArtistOrUnknown() = %q", got)
			}
			if got := e.DurationSeconds(); got != 0 {
				t.Errorf("DurationSeconds() = %d", got)
			}
			if got := e.Views(); got != 0 {
				t.Errorf("Views() = %d", got)
			}
			if e.HasThumbnail() {
				t.Error("HasThumbnail() = true")
			}
		})
	}
}

func TestMediaEntry_Values(t *testing.T) {
	d := 204
	v := int64(1500000)
	e := &MediaEntry{
		Title:        "Believer",
		Uploader:     "ImagineDragons",
		Duration:     &d,
		ViewCount:    &v,
		ThumbnailURL: "https://i.ytimg.com/vi/x/hq.jpg",
	}

	if e.TitleOrUnknown() != "Believer" || e.ArtistOrUnknown() != "ImagineDragons" {
		t.Errorf("title/artist = %q/%q", e.TitleOrUnknown(), e.ArtistOrUnknown())
	}
	if e.DurationSeconds() != 204 || e.Views() != 1500000 || !e.HasThumbnail() {
		t.Errorf("entry accessors wrong: %d %d %v", e.DurationSeconds(), e.Views(), e.HasThumbnail())
	}

	neg := -1
	e.Duration = &neg
	if e.DurationSeconds() != 0 {
		t.Error("negative duration should default to zero")
	}
}

// =============================================================================
// Request Tests
// =============================================================================

func TestNewRequest_UniqueWorkspaces(t *testing.T) {
	seen := make(map[WorkspaceID]bool)
	for i := 0; i < 1000; i++ {
		req := NewRequest(1, i, "Ann", "q")
		if !strings.HasPrefix(req.Workspace.String(), "ws_") {
			t.Fatalf("workspace %q lacks prefix", req.Workspace)
		}
		if seen[req.Workspace] {
			t.Fatalf("duplicate workspace %q", req.Workspace)
		}
		seen[req.Workspace] = true
	}
}

func TestStage_IsTerminal(t *testing.T) {
	terminal := map[Stage]bool{
		StageIdle:              false,
		StageSearching:         false,
		StageDownloading:       false,
		StageSizeChecking:      false,
		StageThumbnailOptional: false,
		StageDelivering:        false,
		StageDone:              true,
		StageFailed:            true,
	}
	for stage, want := range terminal {
		if got := stage.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", stage, got, want)
		}
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestPipelineError(t *testing.T) {
	inner := fmt.Errorf("%w: exit status 1", ErrDownloadFailed)
	err := NewPipelineError("ws_1", StageDownloading, inner)

	if got, want := err.Error(), "downloading [ws_1]: audio download failed: exit status 1"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrDownloadFailed) {
		t.Error("errors.Is should see the wrapped sentinel")
	}

	var pe *PipelineError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &pe) || pe.Stage != StageDownloading {
		t.Errorf("errors.As failed: %+v", pe)
	}

	noWS := NewPipelineError("", StageSearching, ErrNoResults)
	if got := noWS.Error(); got != "searching: no results found" {
		t.Errorf("Error() = %q", got)
	}
}
