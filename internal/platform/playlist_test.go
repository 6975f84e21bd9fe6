package platform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ytget/yt-downloader-api/internal/model"
)

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{name: "playlist page", url: "https://www.youtube.com/playlist?list=PL123", expected: "PL123"},
		{name: "watch with list", url: "https://www.youtube.com/watch?v=abc&list=PL456&index=2", expected: "PL456"},
		{name: "radio", url: "https://www.youtube.com/watch?v=abc&list=RDabc&start_radio=1", expected: "RDabc"},
		{name: "no list", url: "https://www.youtube.com/watch?v=abc", expected: ""},
		{name: "bare parameter", url: "list=PL789&x=1", expected: "PL789"},
		{name: "empty", url: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractPlaylistID(tt.url); got != tt.expected {
				t.Errorf("ExtractPlaylistID(%q) = %q, expected %q", tt.url, got, tt.expected)
			}
			if IsPlaylistURL(tt.url) != (tt.expected != "") {
				t.Errorf("IsPlaylistURL(%q) mismatch", tt.url)
			}
		})
	}
}

func TestPlaylistTitle(t *testing.T) {
	tests := []struct {
		name     string
		titles   []string
		expected string
	}{
		{name: "no entries", titles: nil, expected: DefaultPlaylistName},
		{name: "single entry", titles: []string{"Song"}, expected: "Song Playlist"},
		{name: "long common prefix", titles: []string{"Rammstein Live Part 1", "Rammstein Live Part 2"}, expected: "Rammstein Live Part Playlist"},
		{name: "short common prefix", titles: []string{"Track A", "Track B"}, expected: "Track A Playlist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := make([]model.PlaylistEntry, 0, len(tt.titles))
			for _, title := range tt.titles {
				entries = append(entries, model.PlaylistEntry{Title: title})
			}
			if got := playlistTitle(entries); got != tt.expected {
				t.Errorf("playlistTitle() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestFindCommonPrefix(t *testing.T) {
	tests := []struct {
		s1, s2, expected string
	}{
		{"abcdef", "abcxyz", "abc"},
		{"abc", "abc", "abc"},
		{"abc", "abcdef", "abc"},
		{"xyz", "abc", ""},
		{"", "abc", ""},
	}

	for _, tt := range tests {
		if got := findCommonPrefix(tt.s1, tt.s2); got != tt.expected {
			t.Errorf("findCommonPrefix(%q, %q) = %q, expected %q", tt.s1, tt.s2, got, tt.expected)
		}
	}
}

func TestPlaylistResolver_Resolve(t *testing.T) {
	r := NewPlaylistResolver(time.Second)
	r.fetch = func(ctx context.Context, playlistID string) ([]PlaylistItem, error) {
		if playlistID != "PL123" {
			t.Errorf("expected playlist id PL123, got %s", playlistID)
		}
		return []PlaylistItem{
			{VideoID: "a1", Title: "Lecture Series 01"},
			{VideoID: "", Title: "deleted"},
			{VideoID: "b2", Title: "Lecture Series 02"},
		}, nil
	}

	info, err := r.Resolve(context.Background(), "https://www.youtube.com/watch?v=a1&list=PL123")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !info.IsPlaylist() || info.ID != "PL123" {
		t.Errorf("unexpected info %+v", info)
	}
	if info.TotalEntries() != 2 {
		t.Fatalf("expected 2 entries, got %d", info.TotalEntries())
	}
	if info.Entries[1].URL != "https://www.youtube.com/watch?v=b2" {
		t.Errorf("unexpected entry url %s", info.Entries[1].URL)
	}
	if info.Title != "Lecture Series 0 Playlist" {
		t.Errorf("unexpected title %q", info.Title)
	}
	if info.WebpageURL != "https://www.youtube.com/playlist?list=PL123" {
		t.Errorf("unexpected webpage url %s", info.WebpageURL)
	}
}

func TestPlaylistResolver_Errors(t *testing.T) {
	r := NewPlaylistResolver(0)
	if r.timeout != DefaultPlaylistTimeout {
		t.Errorf("expected default timeout, got %v", r.timeout)
	}

	if _, err := r.Resolve(context.Background(), "https://www.youtube.com/watch?v=a1"); err == nil {
		t.Error("expected error for URL without playlist")
	}

	backendErr := errors.New("quota exceeded")
	r.fetch = func(ctx context.Context, playlistID string) ([]PlaylistItem, error) {
		return nil, backendErr
	}
	if _, err := r.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PL1"); !errors.Is(err, backendErr) {
		t.Errorf("expected backend error to be wrapped, got %v", err)
	}
}
