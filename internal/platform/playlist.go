package platform

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ytget/yt-downloader-api/internal/model"
	"github.com/ytget/ytdlp/v2"
)

// Timeout constants
const (
	DefaultPlaylistTimeout = 60 * time.Second
)

// URL parameters and separators
const (
	PlaylistParam  = "list="
	ParamSeparator = "&"
)

// URL templates
const (
	YouTubeVideoURLTemplate    = "https://www.youtube.com/watch?v=%s"
	YouTubePlaylistURLTemplate = "https://www.youtube.com/playlist?list=%s"
)

// Playlist title constants
const (
	DefaultPlaylistName = "Unknown Playlist"
	MinPrefixLength     = 10
	PlaylistSuffix      = " Playlist"
)

// PlaylistItem is a playlist video as returned by the resolver backend
type PlaylistItem struct {
	VideoID string
	Title   string
}

// playlistFetcher lists the items of a playlist
type playlistFetcher func(ctx context.Context, playlistID string) ([]PlaylistItem, error)

// PlaylistResolver lists playlist entries through the ytdlp/v2 library. It
// is used when the yt-dlp executable cannot describe a playlist.
type PlaylistResolver struct {
	timeout time.Duration
	fetch   playlistFetcher
}

// NewPlaylistResolver creates a resolver
func NewPlaylistResolver(timeout time.Duration) *PlaylistResolver {
	if timeout <= 0 {
		timeout = DefaultPlaylistTimeout
	}
	return &PlaylistResolver{timeout: timeout, fetch: fetchPlaylistItems}
}

func fetchPlaylistItems(ctx context.Context, playlistID string) ([]PlaylistItem, error) {
	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]PlaylistItem, 0, len(items))
	for _, it := range items {
		out = append(out, PlaylistItem{VideoID: it.VideoID, Title: it.Title})
	}
	return out, nil
}

// Resolve describes the playlist referenced by rawURL
func (r *PlaylistResolver) Resolve(ctx context.Context, rawURL string) (*model.MediaInfo, error) {
	playlistID := ExtractPlaylistID(rawURL)
	if playlistID == "" {
		return nil, fmt.Errorf("could not extract playlist ID from URL: %s", rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	items, err := r.fetch(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	entries := make([]model.PlaylistEntry, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		entries = append(entries, model.PlaylistEntry{
			ID:    it.VideoID,
			Title: it.Title,
			URL:   fmt.Sprintf(YouTubeVideoURLTemplate, it.VideoID),
		})
	}

	return &model.MediaInfo{
		Type:       model.MediaTypePlaylist,
		ID:         playlistID,
		Title:      playlistTitle(entries),
		WebpageURL: fmt.Sprintf(YouTubePlaylistURLTemplate, playlistID),
		Entries:    entries,
	}, nil
}

// IsPlaylistURL checks if the URL carries a playlist parameter
func IsPlaylistURL(rawURL string) bool {
	return ExtractPlaylistID(rawURL) != ""
}

// ExtractPlaylistID extracts the playlist ID from various URL formats:
// watch?v=ID&list=PL..., playlist?list=PL...
func ExtractPlaylistID(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if id := u.Query().Get("list"); id != "" {
			return id
		}
	}

	// Not a parseable URL; fall back to plain string matching
	if strings.Contains(rawURL, PlaylistParam) {
		parts := strings.SplitN(rawURL, PlaylistParam, 2)
		return strings.Split(parts[1], ParamSeparator)[0]
	}
	return ""
}

// playlistTitle generates a title for a playlist from its entries
func playlistTitle(entries []model.PlaylistEntry) string {
	if len(entries) == 0 {
		return DefaultPlaylistName
	}
	if len(entries) > 1 {
		commonPrefix := findCommonPrefix(entries[0].Title, entries[1].Title)
		if len(commonPrefix) > MinPrefixLength {
			return strings.TrimSpace(commonPrefix) + PlaylistSuffix
		}
	}
	return entries[0].Title + PlaylistSuffix
}

// findCommonPrefix finds the common prefix between two strings
func findCommonPrefix(s1, s2 string) string {
	minLen := min(len(s1), len(s2))
	for i := 0; i < minLen; i++ {
		if s1[i] != s2[i] {
			return s1[:i]
		}
	}
	return s1[:minLen]
}
