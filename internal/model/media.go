package model

import "encoding/json"

// MediaType distinguishes single videos from playlists
type MediaType string

const (
	MediaTypeVideo    MediaType = "video"
	MediaTypePlaylist MediaType = "playlist"
)

// FormatType classifies a stream format by the tracks it carries
type FormatType string

const (
	FormatTypeVideo FormatType = "video" // video only
	FormatTypeAudio FormatType = "audio" // audio only
	FormatTypeMuxed FormatType = "muxed" // video and audio
)

// Format is a downloadable stream variant
type Format struct {
	FormatID   string     `json:"format_id"`
	Ext        string     `json:"ext,omitempty"`
	Resolution string     `json:"resolution,omitempty"`
	Filesize   *int64     `json:"filesize"`
	VideoExt   string     `json:"video_ext,omitempty"`
	Height     *int       `json:"height,omitempty"`
	Note       string     `json:"note,omitempty"`
	ABR        *float64   `json:"abr,omitempty"`
	Type       FormatType `json:"type"`
}

// PlaylistEntry is a single video listed in a playlist
type PlaylistEntry struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Duration  *float64 `json:"duration"`
	Thumbnail *string  `json:"thumbnail"`
	Uploader  string   `json:"uploader,omitempty"`
	URL       string   `json:"url"`
}

// MediaInfo describes a video or a playlist
type MediaInfo struct {
	Type       MediaType       `json:"type"`
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Uploader   string          `json:"uploader,omitempty"`
	WebpageURL string          `json:"webpage_url,omitempty"`
	Duration   *float64        `json:"duration,omitempty"`
	Thumbnail  string          `json:"thumbnail,omitempty"`
	ViewCount  *int64          `json:"view_count,omitempty"`
	IsLive     bool            `json:"is_live"`
	Formats    []Format        `json:"formats"`
	Entries    []PlaylistEntry `json:"entries,omitempty"`
}

// IsPlaylist checks if the description is a playlist
func (m *MediaInfo) IsPlaylist() bool {
	return m.Type == MediaTypePlaylist
}

// TotalEntries returns the number of playlist entries
func (m *MediaInfo) TotalEntries() int {
	return len(m.Entries)
}

// MarshalJSON writes formats for videos, as an empty list when there are
// none, and leaves them out for playlists
func (m MediaInfo) MarshalJSON() ([]byte, error) {
	type plain MediaInfo
	if m.IsPlaylist() {
		return json.Marshal(struct {
			plain
			Formats []Format `json:"formats,omitempty"`
		}{plain: plain(m)})
	}
	if m.Formats == nil {
		m.Formats = []Format{}
	}
	return json.Marshal(plain(m))
}
