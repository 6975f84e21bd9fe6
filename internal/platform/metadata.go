package platform

import (
	"encoding/json"
	"fmt"

	"github.com/ytget/yt-downloader-api/internal/model"
)

// Codec value yt-dlp uses for an absent track
const codecNone = "none"

// yt-dlp "_type" for playlists
const typePlaylist = "playlist"

type rawThumbnail struct {
	URL string `json:"url"`
}

type rawFormat struct {
	FormatID   string   `json:"format_id"`
	Ext        string   `json:"ext"`
	Resolution string   `json:"resolution"`
	Filesize   *int64   `json:"filesize"`
	VideoExt   string   `json:"video_ext"`
	Height     *int     `json:"height"`
	FormatNote string   `json:"format_note"`
	ABR        *float64 `json:"abr"`
	VCodec     *string  `json:"vcodec"`
	ACodec     *string  `json:"acodec"`
}

type rawEntry struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Duration   *float64       `json:"duration"`
	Thumbnails []rawThumbnail `json:"thumbnails"`
	Uploader   string         `json:"uploader"`
	URL        string         `json:"url"`
}

type rawInfo struct {
	Type       string      `json:"_type"`
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Uploader   string      `json:"uploader"`
	WebpageURL string      `json:"webpage_url"`
	Duration   *float64    `json:"duration"`
	Thumbnail  string      `json:"thumbnail"`
	ViewCount  *int64      `json:"view_count"`
	IsLive     *bool       `json:"is_live"`
	Formats    []rawFormat `json:"formats"`
	Entries    []*rawEntry `json:"entries"`
}

// ParseMediaInfo reduces a yt-dlp JSON dump (-J) to a MediaInfo
func ParseMediaInfo(data []byte) (*model.MediaInfo, error) {
	var raw rawInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp output: %w", err)
	}
	if raw.ID == "" && raw.Title == "" {
		return nil, fmt.Errorf("yt-dlp returned no media information")
	}

	if raw.Type == typePlaylist {
		return playlistInfo(&raw), nil
	}
	return videoInfo(&raw), nil
}

func playlistInfo(raw *rawInfo) *model.MediaInfo {
	entries := make([]model.PlaylistEntry, 0, len(raw.Entries))
	for _, e := range raw.Entries {
		if e == nil {
			continue
		}
		entry := model.PlaylistEntry{
			ID:       e.ID,
			Title:    e.Title,
			Duration: e.Duration,
			Uploader: e.Uploader,
			URL:      e.URL,
		}
		if len(e.Thumbnails) > 0 {
			thumb := e.Thumbnails[0].URL
			entry.Thumbnail = &thumb
		}
		entries = append(entries, entry)
	}

	return &model.MediaInfo{
		Type:       model.MediaTypePlaylist,
		ID:         raw.ID,
		Title:      raw.Title,
		Uploader:   raw.Uploader,
		WebpageURL: raw.WebpageURL,
		Entries:    entries,
	}
}

func videoInfo(raw *rawInfo) *model.MediaInfo {
	info := &model.MediaInfo{
		Type:       model.MediaTypeVideo,
		ID:         raw.ID,
		Title:      raw.Title,
		Uploader:   raw.Uploader,
		WebpageURL: raw.WebpageURL,
		Duration:   raw.Duration,
		Thumbnail:  raw.Thumbnail,
		ViewCount:  raw.ViewCount,
		IsLive:     raw.IsLive != nil && *raw.IsLive,
		Formats:    make([]model.Format, 0, len(raw.Formats)),
	}

	for _, f := range raw.Formats {
		if formatted, ok := reduceFormat(f); ok {
			info.Formats = append(info.Formats, formatted)
		}
	}
	return info
}

// hasTrack reports whether a codec field describes a present track. A missing
// field counts as present.
func hasTrack(codec *string) bool {
	return codec == nil || *codec != codecNone
}

// reduceFormat classifies f and keeps the fields relevant to its type.
// Formats without video and audio are dropped.
func reduceFormat(f rawFormat) (model.Format, bool) {
	video, audio := hasTrack(f.VCodec), hasTrack(f.ACodec)

	switch {
	case video && !audio:
		return model.Format{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			Resolution: f.Resolution,
			Filesize:   f.Filesize,
			VideoExt:   f.VideoExt,
			Height:     f.Height,
			Note:       f.FormatNote,
			Type:       model.FormatTypeVideo,
		}, true
	case !video && audio:
		return model.Format{
			FormatID: f.FormatID,
			Ext:      f.Ext,
			Filesize: f.Filesize,
			ABR:      f.ABR,
			Type:     model.FormatTypeAudio,
		}, true
	case video && audio:
		return model.Format{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			Resolution: f.Resolution,
			Filesize:   f.Filesize,
			Height:     f.Height,
			Type:       model.FormatTypeMuxed,
		}, true
	}
	return model.Format{}, false
}
