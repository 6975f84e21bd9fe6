package model

import (
	"maps"
	"time"
)

// JobKind classifies what a job produces
type JobKind string

const (
	JobKindVideo JobKind = "video"
	JobKindAudio JobKind = "audio"
)

// Payload keys written by the engine
const (
	PayloadFilePath = "file_path"
	PayloadFilename = "filename"
)

// Job is a snapshot of a download job. Values handed out by the registry are
// copies and safe to read without synchronization.
type Job struct {
	ID        string         `json:"id"`
	Kind      JobKind        `json:"type"`
	Status    JobStatus      `json:"status"`
	Progress  float64        `json:"progress"`
	Payload   map[string]any `json:"data"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a copy of the job with its own payload map
func (j *Job) Clone() Job {
	c := *j
	c.Payload = maps.Clone(j.Payload)
	if c.Payload == nil {
		c.Payload = make(map[string]any)
	}
	return c
}

// PayloadString returns a string payload value, or "" if absent or not a string
func (j *Job) PayloadString(key string) string {
	if j.Payload == nil {
		return ""
	}
	s, _ := j.Payload[key].(string)
	return s
}

// DownloadRequest describes what the engine should fetch for a job
type DownloadRequest struct {
	URL          string `json:"url" binding:"required,url"`
	FormatID     string `json:"format_id,omitempty"`
	VideoExt     string `json:"video_ext,omitempty"`
	AudioExt     string `json:"audio_ext,omitempty"`
	AudioOnly    bool   `json:"is_audio_only"`
	AudioQuality string `json:"audio_quality,omitempty"`
}

// Request defaults
const (
	DefaultVideoExt     = "mp4"
	DefaultAudioExt     = "m4a"
	DefaultAudioQuality = "192"
)

// WithDefaults fills empty optional fields
func (r DownloadRequest) WithDefaults() DownloadRequest {
	if r.VideoExt == "" {
		r.VideoExt = DefaultVideoExt
	}
	if r.AudioExt == "" {
		r.AudioExt = DefaultAudioExt
	}
	if r.AudioQuality == "" {
		r.AudioQuality = DefaultAudioQuality
	}
	return r
}

// Kind returns the job kind the request produces
func (r DownloadRequest) Kind() JobKind {
	if r.AudioOnly {
		return JobKindAudio
	}
	return JobKindVideo
}

// ProgressFunc receives progress percent and a partial payload patch from the
// engine. A negative percent means "no progress value in this update".
type ProgressFunc func(percent float64, partial map[string]any)
