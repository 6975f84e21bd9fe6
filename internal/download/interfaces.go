package download

import (
	"context"

	"github.com/ytget/yt-downloader-api/internal/model"
)

// Engine is the media engine the service drives. Implementations must be safe
// for concurrent use.
type Engine interface {
	// FetchMetadata describes a video or playlist without downloading it.
	// Failures are reported as *model.MetadataError.
	FetchMetadata(ctx context.Context, url string) (*model.MediaInfo, error)

	// Download fetches the media for a job, calling onProgress as it goes, and
	// returns the final payload (file_path, filename). Failures are reported
	// as *model.EngineError.
	Download(ctx context.Context, jobID string, req model.DownloadRequest, onProgress model.ProgressFunc) (map[string]any, error)
}

// Operation is the unit of work executed for a job
type Operation func(ctx context.Context, jobID string, report model.ProgressFunc) (map[string]any, error)

// Downloader defines the interface for the download service.
type Downloader interface {
	Submit(kind model.JobKind, op Operation) (string, error)
	SubmitDownload(req model.DownloadRequest) (string, error)
	FetchMetadata(ctx context.Context, url string) (*model.MediaInfo, error)
	Cancel(id string) error
	Stats() Stats
}
