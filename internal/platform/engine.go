package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/sirupsen/logrus"
	"github.com/ytget/yt-downloader-api/internal/model"
	"github.com/ytget/yt-downloader-api/internal/transcode"
	"golang.org/x/sync/singleflight"
)

// Engine defaults
const (
	DefaultMetadataTimeout  = 60 * time.Second
	DefaultMergeFormat      = "mp4"
	DefaultProgressInterval = 500 * time.Millisecond
	DefaultRetryBackoff     = 2 * time.Second
	AudioOutputFormat       = "mp3"
	OutputTemplate          = "%%(title)s [%s].%%(ext)s"
	// FinishedProgress is reported when the download phase ends; post
	// processing may still follow
	FinishedProgress = 99.0
)

// Format selectors
const (
	SelectorAudio        = "bestaudio/best"
	SelectorBest         = "bestvideo+bestaudio/best"
	SelectorMedium       = "bestvideo[height<=720]+bestaudio/best[height<=720]/best"
	SelectorMergeSuffix  = "+bestaudio/best"
	PayloadTitle         = "title"
	PayloadSpeed         = "speed"
	PayloadETA           = "eta"
	PayloadStage         = "stage"
	PayloadStageProgress = "stage_progress"
	StageReencoding      = "reencoding"
)

// Reencoder re-encodes the audio track of a merged video in place
type Reencoder interface {
	ReencodeAudio(ctx context.Context, path string, onProgress transcode.ProgressFunc) error
}

// EngineOptions configures an Engine
type EngineOptions struct {
	DownloadDir string
	// TempDir holds intermediate files while a download runs; empty keeps
	// them next to the output
	TempDir          string
	FFmpegLocation   string
	MergeFormat      string
	DefaultPreset    model.QualityPreset
	MetadataTimeout  time.Duration
	ProgressInterval time.Duration
	// Retries is how many times a failed yt-dlp run is repeated
	Retries      int
	RetryBackoff time.Duration
	// Reencoder, when set, post-processes merged video downloads
	Reencoder Reencoder
	Playlists *PlaylistResolver
	Logger    logrus.FieldLogger
}

// Engine runs yt-dlp for metadata and downloads
type Engine struct {
	opts  EngineOptions
	group singleflight.Group
	log   logrus.FieldLogger

	dump func(ctx context.Context, url string) ([]byte, error)
}

// NewEngine creates an engine
func NewEngine(opts EngineOptions) *Engine {
	if opts.MergeFormat == "" {
		opts.MergeFormat = DefaultMergeFormat
	}
	if !opts.DefaultPreset.IsValid() {
		opts.DefaultPreset = model.DefaultQualityPreset
	}
	if opts.MetadataTimeout <= 0 {
		opts.MetadataTimeout = DefaultMetadataTimeout
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	e := &Engine{
		opts: opts,
		log:  opts.Logger.WithField("component", "engine"),
	}
	if opts.Reencoder != nil && !transcode.SupportsContainer(opts.MergeFormat) {
		e.log.WithField("merge_format", opts.MergeFormat).Warn("Audio re-encode disabled: container cannot carry AAC")
		e.opts.Reencoder = nil
	}
	e.dump = e.dumpJSON
	return e
}

// EnsureInstalled downloads a yt-dlp binary if none is available
func EnsureInstalled(ctx context.Context) error {
	if _, err := ytdlp.Install(ctx, nil); err != nil {
		return fmt.Errorf("failed to install yt-dlp: %w", err)
	}
	return nil
}

// FetchMetadata describes url. Concurrent calls for the same URL share one
// yt-dlp run; a caller whose ctx ends stops waiting without aborting the run.
func (e *Engine) FetchMetadata(ctx context.Context, url string) (*model.MediaInfo, error) {
	ch := e.group.DoChan(url, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.Background(), e.opts.MetadataTimeout)
		defer cancel()
		return e.fetchMetadata(runCtx, url)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.MediaInfo), nil
	case <-ctx.Done():
		return nil, &model.MetadataError{URL: url, Err: ctx.Err()}
	}
}

func (e *Engine) fetchMetadata(ctx context.Context, url string) (*model.MediaInfo, error) {
	data, err := e.dump(ctx, url)
	if err == nil {
		info, parseErr := ParseMediaInfo(data)
		if parseErr == nil {
			e.log.WithFields(logrus.Fields{
				"url":     url,
				"type":    info.Type,
				"entries": info.TotalEntries(),
			}).Debug("Metadata fetched")
			return info, nil
		}
		err = parseErr
	}

	if e.opts.Playlists != nil && IsPlaylistURL(url) {
		info, fallbackErr := e.opts.Playlists.Resolve(ctx, url)
		if fallbackErr == nil {
			e.log.WithFields(logrus.Fields{"url": url, "error": err}).Info("Playlist resolved without yt-dlp")
			return info, nil
		}
		e.log.WithFields(logrus.Fields{"url": url, "error": fallbackErr}).Debug("Playlist fallback failed")
	}

	return nil, &model.MetadataError{URL: url, Err: err}
}

// dumpJSON runs yt-dlp -J --flat-playlist
func (e *Engine) dumpJSON(ctx context.Context, url string) ([]byte, error) {
	cmd := ytdlp.New().
		DumpSingleJSON().
		FlatPlaylist().
		NoWarnings()

	result, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, err
	}
	return []byte(result.Stdout), nil
}

// Download fetches the media for a job into the download directory
func (e *Engine) Download(ctx context.Context, jobID string, req model.DownloadRequest, onProgress model.ProgressFunc) (map[string]any, error) {
	if onProgress == nil {
		onProgress = func(float64, map[string]any) {}
	}
	if err := CreateDirectoryIfNotExists(e.opts.DownloadDir); err != nil {
		return nil, model.NewEngineError(err, "failed to create download directory")
	}
	if e.opts.TempDir != "" {
		if err := CreateDirectoryIfNotExists(e.opts.TempDir); err != nil {
			return nil, model.NewEngineError(err, "failed to create temp directory")
		}
	}

	log := e.log.WithFields(logrus.Fields{"job_id": jobID, "url": req.URL})
	plan := e.plan(jobID, req)
	log.WithField("format", plan.Format).Debug("Starting yt-dlp")

	cmd := plan.command().ProgressFunc(e.opts.ProgressInterval, func(update ytdlp.ProgressUpdate) {
		reportProgress(update, onProgress)
	})

	result, err := e.runWithRetry(ctx, log, func(ctx context.Context) (*ytdlp.Result, error) {
		return cmd.Run(ctx, req.URL)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, model.NewEngineError(ctx.Err(), "download cancelled")
		}
		return nil, model.NewEngineError(err, "download failed")
	}

	var hint string
	if result != nil {
		if info, err := result.GetExtractedInfo(); err == nil && len(info) > 0 && info[0].Filename != nil {
			hint = *info[0].Filename
		}
	}

	return e.finish(ctx, jobID, hint, req, onProgress)
}

// runWithRetry runs attempt up to 1+Retries times, waiting RetryBackoff
// between attempts. It gives up as soon as ctx is done.
func (e *Engine) runWithRetry(ctx context.Context, log logrus.FieldLogger, attempt func(context.Context) (*ytdlp.Result, error)) (*ytdlp.Result, error) {
	var (
		result  *ytdlp.Result
		lastErr error
	)
	for i := 0; i <= e.opts.Retries; i++ {
		if i > 0 {
			timer := time.NewTimer(e.opts.RetryBackoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return result, ctx.Err()
			}
			log.WithField("attempt", i+1).Info("Retrying download")
		}

		res, err := attempt(ctx)
		if err == nil {
			return res, nil
		}
		result, lastErr = res, err
		log.WithFields(logrus.Fields{"attempt": i + 1, "error": err}).Warn("Download attempt failed")

		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}
	return result, lastErr
}

// finish locates the output of a completed run and post-processes it
func (e *Engine) finish(ctx context.Context, jobID, hint string, req model.DownloadRequest, onProgress model.ProgressFunc) (map[string]any, error) {
	path, err := FindJobOutput(e.opts.DownloadDir, jobID, hint)
	if err != nil {
		return nil, model.NewEngineError(err, "download finished but no output file was found")
	}

	if !req.AudioOnly && e.opts.Reencoder != nil {
		onProgress(-1, map[string]any{PayloadStage: StageReencoding})
		err := e.opts.Reencoder.ReencodeAudio(ctx, path, func(percent float64) {
			onProgress(-1, map[string]any{PayloadStageProgress: percent})
		})
		if err != nil {
			return nil, model.NewEngineError(err, "audio re-encode failed")
		}
	}

	return map[string]any{
		model.PayloadFilePath: path,
		model.PayloadFilename: filepath.Base(path),
	}, nil
}

// FormatSelector builds the yt-dlp format expression for a request. Preset
// names expand to fixed selectors; an empty format uses fallback.
func FormatSelector(formatID string, audioOnly bool, fallback model.QualityPreset) string {
	if audioOnly {
		return SelectorAudio
	}
	if formatID == "" {
		formatID = string(fallback)
	}
	switch model.QualityPreset(formatID) {
	case model.QualityBest:
		return SelectorBest
	case model.QualityMedium:
		return SelectorMedium
	case model.QualityAudio:
		return SelectorAudio
	}
	return formatID + SelectorMergeSuffix
}

// downloadPlan holds the yt-dlp options of one download
type downloadPlan struct {
	Format            string
	Output            string
	TempDir           string
	MergeFormat       string
	FFmpegLocation    string
	ExtractAudio      bool
	AudioFormat       string
	AudioQuality      string
	PostProcessorArgs string
}

func (e *Engine) plan(jobID string, req model.DownloadRequest) downloadPlan {
	req = req.WithDefaults()
	p := downloadPlan{
		Format:         FormatSelector(req.FormatID, req.AudioOnly, e.opts.DefaultPreset),
		Output:         filepath.Join(e.opts.DownloadDir, OutputName(jobID)),
		TempDir:        e.opts.TempDir,
		FFmpegLocation: e.opts.FFmpegLocation,
	}

	if req.AudioOnly {
		bitrate := req.AudioQuality + "k"
		p.ExtractAudio = true
		p.AudioFormat = AudioOutputFormat
		p.AudioQuality = strings.ToUpper(bitrate)
		p.PostProcessorArgs = "ExtractAudio:" + strings.Join([]string{
			"-b:a", bitrate,
			"-minrate", bitrate,
			"-maxrate", bitrate,
			"-bufsize", bitrate,
		}, " ")
	} else {
		p.MergeFormat = e.opts.MergeFormat
	}
	return p
}

func (p downloadPlan) command() *ytdlp.Command {
	cmd := ytdlp.New().
		Format(p.Format).
		Output(p.Output).
		NoPlaylist().
		ForceOverwrites().
		NoWarnings()

	if p.TempDir != "" {
		cmd = cmd.Paths("temp:" + p.TempDir)
	}
	if p.FFmpegLocation != "" {
		cmd = cmd.FFmpegLocation(p.FFmpegLocation)
	}
	if p.MergeFormat != "" {
		cmd = cmd.MergeOutputFormat(p.MergeFormat)
	}
	if p.ExtractAudio {
		cmd = cmd.ExtractAudio().
			AudioFormat(p.AudioFormat).
			AudioQuality(p.AudioQuality).
			PostProcessorArgs(p.PostProcessorArgs)
	}
	return cmd
}

// OutputName is the yt-dlp output template of a job; the job id in the name
// lets the output be found again
func OutputName(jobID string) string {
	return fmt.Sprintf(OutputTemplate, jobID)
}

// reportProgress converts a yt-dlp progress update into a progress report
func reportProgress(update ytdlp.ProgressUpdate, report model.ProgressFunc) {
	partial := progressDetails(update, time.Now())

	switch update.Status {
	case ytdlp.ProgressStatusFinished:
		report(FinishedProgress, partial)
	case ytdlp.ProgressStatusDownloading:
		report(progressPercent(update), partial)
	}
}

// progressDetails collects the metadata carried by a progress update: file
// name, title, speed and ETA in seconds. It returns nil when there is none.
func progressDetails(update ytdlp.ProgressUpdate, now time.Time) map[string]any {
	partial := make(map[string]any)
	if update.Filename != "" {
		partial[model.PayloadFilename] = update.Filename
	}
	if update.Info != nil && update.Info.Title != nil && *update.Info.Title != "" {
		partial[PayloadTitle] = *update.Info.Title
	}
	if speed := downloadSpeed(update, now); speed != "" {
		partial[PayloadSpeed] = speed
	}
	if update.Status == ytdlp.ProgressStatusDownloading {
		if eta := update.ETA(); eta > 0 {
			partial[PayloadETA] = int(eta.Seconds())
		}
	}
	if len(partial) == 0 {
		return nil
	}
	return partial
}

// downloadSpeed formats the average rate since the download started
func downloadSpeed(update ytdlp.ProgressUpdate, now time.Time) string {
	if update.Started.IsZero() || update.DownloadedBytes <= 0 {
		return ""
	}
	elapsed := now.Sub(update.Started).Seconds()
	if elapsed <= 0 {
		return ""
	}
	bytesPerSecond := float64(update.DownloadedBytes) / elapsed
	return fmt.Sprintf("%.1fMB/s", bytesPerSecond/1024/1024)
}

// progressPercent derives a percentage from byte counts, else from fragment
// counts; -1 when neither is known
func progressPercent(update ytdlp.ProgressUpdate) float64 {
	if update.TotalBytes > 0 {
		return float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
	}
	if update.FragmentCount > 0 {
		return float64(update.FragmentIndex) / float64(update.FragmentCount) * 100
	}
	return -1
}
