package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/ytget/yt-downloader-api/internal/model"
)

// Parallel download limits
const (
	MinParallel = 1
	MaxParallel = 10
)

// Default values
const (
	DefaultAppName         = "YouTube Downloader API"
	DefaultPort            = 8000
	DefaultDownloadDir     = "downloads"
	DefaultTempDir         = "temp"
	DefaultMaxParallel     = 2
	DefaultQueueSize       = 100
	DefaultMergeFormat     = "mp4"
	DefaultAudioBitrate    = "320k"
	DefaultMetadataTimeout = 60 * time.Second
	DefaultRetries         = 1
	DefaultRetryBackoff    = 2 * time.Second
	DefaultStreamInterval  = 500 * time.Millisecond
	DefaultCleanupInterval = 10 * time.Minute
	DefaultCleanupMaxAge   = time.Hour
	EnvPrefix              = "YTDL"
	ConfigName             = "config"
)

// DefaultCORSOrigins are the development front-end origins
var DefaultCORSOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

// Server holds HTTP listener settings
type Server struct {
	Host        string
	Port        int
	Mode        string
	CORSOrigins []string
}

// Addr returns the listen address
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Download holds job execution settings
type Download struct {
	Dir           string
	TempDir       string
	MaxParallel   int
	QueueSize     int
	JobTimeout    time.Duration
	QualityPreset model.QualityPreset
}

// Engine holds yt-dlp and ffmpeg settings
type Engine struct {
	FFmpegLocation  string
	MergeFormat     string
	ReencodeAudio   bool
	AudioBitrate    string
	MetadataTimeout time.Duration
	Retries         int
	RetryBackoff    time.Duration
	AutoInstall     bool
}

// Stream holds status stream settings
type Stream struct {
	Interval time.Duration
}

// Cleanup holds download directory sweeper settings
type Cleanup struct {
	Enabled  bool
	Interval time.Duration
	MaxAge   time.Duration
}

// Logger holds log output settings
type Logger struct {
	Level      string
	Format     string
	Output     string
	OutputFile string
}

// Settings is the application configuration
type Settings struct {
	AppName  string
	Server   Server
	Download Download
	Engine   Engine
	Stream   Stream
	Cleanup  Cleanup
	Logger   Logger
}

// Load reads configuration from defaults, an optional config file, a .env
// file and the environment, in increasing order of precedence. An empty
// configPath searches the default locations and tolerates a missing file.
func Load(configPath string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.yt-downloader")
		v.AddConfigPath("/etc/yt-downloader")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", DefaultAppName)
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", DefaultCORSOrigins)
	v.SetDefault("download.dir", DefaultDownloadDir)
	v.SetDefault("download.temp_dir", DefaultTempDir)
	v.SetDefault("download.max_parallel", DefaultMaxParallel)
	v.SetDefault("download.queue_size", DefaultQueueSize)
	v.SetDefault("download.job_timeout", 0)
	v.SetDefault("download.quality_preset", string(model.DefaultQualityPreset))
	v.SetDefault("engine.ffmpeg_location", "")
	v.SetDefault("engine.merge_format", DefaultMergeFormat)
	v.SetDefault("engine.reencode_audio", true)
	v.SetDefault("engine.audio_bitrate", DefaultAudioBitrate)
	v.SetDefault("engine.metadata_timeout", DefaultMetadataTimeout)
	v.SetDefault("engine.retries", DefaultRetries)
	v.SetDefault("engine.retry_backoff", DefaultRetryBackoff)
	v.SetDefault("engine.auto_install", false)
	v.SetDefault("stream.interval", DefaultStreamInterval)
	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.interval", DefaultCleanupInterval)
	v.SetDefault("cleanup.max_age", DefaultCleanupMaxAge)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.output_file", "")
}

// bindEnv maps YTDL_SECTION_KEY variables to keys, plus the bare names the
// service has always accepted
func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bare := map[string]string{
		"app_name":               "PROJECT_NAME",
		"download.dir":           "DOWNLOAD_DIR",
		"download.temp_dir":      "TEMP_DIR",
		"engine.ffmpeg_location": "FFMPEG_PATH",
	}
	for key, name := range bare {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, name); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

func fromViper(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		AppName: v.GetString("app_name"),
		Server: Server{
			Host:        v.GetString("server.host"),
			Port:        v.GetInt("server.port"),
			Mode:        v.GetString("server.mode"),
			CORSOrigins: v.GetStringSlice("server.cors_origins"),
		},
		Download: Download{
			Dir:           v.GetString("download.dir"),
			TempDir:       v.GetString("download.temp_dir"),
			MaxParallel:   ClampParallel(v.GetInt("download.max_parallel")),
			QueueSize:     v.GetInt("download.queue_size"),
			JobTimeout:    v.GetDuration("download.job_timeout"),
			QualityPreset: model.QualityPreset(v.GetString("download.quality_preset")),
		},
		Engine: Engine{
			FFmpegLocation:  v.GetString("engine.ffmpeg_location"),
			MergeFormat:     v.GetString("engine.merge_format"),
			ReencodeAudio:   v.GetBool("engine.reencode_audio"),
			AudioBitrate:    v.GetString("engine.audio_bitrate"),
			MetadataTimeout: v.GetDuration("engine.metadata_timeout"),
			Retries:         v.GetInt("engine.retries"),
			RetryBackoff:    v.GetDuration("engine.retry_backoff"),
			AutoInstall:     v.GetBool("engine.auto_install"),
		},
		Stream: Stream{
			Interval: v.GetDuration("stream.interval"),
		},
		Cleanup: Cleanup{
			Enabled:  v.GetBool("cleanup.enabled"),
			Interval: v.GetDuration("cleanup.interval"),
			MaxAge:   v.GetDuration("cleanup.max_age"),
		},
		Logger: Logger{
			Level:      v.GetString("logger.level"),
			Format:     v.GetString("logger.format"),
			Output:     v.GetString("logger.output"),
			OutputFile: v.GetString("logger.output_file"),
		},
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks values that cannot be corrected silently
func (s *Settings) Validate() error {
	if s.Server.Port < 1 || s.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", s.Server.Port)
	}
	if s.Download.Dir == "" {
		return errors.New("download directory must not be empty")
	}
	if s.Download.QueueSize < 1 {
		return fmt.Errorf("queue size must be greater than 0, got %d", s.Download.QueueSize)
	}
	if s.Download.JobTimeout < 0 {
		return errors.New("job timeout must be greater than or equal to 0")
	}
	if !s.Download.QualityPreset.IsValid() {
		return fmt.Errorf("unknown quality preset %q, expected one of %v", s.Download.QualityPreset, model.QualityPresets())
	}
	if s.Engine.Retries < 0 {
		return fmt.Errorf("engine retries must be greater than or equal to 0, got %d", s.Engine.Retries)
	}
	if s.Stream.Interval <= 0 {
		return errors.New("stream interval must be positive")
	}
	return nil
}

// ClampParallel bounds the number of parallel downloads
func ClampParallel(count int) int {
	if count < MinParallel {
		return MinParallel
	}
	if count > MaxParallel {
		return MaxParallel
	}
	return count
}
