package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/ytget/yt-downloader-api/internal/api"
	"github.com/ytget/yt-downloader-api/internal/config"
	"github.com/ytget/yt-downloader-api/internal/download"
	"github.com/ytget/yt-downloader-api/internal/jobs"
	"github.com/ytget/yt-downloader-api/internal/logging"
	"github.com/ytget/yt-downloader-api/internal/platform"
	"github.com/ytget/yt-downloader-api/internal/transcode"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds the graceful shutdown of the server and workers
const ShutdownTimeout = 30 * time.Second

// NewServeCommand creates the serve command
func NewServeCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(*configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, cleanup, err := logging.New(settings.Logger)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := newServer(ctx, settings, log)
			if err != nil {
				return err
			}
			return srv.run(ctx)
		},
	}
}

// server holds the wired application
type server struct {
	log     logrus.FieldLogger
	service *download.Service
	http    *http.Server
	sweeper *platform.Sweeper
}

func newServer(ctx context.Context, settings *config.Settings, log logrus.FieldLogger) (*server, error) {
	if err := platform.CreateDirectoryIfNotExists(settings.Download.Dir); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	if settings.Engine.AutoInstall {
		log.Info("Ensuring yt-dlp is installed")
		if err := platform.EnsureInstalled(ctx); err != nil {
			return nil, err
		}
	}

	var reencoder platform.Reencoder
	if settings.Engine.ReencodeAudio {
		reencoder = transcode.New(transcode.Options{
			FFmpegLocation: settings.Engine.FFmpegLocation,
			AudioBitrate:   settings.Engine.AudioBitrate,
			Container:      settings.Engine.MergeFormat,
			Logger:         log,
		})
	}

	engine := platform.NewEngine(platform.EngineOptions{
		DownloadDir:     settings.Download.Dir,
		TempDir:         settings.Download.TempDir,
		FFmpegLocation:  settings.Engine.FFmpegLocation,
		MergeFormat:     settings.Engine.MergeFormat,
		DefaultPreset:   settings.Download.QualityPreset,
		MetadataTimeout: settings.Engine.MetadataTimeout,
		Retries:         settings.Engine.Retries,
		RetryBackoff:    settings.Engine.RetryBackoff,
		Reencoder:       reencoder,
		Playlists:       platform.NewPlaylistResolver(settings.Engine.MetadataTimeout),
		Logger:          log,
	})

	registry := jobs.NewRegistry()
	service := download.NewService(registry, engine, download.Options{
		MaxParallel: settings.Download.MaxParallel,
		QueueSize:   settings.Download.QueueSize,
		JobTimeout:  settings.Download.JobTimeout,
		Logger:      log,
	})

	router := api.NewRouter(service, jobs.NewProjection(registry, settings.Stream.Interval), api.Options{
		AppName:     settings.AppName,
		DownloadDir: settings.Download.Dir,
		Mode:        settings.Server.Mode,
		CORSOrigins: settings.Server.CORSOrigins,
		Logger:      log,
	})

	s := &server{
		log:     log,
		service: service,
		http: &http.Server{
			Addr:              settings.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
	if settings.Cleanup.Enabled {
		s.sweeper = platform.NewSweeper(settings.Download.Dir, settings.Cleanup.Interval, settings.Cleanup.MaxAge, log)
	}
	return s, nil
}

// run serves until ctx is done, then shuts the server and workers down
func (s *server) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.WithField("addr", s.http.Addr).Info("Starting server")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if s.sweeper != nil {
		g.Go(func() error {
			return s.sweeper.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
		}
		if err := s.service.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	s.log.Info("Server exited")
	return err
}
