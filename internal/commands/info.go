package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ytget/yt-downloader-api/internal/config"
	"github.com/ytget/yt-downloader-api/internal/logging"
	"github.com/ytget/yt-downloader-api/internal/platform"
)

// NewInfoCommand creates the info command, which prints the metadata of a URL
func NewInfoCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "info <url>",
		Short: "Print video or playlist metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(*configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			// stdout carries the JSON
			if settings.Logger.Output == logging.OutputStdout {
				settings.Logger.Output = logging.OutputStderr
			}
			log, cleanup, err := logging.New(settings.Logger)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer cleanup()

			engine := platform.NewEngine(platform.EngineOptions{
				DownloadDir:     settings.Download.Dir,
				MetadataTimeout: settings.Engine.MetadataTimeout,
				Playlists:       platform.NewPlaylistResolver(settings.Engine.MetadataTimeout),
				Logger:          log,
			})
			info, err := engine.FetchMetadata(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
}
