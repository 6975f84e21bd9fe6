// Package commands implements the command line interface.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd(version string) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "yt-downloader-api",
		Short:         "HTTP and WebSocket API for downloading videos with yt-dlp",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")

	rootCmd.AddCommand(
		NewServeCommand(&configFile),
		NewInfoCommand(&configFile),
		NewVersionCommand(version),
	)

	return rootCmd
}
