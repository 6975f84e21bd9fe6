// Package platform adapts yt-dlp and the local filesystem to the download
// service: metadata extraction, downloads, playlist resolution and the
// output directory.
package platform
