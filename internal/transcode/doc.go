// Package transcode re-encodes the audio track of merged downloads with
// ffmpeg while copying the video stream untouched.
package transcode
