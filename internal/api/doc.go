// Package api exposes the download service over HTTP and streams job status
// over WebSocket.
package api
