// Package model defines domain data structures shared across the service:
// download jobs and their status enum, media metadata descriptions, and the
// contract types passed to the media engine.
package model
