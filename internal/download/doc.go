// Package download runs download jobs asynchronously. The Service creates a job
// in the registry, hands the work to a bounded worker pool and records
// progress, results and failures as the media engine reports them.
package download
