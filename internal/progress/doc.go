// Package progress carries crawl progress from the dispatcher and workers to
// pluggable sinks. Events are buffered by a non-blocking hub and flushed in
// batches on a background goroutine.
package progress
