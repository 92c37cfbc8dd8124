// Package output persists the records of a run: a CSV table on disk, an
// optional Postgres table and an optional copy of the CSV in Cloud Storage.
// Every type here implements crawler.RecordSink.
package output
