package crawler

import (
	"time"
)

// SearchTarget is the URL of a search-results page. Each target is consumed
// once per run.
type SearchTarget string

// ListingURL is a canonical listing URL (scheme, host and path only). Two
// listing URLs are equal when their canonical strings are equal.
type ListingURL string

// String returns the URL as a plain string.
func (u ListingURL) String() string {
	return string(u)
}

// RecordStatus distinguishes why a record carries empty fields.
type RecordStatus string

// Record status values written alongside each record.
const (
	// StatusOK means extraction ran against the requested page.
	StatusOK RecordStatus = "ok"
	// StatusDegraded means an authentication wall persisted after one reload
	// and extraction ran against whatever content was present.
	StatusDegraded RecordStatus = "degraded"
	// StatusPageError means navigation failed before extraction began.
	StatusPageError RecordStatus = "page_error"
)

// ListingRecord is the extracted host and licensing metadata for one listing.
// Every field except ListingURL and ScrapedAt is optional; an empty string
// means the value was not found.
type ListingRecord struct {
	ListingURL       ListingURL   `json:"listing_url"`
	Title            string       `json:"listing_title"`
	LicenseCode      string       `json:"license_code"`
	HostURL          string       `json:"host_url"`
	HostName         string       `json:"host_name"`
	HostRating       string       `json:"host_rating"`
	HostYears        string       `json:"host_years"`
	HostReviewsCount string       `json:"host_reviews_count"`
	ScrapedAt        time.Time    `json:"scraped_at"`
	Status           RecordStatus `json:"status"`
}

// FloorRecord returns the minimal record for a listing: URL, timestamp and
// status populated, every extracted field empty.
func FloorRecord(u ListingURL, scrapedAt time.Time, status RecordStatus) ListingRecord {
	return ListingRecord{
		ListingURL: u,
		ScrapedAt:  scrapedAt.UTC(),
		Status:     status,
	}
}

// Fields holds the optional values produced by extraction for one page.
type Fields struct {
	Title            string
	LicenseCode      string
	HostURL          string
	HostName         string
	HostRating       string
	HostYears        string
	HostReviewsCount string
}

// NewRecord assembles a record from extracted fields. The record is not
// mutated after construction.
func NewRecord(u ListingURL, fields Fields, scrapedAt time.Time, status RecordStatus) ListingRecord {
	return ListingRecord{
		ListingURL:       u,
		Title:            fields.Title,
		LicenseCode:      fields.LicenseCode,
		HostURL:          fields.HostURL,
		HostName:         fields.HostName,
		HostRating:       fields.HostRating,
		HostYears:        fields.HostYears,
		HostReviewsCount: fields.HostReviewsCount,
		ScrapedAt:        scrapedAt.UTC(),
		Status:           status,
	}
}

// Columns lists the tabular header in output order.
var Columns = []string{
	"listing_url",
	"listing_title",
	"license_code",
	"host_url",
	"host_name",
	"host_rating",
	"host_years",
	"host_reviews_count",
	"scraped_at",
}

// Row renders the record in Columns order. Timestamps use RFC 3339 with
// nanoseconds trimmed.
func (r ListingRecord) Row() []string {
	return []string{
		r.ListingURL.String(),
		r.Title,
		r.LicenseCode,
		r.HostURL,
		r.HostName,
		r.HostRating,
		r.HostYears,
		r.HostReviewsCount,
		r.ScrapedAt.UTC().Format(time.RFC3339),
	}
}

// BatchResult is the outcome of one worker processing one batch. Records
// preserve the batch input order. Failed counts page-level failures; Err is
// set only when the batch stopped early (for example on cancellation).
type BatchResult struct {
	Index   int
	Records []ListingRecord
	Failed  int
	Err     error
}
