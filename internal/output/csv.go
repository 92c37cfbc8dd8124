package output

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

// ErrNoRecords is returned when asked to write an empty table.
var ErrNoRecords = errors.New("no records to write")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes records as a UTF-8 CSV table with a byte order mark so
// spreadsheet tools detect the encoding.
type CSVWriter struct {
	Path string
	// IncludeStatus appends a status column.
	IncludeStatus bool

	mu      sync.Mutex
	written string
}

var (
	_ crawler.RecordSink = (*CSVWriter)(nil)
	_ WrittenFile        = (*CSVWriter)(nil)
)

// WrittenPath reports the file produced by the last Write, if it succeeded.
func (w *CSVWriter) WrittenPath() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written, w.written != ""
}

// Write replaces the file at Path atomically. No file is created when
// records is empty.
func (w *CSVWriter) Write(ctx context.Context, records []crawler.ListingRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = ""
	if err := w.write(ctx, records); err != nil {
		return err
	}
	w.written = w.Path
	return nil
}

func (w *CSVWriter) write(ctx context.Context, records []crawler.ListingRecord) (err error) {
	if len(records) == 0 {
		return ErrNoRecords
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(w.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.Path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(tmp)
	if err := cw.Write(w.header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(w.row(rec)); err != nil {
			return fmt.Errorf("write row %s: %w", rec.ListingURL, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod csv: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close csv: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.Path); err != nil {
		return fmt.Errorf("rename csv: %w", err)
	}
	return nil
}

func (w *CSVWriter) header() []string {
	cols := append([]string(nil), crawler.Columns...)
	if w.IncludeStatus {
		cols = append(cols, "status")
	}
	return cols
}

func (w *CSVWriter) row(rec crawler.ListingRecord) []string {
	row := rec.Row()
	if w.IncludeStatus {
		row = append(row, string(rec.Status))
	}
	return row
}
