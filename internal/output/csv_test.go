package output

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

var scrapedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func sampleRecords() []crawler.ListingRecord {
	return []crawler.ListingRecord{
		crawler.NewRecord("https://www.airbnb.fr/rooms/1", crawler.Fields{
			Title:       "Studio, centre",
			LicenseCode: "PAR-MAR-AB123",
			HostName:    "Élodie",
			HostRating:  "4.9",
		}, scrapedAt, crawler.StatusOK),
		crawler.FloorRecord("https://www.airbnb.fr/rooms/2", scrapedAt, crawler.StatusPageError),
	}
}

func readCSV(t *testing.T, path string) (string, [][]string) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), "\ufeff"), "missing byte order mark")
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(raw), "\ufeff"))).ReadAll()
	require.NoError(t, err)
	return string(raw), rows
}

func TestCSVWriterWritesTable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hosts.csv")
	w := &CSVWriter{Path: path}
	require.NoError(t, w.Write(context.Background(), sampleRecords()))

	_, rows := readCSV(t, path)
	require.Len(t, rows, 3)
	require.Equal(t, crawler.Columns, rows[0])
	require.Equal(t, []string{
		"https://www.airbnb.fr/rooms/1", "Studio, centre", "PAR-MAR-AB123", "", "Élodie", "4.9", "", "",
		"2026-03-14T09:30:00Z",
	}, rows[1])
	require.Equal(t, "https://www.airbnb.fr/rooms/2", rows[2][0])
	require.Equal(t, "2026-03-14T09:30:00Z", rows[2][8])
}

func TestCSVWriterIncludesStatus(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "hosts.csv")
	w := &CSVWriter{Path: path, IncludeStatus: true}
	require.NoError(t, w.Write(context.Background(), sampleRecords()))

	_, rows := readCSV(t, path)
	require.Equal(t, "status", rows[0][len(rows[0])-1])
	require.Equal(t, "ok", rows[1][9])
	require.Equal(t, "page_error", rows[2][9])
}

func TestCSVWriterNoRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hosts.csv")
	err := (&CSVWriter{Path: path}).Write(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoRecords)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestCSVWriterReplacesAtomically(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.csv")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	require.NoError(t, (&CSVWriter{Path: path}).Write(context.Background(), sampleRecords()[:1]))
	_, rows := readCSV(t, path)
	require.Len(t, rows, 2)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file left behind")
}

func TestCSVWriterTableIsWorldReadable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hosts.csv")
	w := &CSVWriter{Path: path}
	require.NoError(t, w.Write(context.Background(), sampleRecords()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	written, ok := w.WrittenPath()
	require.True(t, ok)
	require.Equal(t, path, written)
}
