package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

// ErrNothingToUpload is returned when the source produced no file in this run.
var ErrNothingToUpload = errors.New("no table written in this run")

// WrittenFile reports the local file produced by the current run.
type WrittenFile interface {
	WrittenPath() (string, bool)
}

// GCSUploader copies the CSV table written by a CSVWriter into a bucket. It
// must run after the CSVWriter in the sink list.
type GCSUploader struct {
	client *storage.Client
	bucket string
	prefix string
	source WrittenFile
	clock  crawler.Clock
	logger *zap.Logger
}

var _ crawler.RecordSink = (*GCSUploader)(nil)

// GCSConfig names the destination and the producer of the file to upload.
type GCSConfig struct {
	Bucket string
	Prefix string
	Source WrittenFile
}

// NewGCSUploader validates cfg.
func NewGCSUploader(client *storage.Client, cfg GCSConfig, clock crawler.Clock, logger *zap.Logger) (*GCSUploader, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.Source == nil {
		return nil, errors.New("source file is required")
	}
	if clock == nil {
		clock = crawler.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GCSUploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		source: cfg.Source,
		clock:  clock,
		logger: logger,
	}, nil
}

// Write uploads the file the source produced in this run under a
// timestamped object name. A file left over from an earlier run is never
// uploaded.
func (u *GCSUploader) Write(ctx context.Context, records []crawler.ListingRecord) error {
	if len(records) == 0 {
		return ErrNoRecords
	}
	source, ok := u.source.WrittenPath()
	if !ok {
		return fmt.Errorf("skip upload: %w", ErrNothingToUpload)
	}
	f, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open %s: %w", source, err)
	}
	defer f.Close()

	uri, err := u.put(ctx, u.objectName(source), f)
	if err != nil {
		return err
	}
	u.logger.Info("output uploaded", zap.String("uri", uri), zap.Int("records", len(records)))
	return nil
}

func (u *GCSUploader) objectName(source string) string {
	name := u.clock.Now().UTC().Format("20060102T150405Z") + "-" + filepath.Base(source)
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

func (u *GCSUploader) put(ctx context.Context, object string, r io.Reader) (string, error) {
	writer := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = "text/csv; charset=utf-8"
	if _, err := io.Copy(writer, r); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", u.bucket, object), nil
}
