// Package targets reads the list of search result pages to crawl.
package targets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

// ErrNoTargets is returned when a source yields no target.
var ErrNoTargets = errors.New("no search targets")

// Read parses one target per line. Lines are trimmed; blank lines and lines
// starting with '#' are skipped. Duplicates are kept in order.
func Read(r io.Reader) ([]crawler.SearchTarget, error) {
	var out []crawler.SearchTarget
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, crawler.SearchTarget(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan targets: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNoTargets
	}
	return out, nil
}

// ReadFile reads targets from path.
func ReadFile(path string) ([]crawler.SearchTarget, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets: %w", err)
	}
	defer f.Close()
	targets, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return targets, nil
}

// File is a crawler.TargetSource backed by a text file.
type File string

var _ crawler.TargetSource = File("")

// Targets implements crawler.TargetSource.
func (f File) Targets(ctx context.Context) ([]crawler.SearchTarget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadFile(string(f))
}
