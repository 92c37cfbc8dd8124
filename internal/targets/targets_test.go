package targets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

func TestRead(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []crawler.SearchTarget
		err   error
	}{
		{
			name:  "skips blanks and comments",
			input: "\ufeff# Paris\nhttps://www.airbnb.fr/s/Paris/homes\n\n   \n  https://www.airbnb.fr/s/Lyon/homes  \n#https://skip.me\n",
			want:  []crawler.SearchTarget{"https://www.airbnb.fr/s/Paris/homes", "https://www.airbnb.fr/s/Lyon/homes"},
		},
		{
			name:  "keeps duplicates in order",
			input: "b\na\nb\n",
			want:  []crawler.SearchTarget{"b", "a", "b"},
		},
		{
			name:  "crlf line endings",
			input: "a\r\nb\r\n",
			want:  []crawler.SearchTarget{"a", "b"},
		},
		{
			name:  "only comments",
			input: "# nothing\n\n",
			err:   ErrNoTargets,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Read(strings.NewReader(tc.input))
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "search_urls.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://www.airbnb.com/s/Rome/homes\n"), 0o600))

	got, err := File(path).Targets(context.Background())
	require.NoError(t, err)
	require.Equal(t, []crawler.SearchTarget{"https://www.airbnb.com/s/Rome/homes"}, got)

	_, err = ReadFile(filepath.Join(dir, "missing.txt"))
	require.ErrorContains(t, err, "open targets")

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = ReadFile(empty)
	require.ErrorIs(t, err, ErrNoTargets)
}
