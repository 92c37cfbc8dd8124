package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
	"github.com/JakeFAU/listing-host-crawler/internal/crawler/crawlertest"
)

const searchURL = "https://www.airbnb.fr/s/Paris/homes"

func links(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">listing</a>`, h)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestCollectStopsAtCap(t *testing.T) {
	t.Parallel()

	var hrefs []string
	for i := range 10 {
		hrefs = append(hrefs, fmt.Sprintf("/rooms/%d", i))
	}
	sess := &crawlertest.FakeSession{Frames: map[string][]string{searchURL: {links(hrefs...)}}}

	got, err := New(Config{}, nil).Collect(context.Background(), sess, searchURL, 3)
	require.NoError(t, err)
	require.Equal(t, []crawler.ListingURL{
		"https://www.airbnb.fr/rooms/0",
		"https://www.airbnb.fr/rooms/1",
		"https://www.airbnb.fr/rooms/2",
	}, got)
	require.Zero(t, sess.Scrolls())
}

func TestCollectDeduplicatesAcrossScrolls(t *testing.T) {
	t.Parallel()

	sess := &crawlertest.FakeSession{Frames: map[string][]string{searchURL: {
		links("/rooms/1?check_in=2024-01-01", "/rooms/2", "/rooms/1#photos", "/users/show/4"),
		links("/rooms/1", "/rooms/2", "/rooms/3", "/experiences/rooms/9", "https://www.airbnb.fr/rooms/3/"),
	}}}

	got, err := New(Config{MaxScrolls: 3}, nil).Collect(context.Background(), sess, searchURL, 50)
	require.NoError(t, err)
	require.Equal(t, []crawler.ListingURL{
		"https://www.airbnb.fr/rooms/1",
		"https://www.airbnb.fr/rooms/2",
		"https://www.airbnb.fr/rooms/3",
	}, got)
	require.Equal(t, 3, sess.Scrolls())
	require.Equal(t, []string{searchURL}, sess.Navigations())
}

func TestCollectIgnoresConsentFailure(t *testing.T) {
	t.Parallel()

	sess := &crawlertest.FakeSession{
		Frames:   map[string][]string{searchURL: {links("/rooms/7")}},
		ClickErr: errors.New("no button"),
	}

	got, err := New(Config{MaxScrolls: 1}, nil).Collect(context.Background(), sess, searchURL, 5)
	require.NoError(t, err)
	require.Equal(t, []crawler.ListingURL{"https://www.airbnb.fr/rooms/7"}, got)
	require.Equal(t, 1, sess.Clicks())
}

func TestConsentPhrasesAvoidCommonButtonLabels(t *testing.T) {
	t.Parallel()

	for _, label := range []string{"Cookie settings", "Book", "Facebook", "Paramètres des cookies"} {
		for _, phrase := range ConsentPhrases {
			require.NotContains(t, strings.ToLower(label), strings.ToLower(phrase), label)
		}
	}
}

func TestCollectNavigationFailure(t *testing.T) {
	t.Parallel()

	sess := &crawlertest.FakeSession{NavigateErr: map[string]error{searchURL: errors.New("net::ERR_TIMED_OUT")}}

	got, err := New(Config{}, nil).Collect(context.Background(), sess, searchURL, 5)
	require.ErrorContains(t, err, "ERR_TIMED_OUT")
	require.Empty(t, got)
}

func TestCollectZeroCap(t *testing.T) {
	t.Parallel()

	sess := &crawlertest.FakeSession{}
	got, err := New(Config{}, nil).Collect(context.Background(), sess, searchURL, 0)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Empty(t, sess.Navigations())
}

func TestCollectCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sess := &crawlertest.FakeSession{Frames: map[string][]string{searchURL: {links("/rooms/1")}}}

	_, err := New(Config{}, nil).Collect(ctx, sess, searchURL, 5)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCollectResultIsBoundedAndUnique(t *testing.T) {
	t.Parallel()

	frames := []string{
		links("/rooms/1", "/rooms/2", "/rooms/2"),
		links("/rooms/3", "/rooms/1", "/rooms/4"),
		links("/rooms/5", "/rooms/6"),
	}
	for limit := 1; limit <= 8; limit++ {
		sess := &crawlertest.FakeSession{Frames: map[string][]string{searchURL: frames}}
		got, err := New(Config{MaxScrolls: 5}, nil).Collect(context.Background(), sess, searchURL, limit)
		require.NoError(t, err)
		require.LessOrEqual(t, len(got), limit)
		seen := map[crawler.ListingURL]bool{}
		for _, u := range got {
			require.False(t, seen[u], "duplicate %s", u)
			seen[u] = true
		}
	}
}
