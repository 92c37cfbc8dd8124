package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeListingURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		href string
		want ListingURL
	}{
		{
			name: "relative with query",
			base: "https://www.airbnb.fr/s/Dubai/homes?adults=2",
			href: "/rooms/12345?check_in=2024-01-01&source_impression_id=p3",
			want: "https://www.airbnb.fr/rooms/12345",
		},
		{
			name: "absolute mixed case host and default port",
			base: "",
			href: "HTTPS://WWW.Airbnb.com:443/rooms/987#photos",
			want: "https://www.airbnb.com/rooms/987",
		},
		{
			name: "trailing slash",
			base: "https://www.airbnb.com/",
			href: "rooms/55/",
			want: "https://www.airbnb.com/rooms/55",
		},
		{
			name: "repeated trailing slashes",
			base: "",
			href: "https://www.airbnb.fr/rooms/1//?a=1",
			want: "https://www.airbnb.fr/rooms/1",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CanonicalizeListingURL(tt.base, tt.href)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalizeListingURLIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"https://www.airbnb.com/rooms/1?a=b",
		"https://www.airbnb.com/rooms/1/",
		"http://example.com:80/rooms/plus/2?x#y",
		"https://example.com",
		"https://example.com/",
		"https://h/rooms/1//?a=1",
		"https://www.airbnb.fr/rooms/1///",
	}
	for _, in := range inputs {
		once, err := CanonicalizeListingURL("", in)
		require.NoError(t, err)
		twice, err := CanonicalizeListingURL("", once.String())
		require.NoError(t, err)
		require.Equal(t, once, twice, "canonicalize should be idempotent for %q", in)
	}
}

func TestCanonicalizeListingURLIgnoresQuery(t *testing.T) {
	t.Parallel()

	a, err := CanonicalizeListingURL("", "https://www.airbnb.com/rooms/42?adults=1")
	require.NoError(t, err)
	b, err := CanonicalizeListingURL("", "https://www.airbnb.com/rooms/42?adults=3&children=2")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestCanonicalizeListingURLRejectsNonHTTP(t *testing.T) {
	t.Parallel()

	_, err := CanonicalizeListingURL("", "javascript:void(0)")
	require.ErrorIs(t, err, ErrUnsupportedURL)
	_, err = CanonicalizeListingURL("", "/rooms/1")
	require.ErrorIs(t, err, ErrUnsupportedURL)
}

func TestListingAndProfileHrefs(t *testing.T) {
	t.Parallel()

	require.True(t, IsListingHref("/rooms/123?adults=2"))
	require.False(t, IsListingHref("/experiences/456"))
	require.False(t, IsListingHref("/rooms/experiences/1"))
	require.False(t, IsListingHref("/users/show/1"))

	require.True(t, IsProfileHref("/users/show/98765"))
	require.True(t, IsProfileHref("https://www.airbnb.fr/users/profile/1468373284"))
	require.False(t, IsProfileHref("/users/"))
}

func TestHost(t *testing.T) {
	t.Parallel()

	require.Equal(t, "www.airbnb.com", Host("https://WWW.airbnb.com/rooms/1"))
	require.Equal(t, "unknown", Host("::not a url"))
}
