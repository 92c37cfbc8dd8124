package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

func page(t *testing.T, url, body string) *crawler.Page {
	t.Helper()
	p, err := crawler.NewPage(url, "<html><body>"+body+"</body></html>", "")
	require.NoError(t, err)
	return p
}

func TestIsAuthWall(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(nil, 0)
	longListing := "<h1>Loft</h1><nav>Log in</nav><p>" + strings.Repeat("Beautiful view. ", 200) + "</p>"

	tests := []struct {
		name string
		url  string
		body string
		want bool
	}{
		{name: "login url", url: "https://www.airbnb.fr/login?redirect=rooms", body: "<p>Bienvenue</p>", want: true},
		{name: "password field", url: "https://www.airbnb.fr/rooms/1", body: `<form><input type="password"></form>`, want: true},
		{name: "french wall text", url: "https://www.airbnb.fr/rooms/1", body: "<p>Connexion ou inscription</p>", want: true},
		{name: "spanish wall text", url: "https://www.airbnb.es/rooms/1", body: "<p>Iniciar sesión</p>", want: true},
		{name: "full listing with menu", url: "https://www.airbnb.fr/rooms/1", body: longListing, want: false},
		{name: "plain listing", url: "https://www.airbnb.fr/rooms/1", body: "<h1>Loft</h1>", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, h.IsAuthWall(page(t, tt.url, tt.body)))
		})
	}
}

func TestIsAuthWallNilPage(t *testing.T) {
	t.Parallel()

	require.False(t, NewHeuristic(nil, 0).IsAuthWall(nil))
}

func TestCustomPhrases(t *testing.T) {
	t.Parallel()

	h := NewHeuristic([]string{"Accedi"}, 50)
	require.True(t, h.IsAuthWall(page(t, "https://www.airbnb.it/rooms/1", "<p>ACCEDI</p>")))
	require.False(t, h.IsAuthWall(page(t, "https://www.airbnb.it/rooms/1", "<p>"+strings.Repeat("x", 60)+" accedi</p>")))
}
