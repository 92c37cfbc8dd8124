package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPageDerivesBodyText(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>x</title><script>var a = "hidden";</script></head>
<body>
  <h1>Sunny   loft</h1>
  <div>Votre hôte : <span>Marie</span></div>
  <p>line one<br>line two</p>
</body></html>`

	page, err := NewPage("https://www.airbnb.fr/rooms/1", html, "")
	require.NoError(t, err)
	require.Equal(t, "Sunny loft\nVotre hôte : Marie\nline one\nline two", page.BodyText())
	require.Equal(t, "https://www.airbnb.fr/rooms/1", page.Doc().Url.String())
}

func TestNewPagePrefersRenderedText(t *testing.T) {
	t.Parallel()

	page, err := NewPage("https://example.com", "<body><p>markup</p></body>", "rendered text")
	require.NoError(t, err)
	require.Equal(t, "rendered text", page.BodyText())
}
