// Package detector recognizes listing pages that were replaced by an
// authentication wall.
package detector

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

// DefaultPhrases are the sign-in wordings checked in the page text.
var DefaultPhrases = []string{"sign in", "log in", "connexion", "iniciar sesión", "anmelden"}

var urlMarkers = []string{"/login", "/signup_login"}

// wallMarkers are DOM shapes that only appear on sign-in forms.
var wallMarkers = []string{
	`input[type="password"]`,
	`form[action*="login"]`,
}

const defaultTextThreshold = 2000

// Heuristic implements a handful of rule-based auth wall checks.
type Heuristic struct {
	Phrases []string
	// TextThreshold limits phrase matching to sparse pages; a full listing
	// page carries a "log in" menu entry too.
	TextThreshold int
}

// NewHeuristic creates a detector. Empty phrases select DefaultPhrases and a
// zero threshold selects 2000 characters.
func NewHeuristic(phrases []string, threshold int) *Heuristic {
	if len(phrases) == 0 {
		phrases = DefaultPhrases
	}
	if threshold <= 0 {
		threshold = defaultTextThreshold
	}
	return &Heuristic{Phrases: phrases, TextThreshold: threshold}
}

// IsAuthWall reports whether page looks like a sign-in page instead of the
// requested listing.
func (h *Heuristic) IsAuthWall(page *crawler.Page) bool {
	if page == nil {
		return false
	}
	lowerURL := strings.ToLower(page.URL)
	for _, marker := range urlMarkers {
		if strings.Contains(lowerURL, marker) {
			return true
		}
	}
	for _, marker := range wallMarkers {
		if page.Doc().Find(marker).Length() > 0 {
			return true
		}
	}
	text := page.BodyText()
	if utf8.RuneCountInString(text) >= h.TextThreshold {
		return false
	}
	// A Caser is stateful, so each call gets its own.
	fold := cases.Fold()
	folded := fold.String(norm.NFC.String(text))
	for _, phrase := range h.Phrases {
		if strings.Contains(folded, fold.String(phrase)) {
			return true
		}
	}
	return false
}
