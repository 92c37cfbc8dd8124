package extract

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	spaceRun     = regexp.MustCompile(`\s+`)
)

// fold normalizes s to NFC and applies Unicode case folding so phrases
// compare equal regardless of case or composition.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// containsFold reports whether s contains any of phrases, ignoring case.
func containsFold(s string, phrases []string) bool {
	fs := fold(s)
	for _, p := range phrases {
		if p != "" && strings.Contains(fs, fold(p)) {
			return true
		}
	}
	return false
}

// cleanText strips markup from a value taken out of the page and collapses
// whitespace.
func cleanText(s string) string {
	s = html.UnescapeString(strictPolicy.Sanitize(s))
	return strings.TrimSpace(spaceRun.ReplaceAllString(normalizeText(s), " "))
}

// phraseRegexp compiles a case-insensitive alternation of literal phrases
// matched as whole words. Whitespace inside a phrase matches any whitespace
// run and apostrophes match both the straight and the typographic form.
// A match may include the single non-letter preceding the phrase.
func phraseRegexp(phrases []string) *regexp.Regexp {
	parts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		q := regexp.QuoteMeta(norm.NFC.String(p))
		q = spaceRun.ReplaceAllString(q, `\s+`)
		q = strings.ReplaceAll(q, "'", "['’]")
		parts = append(parts, q)
	}
	return regexp.MustCompile(`(?i)(?:^|[^\pL])(?:` + strings.Join(parts, "|") + `)(?:[^\pL]|$)`)
}

var spaceReplacer = strings.NewReplacer("\u00a0", " ", "\u202f", " ", "\u2009", " ")

// normalizeText prepares rendered text for phrase matching: NFC composition
// and no-break spaces turned into plain ones.
func normalizeText(s string) string {
	return spaceReplacer.Replace(norm.NFC.String(s))
}
