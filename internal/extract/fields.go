package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

// Field names used in outcomes, logs and metrics.
const (
	FieldTitle       = "listing_title"
	FieldLicense     = "license_code"
	FieldHostURL     = "host_url"
	FieldHostName    = "host_name"
	FieldHostRating  = "host_rating"
	FieldHostYears   = "host_years"
	FieldHostReviews = "host_reviews_count"
)

const (
	licenseWindow      = 1000
	hostSectionLevels  = 4
	headingScopeLevels = 3
	shortHeadingLimit  = 50
	firstProfileLinks  = 3
	reviewRatingWindow = 200
)

var (
	licensePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b[A-Z]{3}-[A-Z]{3}-[A-Z0-9]{5,}\b`),
		regexp.MustCompile(`\b[A-Z]{2,4}-[A-Z0-9]{4,8}\b`),
		regexp.MustCompile(`\b\d{6,8}\b`),
	}

	dateShape      = regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{2,4}$`)
	digitsOnly     = regexp.MustCompile(`^\d+$`)
	amenityPhrases = []string{
		"room", "bed", "bath", "guest",
		"chambre", "lit", "salle", "voyageur",
		"habitación", "cama", "baño",
		"zimmer", "bett", "bad",
	}
)

func titleStrategies() []Strategy {
	return []Strategy{
		{Name: "h1", Fn: func(p *crawler.Page) (string, bool) {
			v := cleanText(crawler.InnerText(p.Doc().Find("h1").First()))
			return v, v != ""
		}},
		{Name: "og-title", Fn: func(p *crawler.Page) (string, bool) {
			content, _ := p.Doc().Find(`meta[property="og:title"]`).First().Attr("content")
			v := cleanText(content)
			return v, v != ""
		}},
	}
}

func licenseStrategies(locales []Locale) []Strategy {
	return []Strategy{
		{Name: "registration-section", Fn: func(p *crawler.Page) (string, bool) {
			text := normalizeText(p.BodyText())
			section, ok := licenseSection(text, locales)
			if !ok {
				return "", false
			}
			return findLicense(section, licensePatterns)
		}},
		{Name: "page-text", Fn: func(p *crawler.Page) (string, bool) {
			return findLicense(normalizeText(p.BodyText()), licensePatterns)
		}},
	}
}

// licenseSection returns the text following the first section keyword of
// the first locale that has one.
func licenseSection(text string, locales []Locale) (string, bool) {
	for _, loc := range locales {
		idx := loc.LicenseSections.FindStringIndex(text)
		if idx == nil {
			continue
		}
		return runeWindow(text[idx[0]:], licenseWindow), true
	}
	return "", false
}

func runeWindow(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for range n {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}

// findLicense applies patterns in order and returns the first candidate that
// does not look like a date.
func findLicense(text string, patterns []*regexp.Regexp) (string, bool) {
	for _, re := range patterns {
		for _, m := range re.FindAllStringIndex(text, -1) {
			candidate := text[m[0]:m[1]]
			if rejectLicense(text, candidate, m[0], m[1]) {
				continue
			}
			return candidate, true
		}
	}
	return "", false
}

// rejectLicense drops dates and bare numbers that are only one part of a
// separator-joined token such as a date or phone number.
func rejectLicense(text, candidate string, start, end int) bool {
	if dateShape.MatchString(candidate) {
		return true
	}
	if !digitsOnly.MatchString(candidate) {
		return false
	}
	return surroundingToken(text, start, end) != candidate
}

// surroundingToken widens [start,end) over digits and date separators.
func surroundingToken(text string, start, end int) string {
	isPart := func(b byte) bool {
		return (b >= '0' && b <= '9') || b == '-' || b == '/' || b == '.'
	}
	for start > 0 && isPart(text[start-1]) {
		start--
	}
	for end < len(text) && isPart(text[end]) {
		end++
	}
	return strings.Trim(text[start:end], "-/.")
}

func hostURLStrategies(locales []Locale) []Strategy {
	return []Strategy{
		{Name: "host-section", Fn: func(p *crawler.Page) (string, bool) {
			for _, loc := range locales {
				for _, scope := range scopes(hostMarker(p, loc), hostSectionLevels) {
					if u, ok := profileLink(scope, p.URL); ok {
						return u, true
					}
				}
			}
			return "", false
		}},
		{Name: "view-profile-link", Fn: func(p *crawler.Page) (string, bool) {
			var phrases []string
			for _, loc := range locales {
				phrases = append(phrases, loc.ViewProfile...)
			}
			var link string
			p.Doc().Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
				if !containsFold(a.Text(), phrases) {
					return true
				}
				if u, ok := resolveProfile(a, p.URL); ok {
					link = u
					return false
				}
				return true
			})
			return link, link != ""
		}},
		{Name: "short-heading", Fn: func(p *crawler.Page) (string, bool) {
			var link string
			p.Doc().Find("h2, h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
				text := cleanText(h.Text())
				if text == "" || utf8.RuneCountInString(text) >= shortHeadingLimit || containsFold(text, amenityPhrases) {
					return true
				}
				for _, scope := range scopes(h, headingScopeLevels)[1:] {
					if u, ok := profileLink(scope, p.URL); ok {
						link = u
						return false
					}
				}
				return true
			})
			return link, link != ""
		}},
		{Name: "first-profile-link", Fn: func(p *crawler.Page) (string, bool) {
			anchors := p.Doc().Find(profileSelector)
			for i := range min(anchors.Length(), firstProfileLinks) {
				if u, ok := resolveProfile(anchors.Eq(i), p.URL); ok {
					return u, true
				}
			}
			return "", false
		}},
	}
}

func hostNameStrategies(locales []Locale) []Strategy {
	return []Strategy{
		{Name: "section-anchor", Fn: func(p *crawler.Page) (string, bool) {
			for _, loc := range locales {
				for _, scope := range scopes(hostMarker(p, loc), headingScopeLevels) {
					if name, ok := hostName(scopeText(scope), loc); ok {
						return name, true
					}
				}
			}
			return "", false
		}},
		{Name: "body-anchor", Fn: func(p *crawler.Page) (string, bool) {
			text := normalizeText(p.BodyText())
			for _, loc := range locales {
				if name, ok := hostName(text, loc); ok {
					return name, true
				}
			}
			return "", false
		}},
		{Name: "ordinal-h2", Fn: func(p *crawler.Page) (string, bool) {
			v := cleanText(p.Doc().Find("h2").Eq(1).Text())
			return v, v != ""
		}},
	}
}

func hostName(text string, loc Locale) (string, bool) {
	m := loc.HostName.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	name := strings.Trim(cleanText(m[1]), " ·•|-–,")
	return name, name != ""
}

func ratingStrategies(locales []Locale) []Strategy {
	return []Strategy{
		{Name: "host-section", Fn: func(p *crawler.Page) (string, bool) {
			return inHostSection(p, locales, rating)
		}},
		{Name: "review-span", Fn: func(p *crawler.Page) (string, bool) {
			text := normalizeText(p.BodyText())
			for _, loc := range locales {
				if _, r, ok := reviewSpan(text, loc); ok {
					return r, true
				}
			}
			return "", false
		}},
	}
}

func reviewsStrategies(locales []Locale) []Strategy {
	return []Strategy{
		{Name: "host-section", Fn: func(p *crawler.Page) (string, bool) {
			return inHostSection(p, locales, reviewCount)
		}},
		{Name: "review-span", Fn: func(p *crawler.Page) (string, bool) {
			text := normalizeText(p.BodyText())
			for _, loc := range locales {
				if n, _, ok := reviewSpan(text, loc); ok {
					return n, true
				}
			}
			return "", false
		}},
	}
}

func tenureStrategies(locales []Locale) []Strategy {
	return []Strategy{
		{Name: "host-section", Fn: func(p *crawler.Page) (string, bool) {
			return inHostSection(p, locales, tenure)
		}},
		{Name: "body-text", Fn: func(p *crawler.Page) (string, bool) {
			text := normalizeText(p.BodyText())
			for _, loc := range locales {
				if v, ok := tenure(text, loc); ok {
					return v, true
				}
			}
			return "", false
		}},
	}
}

// inHostSection applies find to the host card of each locale, widening the
// scope one ancestor at a time.
func inHostSection(p *crawler.Page, locales []Locale, find func(string, Locale) (string, bool)) (string, bool) {
	for _, loc := range locales {
		for _, scope := range scopes(hostMarker(p, loc), hostSectionLevels) {
			if v, ok := find(scopeText(scope), loc); ok {
				return v, true
			}
		}
	}
	return "", false
}

func rating(text string, loc Locale) (string, bool) {
	for _, m := range loc.Rating.FindAllStringSubmatch(text, -1) {
		if v, ok := normalizeRating(m[1]); ok {
			return v, true
		}
	}
	return "", false
}

// normalizeRating turns a decimal comma into a period and checks the value
// lies in [0,5].
func normalizeRating(raw string) (string, bool) {
	v := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 5 {
		return "", false
	}
	return v, true
}

func reviewCount(text string, loc Locale) (string, bool) {
	m := loc.Reviews.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return digits(m[1])
}

func digits(s string) (string, bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String(), b.Len() > 0
}

// reviewSpan finds "N reviews" followed closely by "R out of 5".
func reviewSpan(text string, loc Locale) (string, string, bool) {
	for _, m := range loc.Reviews.FindAllStringSubmatchIndex(text, -1) {
		count, ok := digits(text[m[2]:m[3]])
		if !ok {
			continue
		}
		rest := runeWindow(text[m[1]:], reviewRatingWindow)
		if r, ok := rating(rest, loc); ok {
			return count, r, true
		}
	}
	return "", "", false
}

// tenure reports the earliest hosting duration in text. Months become
// "0 (N <unit>)".
func tenure(text string, loc Locale) (string, bool) {
	best, value := -1, ""
	consider := func(res []*regexp.Regexp, format func(string) string) {
		for _, re := range res {
			m := re.FindStringSubmatchIndex(text)
			if m == nil || (best >= 0 && m[0] >= best) {
				continue
			}
			best, value = m[0], format(text[m[2]:m[3]])
		}
	}
	consider(loc.TenureYears, func(n string) string { return n })
	consider(loc.TenureMonths, func(n string) string {
		return fmt.Sprintf("0 (%s %s)", n, loc.MonthsLabel)
	})
	return value, best >= 0
}
