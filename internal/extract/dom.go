package extract

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

const profileSelector = `a[href*="/users/show/"], a[href*="/users/profile/"]`

// hostMarker returns the innermost element whose text matches the locale's
// host-section phrase, or an empty selection.
func hostMarker(page *crawler.Page, loc Locale) *goquery.Selection {
	return innermost(page.Doc().Find("body"), loc.HostSection)
}

func innermost(root *goquery.Selection, re *regexp.Regexp) *goquery.Selection {
	matches := func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "script" || goquery.NodeName(s) == "style" {
			return false
		}
		return re.MatchString(normalizeText(s.Text()))
	}
	var found *goquery.Selection
	root.Find("*").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if !matches(i, s) {
			return true
		}
		if s.Children().FilterFunction(matches).Length() > 0 {
			return true
		}
		found = s
		return false
	})
	if found == nil {
		return root.Slice(0, 0)
	}
	return found
}

// scopes returns sel followed by up to levels of its ancestors.
func scopes(sel *goquery.Selection, levels int) []*goquery.Selection {
	if sel.Length() == 0 {
		return nil
	}
	out := []*goquery.Selection{sel}
	cur := sel
	for range levels {
		cur = cur.Parent()
		if cur.Length() == 0 || goquery.NodeName(cur) == "html" {
			break
		}
		out = append(out, cur)
	}
	return out
}

// profileLink returns the first host profile URL inside scope, resolved
// against base.
func profileLink(scope *goquery.Selection, base string) (string, bool) {
	var link string
	scope.Find(profileSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if u, ok := resolveProfile(a, base); ok {
			link = u
			return false
		}
		return true
	})
	return link, link != ""
}

func resolveProfile(a *goquery.Selection, base string) (string, bool) {
	href, ok := a.Attr("href")
	if !ok {
		return "", false
	}
	u, err := crawler.ResolveURL(base, href)
	if err != nil || !crawler.IsProfileHref(u) {
		return "", false
	}
	return u, true
}

// scopeText is the rendered text of sel with line structure kept.
func scopeText(sel *goquery.Selection) string {
	return normalizeText(crawler.InnerText(sel))
}
