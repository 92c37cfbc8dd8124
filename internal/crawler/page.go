package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is an immutable snapshot of a rendered document. Extraction works on
// snapshots only, so it never touches the live browser.
type Page struct {
	// URL is the final document URL after redirects.
	URL      string
	HTML     string
	doc      *goquery.Document
	bodyText string
}

// NewPage parses html into a snapshot. bodyText is the rendered inner text of
// the body as reported by the browser; when empty it is derived from the
// markup.
func NewPage(pageURL, html, bodyText string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	if base, perr := url.Parse(pageURL); perr == nil {
		doc.Url = base
	}
	if strings.TrimSpace(bodyText) == "" {
		bodyText = InnerText(doc.Find("body"))
	}
	return &Page{
		URL:      pageURL,
		HTML:     html,
		doc:      doc,
		bodyText: bodyText,
	}, nil
}

// Doc returns the parsed document.
func (p *Page) Doc() *goquery.Document {
	return p.doc
}

// BodyText returns the rendered text of the body, one block per line.
func (p *Page) BodyText() string {
	return p.bodyText
}

var (
	blockTags = map[string]bool{
		"address": true, "article": true, "aside": true, "blockquote": true,
		"button": true, "dd": true, "div": true, "dl": true, "dt": true,
		"fieldset": true, "figcaption": true, "figure": true, "footer": true,
		"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
		"h6": true, "header": true, "hr": true, "li": true, "main": true,
		"nav": true, "ol": true, "p": true, "pre": true, "section": true,
		"table": true, "tr": true, "ul": true,
	}
	skipTags = map[string]bool{
		"script": true, "style": true, "noscript": true, "template": true,
		"head": true, "svg": true,
	}
	spaceRun = regexp.MustCompile(`\s+`)
)

// InnerText approximates the browser's innerText for sel: whitespace inside
// text nodes collapses to one space and block elements start new lines.
func InnerText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Each(func(_ int, s *goquery.Selection) {
		writeText(s, &b)
		b.WriteByte('\n')
	})
	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func writeText(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		switch {
		case name == "#text":
			b.WriteString(spaceRun.ReplaceAllString(c.Text(), " "))
		case name == "br":
			b.WriteByte('\n')
		case skipTags[name], strings.HasPrefix(name, "#"):
		case blockTags[name]:
			b.WriteByte('\n')
			writeText(c, b)
			b.WriteByte('\n')
		default:
			writeText(c, b)
		}
	})
}
