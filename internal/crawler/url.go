package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	listingPathMarker    = "/rooms/"
	experiencePathMarker = "experiences"
)

var profilePath = regexp.MustCompile(`/users/(?:show|profile)/[A-Za-z0-9_-]+`)

// ErrUnsupportedURL is returned for URLs that are not absolute http(s) URLs
// once resolved.
var ErrUnsupportedURL = errors.New("unsupported url")

// ResolveURL resolves href against base and returns the absolute URL with
// its query string and fragment removed, scheme and host lowercased and
// default ports dropped.
func ResolveURL(base, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	if base != "" {
		b, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("parse base url: %w", err)
		}
		ref = b.ResolveReference(ref)
	}
	ref.Scheme = strings.ToLower(ref.Scheme)
	if (ref.Scheme != "http" && ref.Scheme != "https") || ref.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, href)
	}
	ref.Host = strings.ToLower(ref.Host)
	if ref.Scheme == "http" {
		ref.Host = strings.TrimSuffix(ref.Host, ":80")
	}
	if ref.Scheme == "https" {
		ref.Host = strings.TrimSuffix(ref.Host, ":443")
	}
	ref.RawQuery = ""
	ref.ForceQuery = false
	ref.Fragment = ""
	ref.RawFragment = ""
	ref.User = nil
	return ref.String(), nil
}

// CanonicalizeListingURL resolves href against base and reduces it to the
// canonical listing form used as the deduplication key. It is idempotent.
func CanonicalizeListingURL(base, href string) (ListingURL, error) {
	resolved, err := ResolveURL(base, href)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(resolved)
	if err != nil {
		return "", fmt.Errorf("parse resolved url: %w", err)
	}
	if u.Path != "" {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = strings.TrimRight(u.RawPath, "/")
		if u.Path == "" {
			u.Path = "/"
			u.RawPath = ""
		}
	}
	return ListingURL(u.String()), nil
}

// IsListingHref reports whether href points at a listing page and not at an
// experience.
func IsListingHref(href string) bool {
	return strings.Contains(href, listingPathMarker) && !strings.Contains(href, experiencePathMarker)
}

// IsProfileHref reports whether href has the shape of a user profile link.
func IsProfileHref(href string) bool {
	return profilePath.MatchString(href)
}

// Host returns the lowercased host of rawURL, or "unknown".
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
