// Package urlx holds the URL normalization rules shared by registry dedup,
// presence merging and the origin guard.
package urlx

import (
	"net/url"
	"strings"
)

// Base strips query and fragment from raw and returns scheme+host+path, the
// deduplication key for listings and for presence merging. A missing scheme
// defaults to https.
func Base(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// Not parseable as a URL; fall back to a manual query cut so dedup
		// still groups identical malformed submissions.
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.Scheme + "://" + u.Host + u.Path
}

// Host returns the lowercase host of raw with any leading "www." removed.
// Used by the origin guard, which treats example.com and www.example.com as
// the same site.
func Host(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Domain returns the bare host (with port) of raw, used as the fallback
// display name when a heartbeat URL matches no listing.
func Domain(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
