package scraper

import (
	"net/url"
	"strings"
)

// ResolveURL makes href absolute against origin and drops the fragment.
func ResolveURL(origin, href string) (string, bool) {
	u, ok := resolve(origin, href)
	if !ok {
		return "", false
	}
	return u.String(), true
}

// CanonicalURL resolves href against origin and strips everything that
// does not identify the posting: the fragment and every query parameter
// not listed in keep. The result is deterministic for a given posting.
func CanonicalURL(origin, href string, keep ...string) (string, bool) {
	u, ok := resolve(origin, href)
	if !ok {
		return "", false
	}

	query := u.Query()
	kept := url.Values{}
	for _, k := range keep {
		if v := query.Get(k); v != "" {
			kept.Set(k, v)
		}
	}
	u.RawQuery = kept.Encode()
	return u.String(), true
}

func resolve(origin, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return nil, false
	}

	base, err := url.Parse(origin)
	if err != nil {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}

	u := base.ResolveReference(ref)
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	return u, true
}
