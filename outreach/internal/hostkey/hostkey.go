// Package hostkey derives the domain keys used for opt-out matching and
// per-host politeness.
//
// Every component that groups traffic by host (opt-out lookup, the 7-day
// politeness check, the batch serialization lock) goes through this package
// so that they agree on what "the same host" means.
package hostkey

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// Normalize lowercases a hostname, converts IDN labels to their ASCII form
// and strips a leading "www.".
func Normalize(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	h = strings.TrimSuffix(h, ".")
	if a, err := idna.Lookup.ToASCII(h); err == nil && a != "" {
		h = a
	}
	return strings.TrimPrefix(h, "www.")
}

// Domain returns the normalized host of an absolute URL. Inputs that are not
// absolute URLs ("example.com/path", "www.Example.com") fall back to the
// first path segment after an optional http(s) scheme.
func Domain(input string) string {
	if u, err := url.Parse(strings.TrimSpace(input)); err == nil && u.Scheme != "" && u.Host != "" {
		return Normalize(u.Hostname())
	}
	s := strings.TrimSpace(input)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "https://"):
		s = s[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		s = s[len("http://"):]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return Normalize(s)
}

// OptOutCandidates lists the registry keys that suppress input: the
// normalized domain, its bare variant and its last two labels.
func OptOutCandidates(input string) []string {
	domain := Domain(input)
	out := []string{domain}
	add := func(c string) {
		if c == "" {
			return
		}
		for _, existing := range out {
			if existing == c {
				return
			}
		}
		out = append(out, c)
	}
	add(strings.TrimPrefix(domain, "www."))

	var labels []string
	for _, l := range strings.Split(domain, ".") {
		if l != "" {
			labels = append(labels, l)
		}
	}
	if len(labels) >= 2 {
		add(strings.Join(labels[len(labels)-2:], "."))
	}
	return out
}

// PolitenessKey groups contact addresses that must not be hit concurrently
// or more than once per politeness window: "github.com/<owner>/<repo>" for
// GitHub repositories, the bare hostname otherwise.
func PolitenessKey(input string) string {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Domain(input)
	}
	host := Normalize(u.Hostname())
	if host == "github.com" {
		if owner, repo := firstTwoSegments(u.Path); owner != "" && repo != "" {
			return strings.ToLower(host + "/" + owner + "/" + repo)
		}
	}
	return host
}

// ParseGitHubRepo extracts owner and repository from a github.com URL.
// A trailing ".git" is dropped from the repository name.
func ParseGitHubRepo(input string) (owner, repo string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil || strings.ToLower(u.Hostname()) != "github.com" {
		return "", "", false
	}
	owner, repo = firstTwoSegments(u.Path)
	if len(repo) > 4 && strings.EqualFold(repo[len(repo)-4:], ".git") {
		repo = repo[:len(repo)-4]
	}
	if owner == "" || repo == "" {
		return "", "", false
	}
	return owner, repo, true
}

// Origin returns scheme://host[:port] of an absolute http(s) URL.
func Origin(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || u.Hostname() == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	return scheme + "://" + strings.ToLower(u.Host), true
}

// IsHTTPURL reports whether raw parses as an absolute http(s) URL with a host.
func IsHTTPURL(raw string) bool {
	_, ok := Origin(raw)
	return ok
}

func firstTwoSegments(path string) (string, string) {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
			if len(segs) == 2 {
				break
			}
		}
	}
	switch len(segs) {
	case 2:
		return segs[0], segs[1]
	case 1:
		return segs[0], ""
	}
	return "", ""
}
