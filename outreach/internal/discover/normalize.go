// Package discover imports candidate agents from public sources (GitHub
// topic search, Hugging Face Spaces, CSV uploads) into the catalog.
package discover

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/outreach/outreach/internal/hostkey"
	"github.com/hazyhaar/outreach/outreach/internal/sourcedata"
)

const (
	maxNameLen        = 120
	maxDescriptionLen = 500
	maxSkills         = 20
	defaultName       = "Unnamed Agent"
)

// Raw is one record as produced by a source, before normalization.
// Extra holds source-specific fields (stars, likes, updated_at...) kept in
// the target's source data for qualification.
type Raw struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Skills      []string       `json:"skills,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	SourceURL   string         `json:"sourceUrl"`
	EndpointURL string         `json:"endpointUrl,omitempty"`
	WebsiteURL  string         `json:"websiteUrl,omitempty"`
	Category    string         `json:"category,omitempty"`
	Protocols   []string       `json:"protocols,omitempty"`
	Extra       map[string]any `json:"-"`
}

// SourceData returns the raw record, Extra included, as an opaque value.
func (r Raw) SourceData() sourcedata.Value {
	b, err := json.Marshal(r)
	if err != nil {
		return sourcedata.Parse([]byte(`{}`))
	}
	if len(r.Extra) == 0 {
		return sourcedata.Parse(b)
	}
	m := map[string]any{}
	json.Unmarshal(b, &m)
	for k, v := range r.Extra {
		if _, taken := m[k]; !taken {
			m[k] = v
		}
	}
	return sourcedata.From(m)
}

// Normalized is the cleaned subset stored on the catalog row.
type Normalized struct {
	Name        string
	Description string
	Skills      []string
	Category    string
	EndpointURL string
	WebsiteURL  string
}

var categoryRules = []struct {
	category string
	keywords []string
}{
	{"Data & Analytics", []string{"weather", "forecast", "data", "analytics", "insight"}},
	{"Development Tools", []string{"code", "review", "debug", "test", "ci", "dev"}},
	{"Communication", []string{"translate", "language", "chat", "email", "support"}},
	{"Content Creation", []string{"write", "content", "seo", "copy", "blog"}},
	{"Automation", []string{"workflow", "agent", "automation", "orchestration"}},
}

var (
	markdownChars = regexp.MustCompile("[#*_`~>\\[\\]()]")
	spaces        = regexp.MustCompile(`\s+`)

	strict = bluemonday.StrictPolicy()
	md     = converter.NewConverter(converter.WithPlugins(base.NewBasePlugin(), commonmark.NewCommonmarkPlugin()))
)

// Normalize cleans a raw record.
func Normalize(r Raw) Normalized {
	name := truncate(strings.TrimSpace(r.Name), maxNameLen)
	if name == "" {
		name = defaultName
	}
	desc := ""
	if r.Description != "" {
		desc = truncate(StripMarkup(r.Description), maxDescriptionLen)
	}
	skills := normalizeSkills(r.Skills, r.Tags)
	return Normalized{
		Name:        name,
		Description: desc,
		Skills:      skills,
		Category:    inferCategory(desc, skills, r.Category),
		EndpointURL: httpURL(r.EndpointURL),
		WebsiteURL:  httpURL(r.WebsiteURL),
	}
}

// StripMarkup reduces HTML or Markdown text to single-spaced plain text.
func StripMarkup(s string) string {
	if strings.Contains(s, "<") {
		if out, err := md.ConvertString(s); err == nil {
			s = out
		}
		s = html.UnescapeString(strict.Sanitize(s))
	}
	s = markdownChars.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

func normalizeSkills(skills, tags []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, list := range [][]string{skills, tags} {
		for _, s := range list {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
			if len(out) == maxSkills {
				return out
			}
		}
	}
	return out
}

func inferCategory(desc string, skills []string, explicit string) string {
	if c := strings.TrimSpace(explicit); c != "" {
		return c
	}
	haystack := strings.ToLower(desc + " " + strings.Join(skills, " "))
	for _, rule := range categoryRules {
		for _, k := range rule.keywords {
			if strings.Contains(haystack, k) {
				return rule.category
			}
		}
	}
	return "General"
}

func httpURL(s string) string {
	s = strings.TrimSpace(s)
	if !hostkey.IsHTTPURL(s) {
		return ""
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
