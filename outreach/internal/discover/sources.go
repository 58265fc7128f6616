package discover

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/outreach/horosafe"
)

// UserAgent identifies importer traffic.
const UserAgent = "agentlink-importer/1.0"

// DefaultTopics are searched on GitHub when none are given.
var DefaultTopics = []string{"ai-agent", "chatbot", "llm-agent", "autonomous-agent"}

// Fetcher performs the source API calls.
type Fetcher struct {
	client         *http.Client
	githubAPI      string
	githubToken    string
	huggingFaceAPI string
}

// FetcherConfig configures a Fetcher. Empty API URLs mean production.
type FetcherConfig struct {
	GitHubAPIURL      string
	GitHubToken       string
	HuggingFaceAPIURL string
	Timeout           time.Duration
	Transport         http.RoundTripper
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.GitHubAPIURL == "" {
		cfg.GitHubAPIURL = "https://api.github.com"
	}
	if cfg.HuggingFaceAPIURL == "" {
		cfg.HuggingFaceAPIURL = "https://huggingface.co"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Fetcher{
		client:         &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		githubAPI:      strings.TrimSuffix(cfg.GitHubAPIURL, "/"),
		githubToken:    cfg.GitHubToken,
		huggingFaceAPI: strings.TrimSuffix(cfg.HuggingFaceAPIURL, "/"),
	}
}

func (f *Fetcher) getJSON(ctx context.Context, rawURL string, header map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", UserAgent)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	body, err := horosafe.LimitedReadAll(resp.Body, 10*horosafe.MaxResponseBody)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// GitHubOptions tunes a topic search.
type GitHubOptions struct {
	Topics   []string
	MinStars int
	Limit    int // per topic, 1..100
}

type githubRepo struct {
	Name            string   `json:"name"`
	FullName        string   `json:"full_name"`
	HTMLURL         string   `json:"html_url"`
	Description     *string  `json:"description"`
	StargazersCount int      `json:"stargazers_count"`
	Topics          []string `json:"topics"`
	Homepage        string   `json:"homepage"`
	UpdatedAt       string   `json:"updated_at"`
	Language        string   `json:"language"`
}

// GitHub searches repositories by topic. A failing topic is skipped; the
// search fails only when every topic failed.
func (f *Fetcher) GitHub(ctx context.Context, opts GitHubOptions) ([]Raw, error) {
	topics := opts.Topics
	if len(topics) == 0 {
		topics = DefaultTopics
	}
	limit := clamp(opts.Limit, 25, 1, 100)
	minStars := max(opts.MinStars, 0)

	header := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if f.githubToken != "" {
		header["Authorization"] = "Bearer " + f.githubToken
	}

	var (
		order   []string
		repos   = map[string]githubRepo{}
		lastErr error
		okCount int
	)
	for _, topic := range topics {
		q := url.QueryEscape(fmt.Sprintf("topic:%s stars:>=%d", topic, minStars))
		u := fmt.Sprintf("%s/search/repositories?q=%s&sort=updated&order=desc&per_page=%d", f.githubAPI, q, limit)
		var page struct {
			Items []githubRepo `json:"items"`
		}
		if err := f.getJSON(ctx, u, header, &page); err != nil {
			lastErr = fmt.Errorf("discover: github topic %s: %w", topic, err)
			continue
		}
		okCount++
		for _, r := range page.Items {
			if r.HTMLURL == "" {
				continue
			}
			if _, seen := repos[r.HTMLURL]; !seen {
				order = append(order, r.HTMLURL)
			}
			repos[r.HTMLURL] = r
		}
	}
	if okCount == 0 && lastErr != nil {
		return nil, lastErr
	}

	out := make([]Raw, 0, len(order))
	for _, u := range order {
		r := repos[u]
		desc := "GitHub repository " + r.FullName
		if r.Description != nil {
			desc = *r.Description
		}
		raw := Raw{
			Name:        r.Name,
			Description: desc,
			Skills:      r.Topics,
			Tags:        r.Topics,
			SourceURL:   r.HTMLURL,
			WebsiteURL:  r.HTMLURL,
			Extra: map[string]any{
				"full_name":        r.FullName,
				"stargazers_count": r.StargazersCount,
				"updated_at":       r.UpdatedAt,
			},
		}
		if r.Homepage != "" {
			raw.Extra["homepage"] = r.Homepage
		}
		if r.Language != "" {
			raw.Extra["language"] = r.Language
		}
		out = append(out, raw)
	}
	return out, nil
}

// HuggingFaceOptions tunes a Spaces listing.
type HuggingFaceOptions struct {
	Limit    int // 1..500
	MinLikes int
}

type hfSpace struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Likes        int      `json:"likes"`
	SDK          string   `json:"sdk"`
	Tags         []string `json:"tags"`
	Description  string   `json:"description"`
	LastModified string   `json:"lastModified"`
}

// HuggingFace lists Spaces with at least MinLikes likes.
func (f *Fetcher) HuggingFace(ctx context.Context, opts HuggingFaceOptions) ([]Raw, error) {
	limit := clamp(opts.Limit, 100, 1, 500)
	minLikes := max(opts.MinLikes, 0)

	var spaces []hfSpace
	if err := f.getJSON(ctx, fmt.Sprintf("%s/api/spaces?limit=%d", f.huggingFaceAPI, limit), nil, &spaces); err != nil {
		return nil, fmt.Errorf("discover: huggingface: %w", err)
	}

	out := make([]Raw, 0, len(spaces))
	for _, s := range spaces {
		if s.Likes < minLikes || s.ID == "" {
			continue
		}
		title := s.Title
		if title == "" {
			title = s.ID[strings.LastIndex(s.ID, "/")+1:]
		}
		tags := s.Tags
		if len(tags) > 20 {
			tags = tags[:20]
		}
		desc := s.Description
		if desc == "" {
			desc = "Hugging Face Space: " + title
		}
		u := "https://huggingface.co/spaces/" + s.ID
		raw := Raw{
			Name:        title,
			Description: desc,
			Skills:      tags,
			Tags:        tags,
			SourceURL:   u,
			WebsiteURL:  u,
			Extra: map[string]any{
				"likes":      s.Likes,
				"updated_at": s.LastModified,
			},
		}
		if s.SDK != "" {
			raw.Category = "Hugging Face " + s.SDK
		}
		out = append(out, raw)
	}
	return out, nil
}

func clamp(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	return min(max(v, lo), hi)
}
