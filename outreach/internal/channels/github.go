package channels

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hazyhaar/outreach/outreach/internal/hostkey"
)

// IssueLabel marks invitation issues; it is also the duplicate filter.
const IssueLabel = "agentlink-invitation"

// GitHubConfig configures the issue executor.
type GitHubConfig struct {
	Token  string
	APIURL string // Default: https://api.github.com.
}

// IssuePayload is the payload GitHub expects. Any value marshalling to
// {"title":...,"body":...} works too.
type IssuePayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// GitHub opens a labeled invitation issue on the target repository unless
// one already exists.
type GitHub struct {
	client *Client
	config GitHubConfig
}

// NewGitHub creates the issue executor.
func NewGitHub(c *Client, cfg GitHubConfig) *GitHub {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.github.com"
	}
	cfg.APIURL = strings.TrimSuffix(cfg.APIURL, "/")
	return &GitHub{client: c, config: cfg}
}

// Execute implements Executor. address is the repository URL.
func (e *GitHub) Execute(ctx context.Context, address string, payload any) Result {
	owner, repo, ok := hostkey.ParseGitHubRepo(address)
	if !ok {
		return Result{Error: "Invalid GitHub repository URL"}
	}
	if e.config.Token == "" {
		return Result{Error: "GITHUB_TOKEN is missing"}
	}
	issue, ok := payload.(IssuePayload)
	if !ok {
		if p, isPtr := payload.(*IssuePayload); isPtr && p != nil {
			issue = *p
		} else {
			return Result{Error: fmt.Sprintf("unsupported GitHub issue payload %T", payload)}
		}
	}

	header := map[string]string{
		"Accept":               "application/vnd.github+json",
		"Authorization":        "Bearer " + e.config.Token,
		"X-GitHub-Api-Version": "2022-11-28",
	}
	issuesURL := fmt.Sprintf("%s/repos/%s/%s/issues", e.config.APIURL, owner, repo)

	list, err := e.client.do(ctx, request{
		Method:  http.MethodGet,
		URL:     issuesURL + "?state=all&labels=" + IssueLabel + "&per_page=20",
		Header:  header,
		Timeout: e.client.config.ProbeTimeout,
	})
	if err != nil {
		return failure(&RequestError{Channel: GitHubIssue, URL: issuesURL, Cause: err})
	}
	if list.OK() && hasInvitationIssue(list.Body) {
		return Result{
			Success: true,
			Sent:    false,
			Status:  http.StatusOK,
			Note:    "An AgentLink invitation issue already exists for this repository",
		}
	}

	resp, err := e.client.do(ctx, request{
		Method: http.MethodPost,
		URL:    issuesURL,
		Header: header,
		Body: map[string]any{
			"title":  issue.Title,
			"body":   issue.Body,
			"labels": []string{IssueLabel},
		},
	})
	if err != nil {
		return failure(&RequestError{Channel: GitHubIssue, URL: issuesURL, Cause: err})
	}

	res := Result{
		Success:  resp.OK(),
		Sent:     resp.OK(),
		Status:   resp.Status,
		Response: e.client.decodeBody(resp),
	}
	if !resp.OK() {
		res.Error = "Failed to create GitHub issue"
		if msg := gjson.GetBytes(resp.Body, "message"); msg.Type == gjson.String {
			res.Error = msg.Str
		}
	}
	return res
}

func hasInvitationIssue(body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	found := false
	gjson.ParseBytes(body).ForEach(func(_, issue gjson.Result) bool {
		title := issue.Get("title")
		if title.Type == gjson.String && strings.Contains(strings.ToLower(title.Str), "agentlink") {
			found = true
			return false
		}
		return true
	})
	return found
}
