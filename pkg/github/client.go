// Package github adapts go-github to the narrow set of repository, issue and
// pull request calls used by the admin gateway and the task automation worker.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v72/github"

	"github.com/sandgallery/sandgallery-backend/pkg/config"
)

const defaultBaseURL = "https://api.github.com/"

// ErrNotConfigured is returned when no token or repository is configured.
var ErrNotConfigured = errors.New("github client not configured")

// APIError is a non-2xx response from GitHub.
type APIError struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// IsNotFound reports whether err is a GitHub 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsAlreadyExists reports a 422 caused by creating a ref that already exists.
func IsAlreadyExists(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnprocessableEntity && strings.Contains(apiErr.Message, "already exists")
}

type Client struct {
	api      *gh.Client
	setupErr error
	token    string
	owner    string
	repo     string
}

func NewClient(cfg config.GitHubConfig) *Client {
	c := &Client{
		token: strings.TrimSpace(cfg.Token),
		owner: strings.TrimSpace(cfg.Owner),
		repo:  strings.TrimSpace(cfg.Repo),
	}
	c.api = gh.NewClient(&http.Client{Timeout: 30 * time.Second}).WithAuthToken(c.token)

	base := strings.TrimSpace(cfg.BaseURL)
	if base != "" && strings.TrimRight(base, "/")+"/" != defaultBaseURL {
		u, err := url.Parse(strings.TrimRight(base, "/") + "/")
		if err != nil {
			c.setupErr = fmt.Errorf("github base url %q: %w", base, err)
			return c
		}
		c.api.BaseURL = u
	}
	return c
}

func (c *Client) Configured() bool {
	return c != nil && c.token != "" && c.owner != "" && c.repo != ""
}

func (c *Client) Owner() string { return c.owner }
func (c *Client) Repo() string  { return c.repo }

func (c *Client) ready() error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	return c.setupErr
}

func (c *Client) GetRepository(ctx context.Context) (*Repository, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	repo, _, err := c.api.Repositories.Get(ctx, c.owner, c.repo)
	if err != nil {
		return nil, apiError(err)
	}
	out := toRepository(repo)
	return &out, nil
}

// ListRepositories lists the owner's repositories, most recently pushed first.
func (c *Client) ListRepositories(ctx context.Context, limit int) ([]Repository, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	repos, _, err := c.api.Repositories.ListByUser(ctx, c.owner, &gh.RepositoryListByUserOptions{
		Sort:        "pushed",
		ListOptions: gh.ListOptions{PerPage: clampPerPage(limit)},
	})
	if err != nil {
		return nil, apiError(err)
	}
	out := make([]Repository, 0, len(repos))
	for _, repo := range repos {
		out = append(out, toRepository(repo))
	}
	return out, nil
}

// RateLimit reports the core REST quota.
func (c *Client) RateLimit(ctx context.Context) (*RateLimit, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	limits, _, err := c.api.RateLimit.Get(ctx)
	if err != nil {
		return nil, apiError(err)
	}
	core := limits.GetCore()
	if core == nil {
		return &RateLimit{}, nil
	}
	return &RateLimit{Limit: core.Limit, Remaining: core.Remaining, Reset: core.Reset.Unix()}, nil
}

// ListIssues returns issues (pull requests filtered out), oldest first when
// ascending is set. label may be empty.
func (c *Client) ListIssues(ctx context.Context, state, label string, ascending bool, limit int) ([]Issue, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if state == "" {
		state = "open"
	}
	opts := &gh.IssueListByRepoOptions{
		State:       state,
		Sort:        "created",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: clampPerPage(limit)},
	}
	if ascending {
		opts.Direction = "asc"
	}
	if label != "" {
		opts.Labels = []string{label}
	}

	issues, _, err := c.api.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
	if err != nil {
		return nil, apiError(err)
	}
	out := make([]Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		out = append(out, toIssue(issue))
	}
	return out, nil
}

func (c *Client) CreateIssue(ctx context.Context, in NewIssue) (*Issue, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	req := &gh.IssueRequest{Title: gh.Ptr(in.Title)}
	if in.Body != "" {
		req.Body = gh.Ptr(in.Body)
	}
	if len(in.Labels) > 0 {
		req.Labels = &in.Labels
	}
	issue, _, err := c.api.Issues.Create(ctx, c.owner, c.repo, req)
	if err != nil {
		return nil, apiError(err)
	}
	out := toIssue(issue)
	return &out, nil
}

func (c *Client) UpdateIssue(ctx context.Context, number int, in IssueUpdate) (*Issue, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	req := &gh.IssueRequest{Title: in.Title, Body: in.Body, State: in.State}
	if in.Labels != nil {
		req.Labels = &in.Labels
	}
	issue, _, err := c.api.Issues.Edit(ctx, c.owner, c.repo, number, req)
	if err != nil {
		return nil, apiError(err)
	}
	out := toIssue(issue)
	return &out, nil
}

func (c *Client) AddLabels(ctx context.Context, number int, labels ...string) error {
	if err := c.ready(); err != nil {
		return err
	}
	_, _, err := c.api.Issues.AddLabelsToIssue(ctx, c.owner, c.repo, number, labels)
	return apiError(err)
}

// RemoveLabel ignores labels that are not present.
func (c *Client) RemoveLabel(ctx context.Context, number int, label string) error {
	if err := c.ready(); err != nil {
		return err
	}
	_, err := c.api.Issues.RemoveLabelForIssue(ctx, c.owner, c.repo, number, label)
	err = apiError(err)
	if IsNotFound(err) {
		return nil
	}
	return err
}

func (c *Client) CreateComment(ctx context.Context, number int, body string) (*Comment, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	comment, _, err := c.api.Issues.CreateComment(ctx, c.owner, c.repo, number, &gh.IssueComment{Body: gh.Ptr(body)})
	if err != nil {
		return nil, apiError(err)
	}
	return &Comment{ID: comment.GetID(), Body: comment.GetBody(), HTMLURL: comment.GetHTMLURL()}, nil
}

// GetContent fetches a file (content decoded) or lists a directory at ref.
func (c *Client) GetContent(ctx context.Context, path, ref string) (*Content, []Content, error) {
	if err := c.ready(); err != nil {
		return nil, nil, err
	}
	var opts *gh.RepositoryContentGetOptions
	if ref != "" {
		opts = &gh.RepositoryContentGetOptions{Ref: ref}
	}
	file, dir, _, err := c.api.Repositories.GetContents(ctx, c.owner, c.repo, strings.Trim(path, "/"), opts)
	if err != nil {
		return nil, nil, apiError(err)
	}
	if file == nil {
		entries := make([]Content, 0, len(dir))
		for _, entry := range dir {
			entries = append(entries, toContent(entry))
		}
		return nil, entries, nil
	}

	out := toContent(file)
	decoded, err := file.GetContent()
	if err != nil {
		return nil, nil, fmt.Errorf("decode file content: %w", err)
	}
	out.Content = decoded
	return &out, nil, nil
}

// PutFile creates the file, or replaces it when in.SHA names the current blob.
// It returns the commit sha.
func (c *Client) PutFile(ctx context.Context, in FileCommit) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(in.Message),
		Content: in.Content,
		Branch:  gh.Ptr(in.Branch),
	}
	path := strings.Trim(in.Path, "/")

	var (
		res *gh.RepositoryContentResponse
		err error
	)
	if in.SHA != "" {
		opts.SHA = gh.Ptr(in.SHA)
		res, _, err = c.api.Repositories.UpdateFile(ctx, c.owner, c.repo, path, opts)
	} else {
		res, _, err = c.api.Repositories.CreateFile(ctx, c.owner, c.repo, path, opts)
	}
	if err != nil {
		return "", apiError(err)
	}
	return res.Commit.GetSHA(), nil
}

// BranchSHA resolves the head commit of branch.
func (c *Client) BranchSHA(ctx context.Context, branch string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	ref, _, err := c.api.Git.GetRef(ctx, c.owner, c.repo, "heads/"+branch)
	if err != nil {
		return "", apiError(err)
	}
	return ref.GetObject().GetSHA(), nil
}

// CreateBranch creates refs/heads/<branch> at sha.
func (c *Client) CreateBranch(ctx context.Context, branch, sha string) error {
	if err := c.ready(); err != nil {
		return err
	}
	_, _, err := c.api.Git.CreateRef(ctx, c.owner, c.repo, &gh.Reference{
		Ref:    gh.Ptr("refs/heads/" + branch),
		Object: &gh.GitObject{SHA: gh.Ptr(sha)},
	})
	return apiError(err)
}

func (c *Client) CreatePullRequest(ctx context.Context, in NewPullRequest) (*PullRequest, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	req := &gh.NewPullRequest{Title: gh.Ptr(in.Title), Head: gh.Ptr(in.Head), Base: gh.Ptr(in.Base)}
	if in.Body != "" {
		req.Body = gh.Ptr(in.Body)
	}
	pr, _, err := c.api.PullRequests.Create(ctx, c.owner, c.repo, req)
	if err != nil {
		return nil, apiError(err)
	}
	out := toPullRequest(pr)
	return &out, nil
}

func (c *Client) GetPullRequest(ctx context.Context, number int) (*PullRequest, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	pr, _, err := c.api.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, apiError(err)
	}
	out := toPullRequest(pr)
	return &out, nil
}

// SearchCode scopes the query to the configured repository.
func (c *Client) SearchCode(ctx context.Context, query string, limit int) (*CodeSearch, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	q := fmt.Sprintf("%s repo:%s/%s", query, c.owner, c.repo)
	result, _, err := c.api.Search.Code(ctx, q, &gh.SearchOptions{ListOptions: gh.ListOptions{PerPage: clampPerPage(limit)}})
	if err != nil {
		return nil, apiError(err)
	}
	out := &CodeSearch{TotalCount: result.GetTotal(), Items: make([]CodeResult, 0, len(result.CodeResults))}
	for _, item := range result.CodeResults {
		out.Items = append(out.Items, CodeResult{
			Name:    item.GetName(),
			Path:    item.GetPath(),
			SHA:     item.GetSHA(),
			HTMLURL: item.GetHTMLURL(),
		})
	}
	return out, nil
}

// apiError flattens go-github's response errors into APIError so callers can
// branch on status without importing go-github.
func apiError(err error) error {
	if err == nil {
		return nil
	}
	var resp *http.Response
	var message string
	var errResp *gh.ErrorResponse
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	switch {
	case errors.As(err, &errResp):
		resp, message = errResp.Response, errResp.Message
	case errors.As(err, &rateErr):
		resp, message = rateErr.Response, rateErr.Message
	case errors.As(err, &abuseErr):
		resp, message = abuseErr.Response, abuseErr.Message
	default:
		return fmt.Errorf("github: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("github: %w", err)
	}
	out := &APIError{Status: resp.StatusCode, Message: message}
	if out.Message == "" {
		out.Message = http.StatusText(resp.StatusCode)
	}
	if resp.Request != nil {
		out.Method = resp.Request.Method
		out.Path = resp.Request.URL.Path
	}
	return out
}

func toRepository(in *gh.Repository) Repository {
	return Repository{
		Name:          in.GetName(),
		FullName:      in.GetFullName(),
		Description:   in.GetDescription(),
		Private:       in.GetPrivate(),
		HTMLURL:       in.GetHTMLURL(),
		DefaultBranch: in.GetDefaultBranch(),
		OpenIssues:    in.GetOpenIssuesCount(),
		PushedAt:      in.GetPushedAt().Time,
	}
}

func toIssue(in *gh.Issue) Issue {
	out := Issue{
		Number:    in.GetNumber(),
		Title:     in.GetTitle(),
		Body:      in.GetBody(),
		State:     in.GetState(),
		HTMLURL:   in.GetHTMLURL(),
		User:      User{Login: in.GetUser().GetLogin()},
		CreatedAt: in.GetCreatedAt().Time,
	}
	for _, label := range in.Labels {
		out.Labels = append(out.Labels, Label{Name: label.GetName()})
	}
	if in.IsPullRequest() {
		out.PullRequest = &PullRequestLinks{URL: in.GetPullRequestLinks().GetURL()}
	}
	return out
}

func toContent(in *gh.RepositoryContent) Content {
	return Content{
		Type:    in.GetType(),
		Name:    in.GetName(),
		Path:    in.GetPath(),
		SHA:     in.GetSHA(),
		Size:    in.GetSize(),
		HTMLURL: in.GetHTMLURL(),
	}
}

func toPullRequest(in *gh.PullRequest) PullRequest {
	out := PullRequest{
		Number:       in.GetNumber(),
		Title:        in.GetTitle(),
		Body:         in.GetBody(),
		State:        in.GetState(),
		HTMLURL:      in.GetHTMLURL(),
		Merged:       in.GetMerged(),
		Draft:        in.GetDraft(),
		Additions:    in.GetAdditions(),
		Deletions:    in.GetDeletions(),
		ChangedFiles: in.GetChangedFiles(),
	}
	out.Head.Ref = in.GetHead().GetRef()
	out.Head.SHA = in.GetHead().GetSHA()
	out.Base.Ref = in.GetBase().GetRef()
	return out
}

func clampPerPage(n int) int {
	switch {
	case n <= 0:
		return 30
	case n > 100:
		return 100
	default:
		return n
	}
}
