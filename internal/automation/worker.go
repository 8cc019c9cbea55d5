package automation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/multierr"

	"github.com/sandgallery/sandgallery-backend/internal/providers"
	"github.com/sandgallery/sandgallery-backend/pkg/github"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
	"github.com/sandgallery/sandgallery-backend/pkg/storage"
)

const (
	WorkerJobName = "ai-worker"

	defaultBatchSize     = 3
	defaultQueueLabel    = "ai-task"
	defaultWorkingLabel  = "ai-processing"
	defaultGenerationTTL = 60 * time.Second
	maxCommentError      = 500

	rewriteSystemPrompt = "You are a senior engineer making a focused change to one file. " +
		"Return the complete new file content only, with no explanation and no Markdown fences."
)

var fileLine = regexp.MustCompile("(?mi)^\\s*file:\\s*`?([^\\s`]+)`?\\s*$")

type githubAPI interface {
	Configured() bool
	GetRepository(ctx context.Context) (*github.Repository, error)
	ListIssues(ctx context.Context, state, label string, ascending bool, limit int) ([]github.Issue, error)
	AddLabels(ctx context.Context, number int, labels ...string) error
	RemoveLabel(ctx context.Context, number int, label string) error
	CreateComment(ctx context.Context, number int, body string) (*github.Comment, error)
	GetContent(ctx context.Context, path, ref string) (*github.Content, []github.Content, error)
	BranchSHA(ctx context.Context, branch string) (string, error)
	CreateBranch(ctx context.Context, branch, sha string) error
	PutFile(ctx context.Context, in github.FileCommit) (string, error)
	CreatePullRequest(ctx context.Context, in github.NewPullRequest) (*github.PullRequest, error)
}

type WorkerParams struct {
	GitHub        githubAPI
	Text          providers.TextCompleter
	Store         storage.BlobStore
	Model         string
	BatchSize     int
	QueueLabel    string
	WorkingLabel  string
	GenerationTTL time.Duration
	Logger        *logger.Logger
}

// Worker turns labeled issues into pull requests, one file rewrite per issue.
type Worker struct {
	github        githubAPI
	text          providers.TextCompleter
	store         storage.BlobStore
	model         string
	batchSize     int
	queueLabel    string
	workingLabel  string
	generationTTL time.Duration
	logg          *logger.Logger
	now           func() time.Time
}

func NewWorker(params WorkerParams) (*Worker, error) {
	if params.GitHub == nil {
		return nil, fmt.Errorf("github client required")
	}
	if params.Text == nil {
		return nil, fmt.Errorf("text provider required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	w := &Worker{
		github:        params.GitHub,
		text:          params.Text,
		store:         params.Store,
		model:         params.Model,
		batchSize:     params.BatchSize,
		queueLabel:    params.QueueLabel,
		workingLabel:  params.WorkingLabel,
		generationTTL: params.GenerationTTL,
		logg:          params.Logger,
		now:           time.Now,
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.queueLabel == "" {
		w.queueLabel = defaultQueueLabel
	}
	if w.workingLabel == "" {
		w.workingLabel = defaultWorkingLabel
	}
	if w.generationTTL <= 0 {
		w.generationTTL = defaultGenerationTTL
	}
	return w, nil
}

func (w *Worker) Name() string { return WorkerJobName }

// Run processes at most batchSize queued issues, oldest first. Per-issue
// failures are reported on the issue and aggregated; there is no retry.
func (w *Worker) Run(ctx context.Context) error {
	if !w.github.Configured() {
		w.logg.Warn(ctx, "automation.github_not_configured")
		return nil
	}

	issues, err := w.github.ListIssues(ctx, "open", w.queueLabel, true, w.batchSize)
	if err != nil {
		return fmt.Errorf("list queued issues: %w", err)
	}
	queued := issues[:0]
	for _, issue := range issues {
		if issue.PullRequest == nil {
			queued = append(queued, issue)
		}
	}
	issues = queued
	if len(issues) == 0 {
		return nil
	}
	if len(issues) > w.batchSize {
		issues = issues[:w.batchSize]
	}

	repo, err := w.github.GetRepository(ctx)
	if err != nil {
		return fmt.Errorf("load repository: %w", err)
	}
	base := repo.DefaultBranch
	if base == "" {
		base = "main"
	}

	var errs error
	for _, issue := range issues {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		issueCtx := w.logg.WithField(ctx, "issue", issue.Number)
		pr, err := w.process(issueCtx, issue, base)
		if err != nil {
			w.logg.Error(issueCtx, "automation.issue_failed", err)
			w.reportFailure(issueCtx, issue.Number, err)
			errs = multierr.Append(errs, fmt.Errorf("issue #%d: %w", issue.Number, err))
			continue
		}
		w.logg.Info(w.logg.WithField(issueCtx, "pull_request", pr.Number), "automation.issue_completed")
	}
	return errs
}

func (w *Worker) process(ctx context.Context, issue github.Issue, base string) (*github.PullRequest, error) {
	if err := w.github.AddLabels(ctx, issue.Number, w.workingLabel); err != nil {
		return nil, fmt.Errorf("mark in progress: %w", err)
	}

	path, err := TargetFile(issue.Body)
	if err != nil {
		return nil, err
	}

	file, _, err := w.github.GetContent(ctx, path, base)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	content, err := w.rewrite(ctx, issue, path, file.Content)
	if err != nil {
		return nil, err
	}

	branch := fmt.Sprintf("ai/issue-%d", issue.Number)
	fileSHA, err := w.ensureBranch(ctx, branch, base, path, file.SHA)
	if err != nil {
		return nil, err
	}

	if _, err := w.github.PutFile(ctx, github.FileCommit{
		Path:    path,
		Message: fmt.Sprintf("AI: %s (#%d)", issue.Title, issue.Number),
		Content: []byte(content),
		Branch:  branch,
		SHA:     fileSHA,
	}); err != nil {
		return nil, fmt.Errorf("commit %s: %w", path, err)
	}

	pr, err := w.github.CreatePullRequest(ctx, github.NewPullRequest{
		Title: fmt.Sprintf("AI: %s", issue.Title),
		Head:  branch,
		Base:  base,
		Body:  fmt.Sprintf("Automated change for #%d.\n\nFile: `%s`\n\nCloses #%d", issue.Number, path, issue.Number),
	})
	if err != nil {
		return nil, fmt.Errorf("open pull request: %w", err)
	}

	w.archive(ctx, issue.Number, content)

	if _, err := w.github.CreateComment(ctx, issue.Number, "Opened pull request: "+pr.HTMLURL); err != nil {
		return nil, fmt.Errorf("comment pull request link: %w", err)
	}
	if err := w.github.RemoveLabel(ctx, issue.Number, w.queueLabel); err != nil {
		return nil, fmt.Errorf("dequeue issue: %w", err)
	}
	return pr, nil
}

func (w *Worker) rewrite(ctx context.Context, issue github.Issue, path, current string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, w.generationTTL)
	defer cancel()

	prompt := fmt.Sprintf("Task: %s\n\n%s\n\nFile path: %s\n\nCurrent content:\n%s",
		issue.Title, strings.TrimSpace(issue.Body), path, current)
	out, err := w.text.Complete(genCtx, providers.Completion{Model: w.model, System: rewriteSystemPrompt, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("generate replacement: %w", err)
	}
	out = providers.StripFences(out)
	if out == "" {
		return "", errors.New("model returned empty content")
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out, nil
}

// ensureBranch creates the issue branch from base. An existing branch is
// reused; the returned sha is the file's blob sha on that branch.
func (w *Worker) ensureBranch(ctx context.Context, branch, base, path, baseFileSHA string) (string, error) {
	headSHA, err := w.github.BranchSHA(ctx, base)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", base, err)
	}
	err = w.github.CreateBranch(ctx, branch, headSHA)
	if err == nil {
		return baseFileSHA, nil
	}
	if !github.IsAlreadyExists(err) {
		return "", fmt.Errorf("create branch %s: %w", branch, err)
	}

	existing, _, err := w.github.GetContent(ctx, path, branch)
	if err != nil {
		if github.IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("read %s on %s: %w", path, branch, err)
	}
	if existing == nil {
		return "", fmt.Errorf("%s is a directory on %s", path, branch)
	}
	return existing.SHA, nil
}

// archive keeps a copy of the generated content. Failure is logged only since
// the pull request already carries the change.
func (w *Worker) archive(ctx context.Context, number int, content string) {
	if w.store == nil {
		return
	}
	path := fmt.Sprintf("automation/issue-%d/%d.txt", number, w.now().UnixMilli())
	if err := w.store.Put(ctx, storage.Object{Path: path, ContentType: "text/plain; charset=utf-8", Data: []byte(content)}); err != nil {
		w.logg.Warn(w.logg.WithField(ctx, "path", path), "automation.archive_failed")
	}
}

func (w *Worker) reportFailure(ctx context.Context, number int, cause error) {
	msg := truncateRunes(cause.Error(), maxCommentError)
	body := fmt.Sprintf("Automation could not complete this task.\n\n```\n%s\n```\n\nFix the issue and re-add the `%s` label to retry.", msg, w.queueLabel)
	if _, err := w.github.CreateComment(ctx, number, body); err != nil {
		w.logg.Error(ctx, "automation.comment_failed", err)
	}
	for _, label := range []string{w.queueLabel, w.workingLabel} {
		if err := w.github.RemoveLabel(ctx, number, label); err != nil {
			w.logg.Error(w.logg.WithField(ctx, "label", label), "automation.unlabel_failed", err)
		}
	}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// TargetFile extracts the path from a "File: <path>" line.
func TargetFile(body string) (string, error) {
	match := fileLine.FindStringSubmatch(body)
	if len(match) < 2 {
		return "", errors.New(`issue body has no "File: <path>" line`)
	}
	return strings.TrimPrefix(match[1], "/"), nil
}
