package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sandgallery/sandgallery-backend/internal/providers"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
	"github.com/sandgallery/sandgallery-backend/pkg/github"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
)

const (
	defaultListLimit = 20
	chatSystemPrompt = "You are the operations assistant for the Sand.Gallery backend. Answer briefly and concretely."
)

type githubAPI interface {
	Configured() bool
	Owner() string
	Repo() string
	GetRepository(ctx context.Context) (*github.Repository, error)
	ListRepositories(ctx context.Context, limit int) ([]github.Repository, error)
	RateLimit(ctx context.Context) (*github.RateLimit, error)
	ListIssues(ctx context.Context, state, label string, ascending bool, limit int) ([]github.Issue, error)
	CreateIssue(ctx context.Context, in github.NewIssue) (*github.Issue, error)
	UpdateIssue(ctx context.Context, number int, in github.IssueUpdate) (*github.Issue, error)
	GetContent(ctx context.Context, path, ref string) (*github.Content, []github.Content, error)
	SearchCode(ctx context.Context, query string, limit int) (*github.CodeSearch, error)
	GetPullRequest(ctx context.Context, number int) (*github.PullRequest, error)
}

// Result is merged into the top level of the success envelope.
type Result map[string]any

type Dispatcher interface {
	Dispatch(ctx context.Context, command string, data json.RawMessage) (Result, error)
	Commands() []string
}

type handlerFunc func(ctx context.Context, data json.RawMessage) (Result, error)

type DispatcherParams struct {
	GitHub    githubAPI
	Text      providers.TextCompleter
	TaskLabel string
	TextModel string
	Logger    *logger.Logger
}

type dispatcher struct {
	github    githubAPI
	text      providers.TextCompleter
	taskLabel string
	textModel string
	logg      *logger.Logger
	validate  *validator.Validate
	handlers  map[string]handlerFunc
	now       func() time.Time
}

func NewDispatcher(params DispatcherParams) (Dispatcher, error) {
	if params.GitHub == nil {
		return nil, fmt.Errorf("github client required")
	}
	if params.Text == nil {
		return nil, fmt.Errorf("text provider required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	label := params.TaskLabel
	if label == "" {
		label = "ai-task"
	}
	d := &dispatcher{
		github:    params.GitHub,
		text:      params.Text,
		taskLabel: label,
		textModel: params.TextModel,
		logg:      logg,
		validate:  newValidator(),
		now:       time.Now,
	}
	d.handlers = map[string]handlerFunc{
		CommandSystemStatus: d.systemStatus,
		CommandChat:         d.chat,
		CommandListProjects: d.listProjects,
		CommandDispatchTask: d.dispatchTask,
		CommandUpdateTask:   d.updateTask,
		CommandReadFile:     d.readFile,
		CommandListFiles:    d.listFiles,
		CommandSearchCode:   d.searchCode,
		CommandListIssues:   d.listIssues,
		CommandGetPR:        d.getPR,
	}
	return d, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func (d *dispatcher) Commands() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *dispatcher) Dispatch(ctx context.Context, command string, data json.RawMessage) (Result, error) {
	command = strings.TrimSpace(command)
	handler, ok := d.handlers[command]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown command %q", command).
			WithDetails(map[string]any{"commands": d.Commands()})
	}
	ctx = d.logg.WithField(ctx, "command", command)
	result, err := handler(ctx, data)
	if err != nil {
		return nil, err
	}
	d.logg.Info(ctx, "admin.command")
	return result, nil
}

// decode unmarshals data into dest and validates it. Empty data decodes as {}.
func (d *dispatcher) decode(data json.RawMessage, dest any) error {
	if len(strings.TrimSpace(string(data))) == 0 || string(data) == "null" {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid command data")
	}
	if err := d.validate.Struct(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := map[string]string{}
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid command data").WithDetails(details)
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid command data")
	}
	return nil
}

func (d *dispatcher) systemStatus(ctx context.Context, _ json.RawMessage) (Result, error) {
	status := Result{
		"time":   d.now().UTC().Format(time.RFC3339),
		"github": Result{"configured": d.github.Configured(), "owner": d.github.Owner(), "repo": d.github.Repo()},
	}
	if !d.github.Configured() {
		return status, nil
	}
	repo, err := d.github.GetRepository(ctx)
	if err != nil {
		return nil, githubError(err)
	}
	rate, err := d.github.RateLimit(ctx)
	if err != nil {
		return nil, githubError(err)
	}
	status["repository"] = repo
	status["rateLimit"] = rate
	return status, nil
}

func (d *dispatcher) chat(ctx context.Context, data json.RawMessage) (Result, error) {
	var in chatInput
	if err := d.decode(data, &in); err != nil {
		return nil, err
	}
	model := in.Model
	if model == "" {
		model = d.textModel
	}
	reply, err := d.text.Complete(ctx, providers.Completion{Model: model, System: chatSystemPrompt, Prompt: in.Message})
	if err != nil {
		return nil, err
	}
	return Result{"reply": reply}, nil
}

func (d *dispatcher) listProjects(ctx context.Context, data json.RawMessage) (Result, error) {
	var in listInput
	if err := d.decode(data, &in); err != nil {
		return nil, err
	}
	repos, err := d.github.ListRepositories(ctx, limitOr(in.Limit))
	if err != nil {
		return nil, githubError(err)
	}
	return Result{"projects": repos}, nil
}

func (d *dispatcher) dispatchTask(ctx context.Context, data json.RawMessage) (Result, error) {
	var in dispatchInput
	if err := d.decode(data, &in); err != nil {
		return nil, err
	}
	body := in.Body
	if file := strings.TrimSpace(in.File); file != "" {
		body = strings.TrimSpace(body + "\n\nFile: " + file)
	}
	labels := append([]string{d.taskLabel}, in.Labels...)
	issue, err := d.github.CreateIssue(ctx, github.NewIssue{Title: in.Title, Body: body, Labels: labels})
	if err != nil {
		return nil, githubError(err)
	}
	return Result{"task": issue}, nil
}

func (d *dispatcher) updateTask(ctx context.Context, data json.RawMessage) (Result, error) {
	var in updateInput
	if err := d.decode(data, &in); err != nil {
		return nil, err
	}
	issue, err := d.github.UpdateIssue(ctx, in.Number, github.IssueUpdate{
		Title:  in.Title,
		Body:   in.Body,
		State:  in.State,
		Labels: in.Labels,
	})
	if err != nil {
		return nil, githubError(err)
	}
	return Result{"task": issue}, nil
}

func (d *dispatcher) readFile(ctx context.Context, data json.RawMessage) (Result, error) {
	var in fileInput
	if err := d.decode(data, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Path) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "path is required")
	}
	file, entries, err := d.github.GetContent(ctx, in.Path, in.Ref)
	if err != nil {
		return nil, githubError(err)
	}
	if file == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s is a directory with %d entries", in.Path, len(entries))
	}
	return Result{"path": file.Path, "sha": file.SHA, "size": file.Size, "content": file.Content}, nil
}

func (d *dispatcher) listFiles(ctx context.Context, data json.RawMessage) (Result, error) {
	var in fileInput
	if err := d.decode(data, &in); err != nil {
		return nil, err
	}
	file, entries, err := d.github.GetContent(ctx, strings.Trim(in.Path, "/"), in.Ref)
	if err != nil {
		return nil, githubError(err)
	}
	if file != nil {
		entries = []github.Content{{Type: file.Type, Name: file.Name, Path: file.Path, SHA: file.SHA, Size: file.Size, HTMLURL: file.HTMLURL}}
	}
	return Result{"files": entries}, nil
}

func (d *dispatcher) searchCode(ctx context.Context, data json.RawMessage) (Result, error) {
	var in searchInput
	if err := d.decode(data, &in); err != nil {
		return nil, err
	}
	results, err := d.github.SearchCode(ctx, in.Query, limitOr(in.Limit))
	if err != nil {
		return nil, githubError(err)
	}
	return Result{"total": results.TotalCount, "results": results.Items}, nil
}

func (d *dispatcher) listIssues(ctx context.Context, data json.RawMessage) (Result, error) {
	var in issuesInput
	if err := d.decode(data, &in); err != nil {
		return nil, err
	}
	issues, err := d.github.ListIssues(ctx, in.State, in.Label, false, limitOr(in.Limit))
	if err != nil {
		return nil, githubError(err)
	}
	return Result{"issues": issues}, nil
}

func (d *dispatcher) getPR(ctx context.Context, data json.RawMessage) (Result, error) {
	var in prInput
	if err := d.decode(data, &in); err != nil {
		return nil, err
	}
	pr, err := d.github.GetPullRequest(ctx, in.Number)
	if err != nil {
		return nil, githubError(err)
	}
	return Result{"pullRequest": pr}, nil
}

func limitOr(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

// githubError maps client failures onto the error taxonomy: a missing token is
// a credential problem, 404 is NotFound, everything else is an upstream failure.
func githubError(err error) error {
	if errors.Is(err, github.ErrNotConfigured) {
		return pkgerrors.Wrap(pkgerrors.CodeMissingCredential, err, "github integration not configured")
	}
	if github.IsNotFound(err) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "github resource not found")
	}
	var apiErr *github.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, apiErr.Message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeProvider, err, "github request failed")
}
