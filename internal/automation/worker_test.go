package automation

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandgallery/sandgallery-backend/internal/providers"
	"github.com/sandgallery/sandgallery-backend/pkg/github"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
	"github.com/sandgallery/sandgallery-backend/pkg/storage"
)

type fakeGitHub struct {
	mu            sync.Mutex
	configured    bool
	issues        []github.Issue
	files         map[string]github.Content
	branchExists  bool
	branchFileSHA string
	commits       []github.FileCommit
	prs           []github.NewPullRequest
	comments      map[int][]string
	added         map[int][]string
	removed       map[int][]string
	putErr        error
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		configured: true,
		files:      map[string]github.Content{},
		comments:   map[int][]string{},
		added:      map[int][]string{},
		removed:    map[int][]string{},
	}
}

func (f *fakeGitHub) Configured() bool { return f.configured }

func (f *fakeGitHub) GetRepository(context.Context) (*github.Repository, error) {
	return &github.Repository{Name: "sand-gallery", DefaultBranch: "main"}, nil
}

func (f *fakeGitHub) ListIssues(_ context.Context, _ string, label string, _ bool, limit int) ([]github.Issue, error) {
	var out []github.Issue
	for _, issue := range f.issues {
		if issue.HasLabel(label) {
			out = append(out, issue)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeGitHub) AddLabels(_ context.Context, number int, labels ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added[number] = append(f.added[number], labels...)
	return nil
}

func (f *fakeGitHub) RemoveLabel(_ context.Context, number int, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed[number] = append(f.removed[number], label)
	return nil
}

func (f *fakeGitHub) CreateComment(_ context.Context, number int, body string) (*github.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[number] = append(f.comments[number], body)
	return &github.Comment{ID: int64(len(f.comments[number])), Body: body}, nil
}

func (f *fakeGitHub) GetContent(_ context.Context, path, ref string) (*github.Content, []github.Content, error) {
	if ref != "main" {
		if f.branchFileSHA == "" {
			return nil, nil, &github.APIError{Status: 404, Message: "Not Found"}
		}
		return &github.Content{Path: path, SHA: f.branchFileSHA}, nil, nil
	}
	file, ok := f.files[path]
	if !ok {
		return nil, nil, &github.APIError{Status: 404, Message: "Not Found"}
	}
	return &file, nil, nil
}

func (f *fakeGitHub) BranchSHA(context.Context, string) (string, error) { return "head-sha", nil }

func (f *fakeGitHub) CreateBranch(context.Context, string, string) error {
	if f.branchExists {
		return &github.APIError{Status: 422, Message: "Reference already exists"}
	}
	return nil
}

func (f *fakeGitHub) PutFile(_ context.Context, in github.FileCommit) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.commits = append(f.commits, in)
	return "commit-sha", nil
}

func (f *fakeGitHub) CreatePullRequest(_ context.Context, in github.NewPullRequest) (*github.PullRequest, error) {
	f.prs = append(f.prs, in)
	return &github.PullRequest{Number: 100 + len(f.prs), HTMLURL: "https://github.com/sand/gallery/pull/" + in.Head}, nil
}

type fakeText struct {
	reply string
	err   error
	calls []providers.Completion
}

func (f *fakeText) Complete(_ context.Context, in providers.Completion) (string, error) {
	f.calls = append(f.calls, in)
	return f.reply, f.err
}

type archiveStore struct {
	objects []storage.Object
	err     error
}

func (s *archiveStore) Put(_ context.Context, obj storage.Object) error {
	if s.err != nil {
		return s.err
	}
	s.objects = append(s.objects, obj)
	return nil
}

func (s *archiveStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}
func (s *archiveStore) Bucket() string             { return "test" }
func (s *archiveStore) Ping(context.Context) error { return nil }

func queued(number int, body string) github.Issue {
	return github.Issue{Number: number, Title: "Tweak copy", Body: body, Labels: []github.Label{{Name: "ai-task"}}}
}

func newTestWorker(t *testing.T, gh *fakeGitHub, text *fakeText, store storage.BlobStore) *Worker {
	t.Helper()
	w, err := NewWorker(WorkerParams{GitHub: gh, Text: text, Store: store, Logger: logger.Nop()})
	require.NoError(t, err)
	w.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return w
}

func TestWorkerOpensPullRequestForQueuedIssue(t *testing.T) {
	gh := newFakeGitHub()
	gh.issues = []github.Issue{queued(7, "Make the header louder.\n\nFile: src/App.tsx")}
	gh.files["src/App.tsx"] = github.Content{Path: "src/App.tsx", SHA: "blob-1", Content: "old"}
	text := &fakeText{reply: "```tsx\nexport const App = () => null\n```"}
	store := &archiveStore{}

	require.NoError(t, newTestWorker(t, gh, text, store).Run(context.Background()))

	require.Len(t, gh.commits, 1)
	assert.Equal(t, "ai/issue-7", gh.commits[0].Branch)
	assert.Equal(t, "blob-1", gh.commits[0].SHA)
	assert.Equal(t, "export const App = () => null\n", string(gh.commits[0].Content))

	require.Len(t, gh.prs, 1)
	assert.Equal(t, "main", gh.prs[0].Base)
	assert.Contains(t, gh.prs[0].Body, "Closes #7")

	assert.Equal(t, []string{"ai-processing"}, gh.added[7])
	assert.Equal(t, []string{"ai-task"}, gh.removed[7])
	require.Len(t, gh.comments[7], 1)
	assert.Contains(t, gh.comments[7][0], "pull/ai/issue-7")

	require.Len(t, store.objects, 1)
	assert.Equal(t, "automation/issue-7/1700000000000.txt", store.objects[0].Path)

	require.Len(t, text.calls, 1)
	assert.Contains(t, text.calls[0].Prompt, "Current content:\nold")
}

func TestWorkerReusesExistingBranch(t *testing.T) {
	gh := newFakeGitHub()
	gh.issues = []github.Issue{queued(8, "File: README.md")}
	gh.files["README.md"] = github.Content{Path: "README.md", SHA: "blob-main"}
	gh.branchExists = true
	gh.branchFileSHA = "blob-branch"

	require.NoError(t, newTestWorker(t, gh, &fakeText{reply: "hello"}, nil).Run(context.Background()))

	require.Len(t, gh.commits, 1)
	assert.Equal(t, "blob-branch", gh.commits[0].SHA)
}

func TestWorkerReportsFailureAndUnlabels(t *testing.T) {
	gh := newFakeGitHub()
	gh.issues = []github.Issue{queued(9, "no file line here")}
	text := &fakeText{reply: "unused"}

	err := newTestWorker(t, gh, text, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue #9")

	assert.Empty(t, gh.commits)
	assert.Empty(t, text.calls)
	require.Len(t, gh.comments[9], 1)
	assert.Contains(t, gh.comments[9][0], "File: <path>")
	assert.ElementsMatch(t, []string{"ai-task", "ai-processing"}, gh.removed[9])
}

func TestWorkerFailureCommentKeepsMultibyteErrorIntact(t *testing.T) {
	gh := newFakeGitHub()
	gh.issues = []github.Issue{queued(11, "File: copy.md")}
	gh.files["copy.md"] = github.Content{Path: "copy.md", SHA: "c"}
	text := &fakeText{err: errors.New(strings.Repeat("砂", 600))}

	require.Error(t, newTestWorker(t, gh, text, nil).Run(context.Background()))

	require.Len(t, gh.comments[11], 1)
	comment := gh.comments[11][0]
	assert.True(t, utf8.ValidString(comment))
	start := strings.Index(comment, "```\n") + len("```\n")
	end := strings.LastIndex(comment, "\n```")
	quoted := comment[start:end]
	assert.Equal(t, maxCommentError, utf8.RuneCountInString(quoted))
	assert.True(t, strings.HasSuffix(quoted, "砂"))
}

func TestWorkerAggregatesPerIssueFailures(t *testing.T) {
	gh := newFakeGitHub()
	gh.issues = []github.Issue{
		queued(1, "File: a.go"),
		queued(2, "File: b.go"),
		queued(3, "File: c.go"),
		queued(4, "File: d.go"),
	}
	gh.files["b.go"] = github.Content{Path: "b.go", SHA: "b"}
	text := &fakeText{reply: "package b"}

	err := newTestWorker(t, gh, text, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue #1")
	assert.Contains(t, err.Error(), "issue #3")
	assert.NotContains(t, err.Error(), "issue #4")

	require.Len(t, gh.prs, 1)
	assert.Equal(t, "ai/issue-2", gh.prs[0].Head)
	_, touched := gh.added[4]
	assert.False(t, touched, "batch size caps work at three issues")
}

func TestWorkerArchiveFailureIsNotFatal(t *testing.T) {
	gh := newFakeGitHub()
	gh.issues = []github.Issue{queued(5, "File: x.txt")}
	gh.files["x.txt"] = github.Content{Path: "x.txt", SHA: "x"}
	store := &archiveStore{err: errors.New("bucket offline")}

	require.NoError(t, newTestWorker(t, gh, &fakeText{reply: "x"}, store).Run(context.Background()))
	assert.Len(t, gh.prs, 1)
}

func TestWorkerSkipsWhenGitHubNotConfigured(t *testing.T) {
	gh := newFakeGitHub()
	gh.configured = false
	gh.issues = []github.Issue{queued(1, "File: a.go")}

	require.NoError(t, newTestWorker(t, gh, &fakeText{}, nil).Run(context.Background()))
	assert.Empty(t, gh.added)
}

func TestWorkerRejectsEmptyModelOutput(t *testing.T) {
	gh := newFakeGitHub()
	gh.issues = []github.Issue{queued(6, "File: a.go")}
	gh.files["a.go"] = github.Content{Path: "a.go", SHA: "a"}

	err := newTestWorker(t, gh, &fakeText{reply: "```\n```"}, nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "empty content"))
	assert.Empty(t, gh.commits)
}

func TestTargetFile(t *testing.T) {
	cases := map[string]string{
		"File: src/main.go":             "src/main.go",
		"do it\nfile: `/docs/a.md`\n":   "docs/a.md",
		"intro\n  FILE:  web/index.ts ": "web/index.ts",
	}
	for body, want := range cases {
		got, err := TargetFile(body)
		require.NoError(t, err, body)
		assert.Equal(t, want, got)
	}
	_, err := TargetFile("no path")
	assert.Error(t, err)
}
