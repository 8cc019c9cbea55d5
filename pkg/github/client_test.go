package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sandgallery/sandgallery-backend/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.GitHubConfig{Token: "ghp_test", Owner: "sandgallery", Repo: "site", BaseURL: srv.URL + "/"})
}

func TestListIssuesFiltersPullRequestsAndSendsQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/sandgallery/site/issues", r.URL.Path)
		require.Equal(t, "ai-task", r.URL.Query().Get("labels"))
		require.Equal(t, "asc", r.URL.Query().Get("direction"))
		require.Equal(t, "3", r.URL.Query().Get("per_page"))
		require.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[
			{"number": 1, "title": "first", "labels": [{"name": "ai-task"}]},
			{"number": 2, "title": "a pr", "pull_request": {"url": "x"}}
		]`))
	})

	issues, err := client.ListIssues(context.Background(), "open", "ai-task", true, 3)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, 1, issues[0].Number)
	require.True(t, issues[0].HasLabel("ai-task"))
}

func TestGetContentDecodesFilesAndListsDirectories(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/sandgallery/site/contents/src/App.tsx":
			require.Equal(t, "main", r.URL.Query().Get("ref"))
			encoded := base64.StdEncoding.EncodeToString([]byte("export default App;"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"type": "file", "path": "src/App.tsx", "sha": "abc",
				"encoding": "base64", "content": encoded[:8] + "\n" + encoded[8:],
			})
		case "/repos/sandgallery/site/contents/src":
			_, _ = w.Write([]byte(`[{"type":"file","name":"App.tsx","path":"src/App.tsx"},{"type":"dir","name":"pages","path":"src/pages"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		}
	})

	file, entries, err := client.GetContent(context.Background(), "src/App.tsx", "main")
	require.NoError(t, err)
	require.Nil(t, entries)
	require.Equal(t, "export default App;", file.Content)
	require.Equal(t, "abc", file.SHA)

	file, entries, err = client.GetContent(context.Background(), "/src/", "")
	require.NoError(t, err)
	require.Nil(t, file)
	require.Len(t, entries, 2)

	_, _, err = client.GetContent(context.Background(), "missing.txt", "")
	require.True(t, IsNotFound(err))
}

func TestCreateBranchAlreadyExists(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/repos/sandgallery/site/git/refs", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "refs/heads/ai/issue-7", body["ref"])
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Reference already exists"}`))
	})

	err := client.CreateBranch(context.Background(), "ai/issue-7", "sha")
	require.Error(t, err)
	require.True(t, IsAlreadyExists(err))
	require.False(t, IsNotFound(err))
}

func TestPutFileEncodesContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		decoded, err := base64.StdEncoding.DecodeString(body["content"])
		require.NoError(t, err)
		require.Equal(t, "new content", string(decoded))
		require.Equal(t, "old-sha", body["sha"])
		require.Equal(t, "ai/issue-7", body["branch"])
		_, _ = w.Write([]byte(`{"commit":{"sha":"c0ffee"}}`))
	})

	sha, err := client.PutFile(context.Background(), FileCommit{
		Path: "src/App.tsx", Message: "update", Content: []byte("new content"), Branch: "ai/issue-7", SHA: "old-sha",
	})
	require.NoError(t, err)
	require.Equal(t, "c0ffee", sha)
}

func TestRemoveLabelIgnoresMissing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Label does not exist"}`))
	})
	require.NoError(t, client.RemoveLabel(context.Background(), 3, "ai-processing"))
}

func TestUnconfiguredClient(t *testing.T) {
	client := NewClient(config.GitHubConfig{})
	require.False(t, client.Configured())
	_, err := client.GetRepository(context.Background())
	require.True(t, errors.Is(err, ErrNotConfigured))
}

func TestSearchCodeScopesToRepository(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/code", r.URL.Path)
		require.Equal(t, "useCredits repo:sandgallery/site", r.URL.Query().Get("q"))
		require.Equal(t, "100", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte(`{"total_count": 1, "items": [{"name": "credits.ts", "path": "src/hooks/credits.ts", "sha": "s1", "html_url": "https://github.com/x"}]}`))
	})

	result, err := client.SearchCode(context.Background(), "useCredits", 250)
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalCount)
	require.Equal(t, "src/hooks/credits.ts", result.Items[0].Path)
}

func TestRateLimitAndPullRequestMapping(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rate_limit":
			_, _ = w.Write([]byte(`{"resources": {"core": {"limit": 5000, "remaining": 4321, "reset": 1700000000}}}`))
		case "/repos/sandgallery/site/pulls/12":
			_, _ = w.Write([]byte(`{"number": 12, "state": "open", "html_url": "https://github.com/sandgallery/site/pull/12",
				"head": {"ref": "ai/issue-7", "sha": "h1"}, "base": {"ref": "main"}, "changed_files": 2}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	rate, err := client.RateLimit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5000, rate.Limit)
	require.Equal(t, 4321, rate.Remaining)
	require.Equal(t, int64(1700000000), rate.Reset)

	pr, err := client.GetPullRequest(context.Background(), 12)
	require.NoError(t, err)
	require.Equal(t, "ai/issue-7", pr.Head.Ref)
	require.Equal(t, "main", pr.Base.Ref)
	require.Equal(t, 2, pr.ChangedFiles)
}

func TestErrorsCarryStatusAndMethod(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Resource not accessible by integration"}`))
	})

	_, err := client.CreateIssue(context.Background(), NewIssue{Title: "x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusForbidden, apiErr.Status)
	require.Equal(t, http.MethodPost, apiErr.Method)
	require.Equal(t, "/repos/sandgallery/site/issues", apiErr.Path)
	require.Contains(t, apiErr.Message, "not accessible")
}

func TestClampPerPage(t *testing.T) {
	require.Equal(t, 30, clampPerPage(0))
	require.Equal(t, 100, clampPerPage(500))
	require.Equal(t, 5, clampPerPage(5))
}
