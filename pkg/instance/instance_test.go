package instance

import "testing"

func TestGetIDPrefersWorkerID(t *testing.T) {
	t.Setenv("WORKER_ID", "cron-1")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "cron-1" {
		t.Fatalf("expected cron-1, got %s", got)
	}

	t.Setenv("WORKER_ID", "")
	if got := GetID(); got != "web.1" {
		t.Fatalf("expected web.1, got %s", got)
	}
}
