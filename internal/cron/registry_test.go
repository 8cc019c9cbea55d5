package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsWorkerThenBootstrapOrder(t *testing.T) {
	worker := &stubJob{name: "ai-worker"}
	bootstrap := &stubJob{name: "content-bootstrap"}
	registry := NewRegistry(worker, nil, bootstrap)

	require.Equal(t, []string{"ai-worker", "content-bootstrap"}, registry.Names())
	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	require.Same(t, worker, jobs[0])
	require.Same(t, bootstrap, jobs[1])

	jobs[0] = nil
	require.NotNil(t, registry.Jobs()[0], "internal slice leaked")
}

func TestRegistryRefusesDuplicateJobNames(t *testing.T) {
	first := &stubJob{name: "ai-worker"}
	registry := NewRegistry(first, &stubJob{name: "ai-worker"})
	require.Len(t, registry.Jobs(), 1)

	err := registry.Register(&stubJob{name: "ai-worker"})
	require.ErrorContains(t, err, `"ai-worker" already registered`)
	require.ErrorContains(t, registry.Register(&stubJob{}), "name required")
	require.NoError(t, registry.Register(nil))

	job, ok := registry.Lookup("ai-worker")
	require.True(t, ok)
	require.Same(t, first, job)
	_, ok = registry.Lookup("content-bootstrap")
	require.False(t, ok)
}
