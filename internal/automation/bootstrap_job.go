package automation

import (
	"context"
	"fmt"

	"github.com/sandgallery/sandgallery-backend/internal/content"
)

const BootstrapJobName = "content-bootstrap"

// BootstrapJob re-runs the idempotent gallery bootstrap each cycle.
type BootstrapJob struct {
	content content.Service
}

func NewBootstrapJob(svc content.Service) (*BootstrapJob, error) {
	if svc == nil {
		return nil, fmt.Errorf("content service required")
	}
	return &BootstrapJob{content: svc}, nil
}

func (j *BootstrapJob) Name() string { return BootstrapJobName }

func (j *BootstrapJob) Run(ctx context.Context) error {
	_, err := j.content.Bootstrap(ctx)
	return err
}
