package usecase

import (
	"context"
	"fmt"

	"RegimeLab/pkg/queue"
)

// RunPayload is the body of a queued detection run.
type RunPayload struct {
	Force bool `json:"force"`
}

// DetectJob processes queued detection runs.
type DetectJob struct {
	uc *DetectUsecase
}

func NewDetectJob(uc *DetectUsecase) *DetectJob {
	return &DetectJob{uc: uc}
}

func (j *DetectJob) Name() string { return "detect-run" }

func (j *DetectJob) Type() string { return "detect.run" }

func (j *DetectJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[RunPayload](payload)
	if err != nil {
		return fmt.Errorf("parse run payload: %w", err)
	}
	_, err = j.uc.RunOnce(ctx, p.Force)
	return err
}

var _ queue.Job = (*DetectJob)(nil)
