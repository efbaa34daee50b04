package usecase

import (
	"context"
	"time"

	applogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/queue"
)

// ErrorDigestJob re-emits aggregated error logs as compact digest lines.
// The log collector batches repeated errors into one entry per unique
// message; this job turns each batch back into a single counted line.
type ErrorDigestJob struct {
	l *applogger.Logger
}

func NewErrorDigestJob(l *applogger.Logger) *ErrorDigestJob {
	return &ErrorDigestJob{l: l}
}

func (j *ErrorDigestJob) Name() string { return "error-digest" }

func (j *ErrorDigestJob) Type() string { return "log.errors" }

func (j *ErrorDigestJob) Handle(ctx context.Context, payload interface{}) error {
	entries, err := queue.ParsePayload[[]applogger.AggregatedLogEntry](payload)
	if err != nil {
		return err
	}

	// Digest lines log at warn so they do not feed back into the collector.
	for _, e := range *entries {
		j.l.Warn("error digest",
			applogger.String("message", e.Message),
			applogger.String("caller", e.Caller),
			applogger.Int("count", e.Count),
			applogger.String("first_seen", e.FirstSeen.Format(time.RFC3339)),
			applogger.String("last_seen", e.LastSeen.Format(time.RFC3339)),
		)
	}
	return nil
}

var _ queue.Job = (*ErrorDigestJob)(nil)
