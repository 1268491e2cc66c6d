package intake

import (
	"context"
	"time"
)

// Report summarises one run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Unseen               int
	Processed            int
	Malformed            int
	Matched              int
	CardsCreated         int
	CardFailures         int
	NotificationsSent    int
	NotificationFailures int

	// Errors holds the recoverable failures; the fatal one is returned by RunOnce.
	Errors []*StageError
}

func (r Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Recorder observes finished runs (journal, metrics). runErr is the fatal
// error, if any.
type Recorder interface {
	Record(ctx context.Context, rep Report, runErr error) error
}
