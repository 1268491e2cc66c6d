package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sukhmangill977/data-couch/internal/intake"
)

// timeLayout is fixed width so started_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run is one journal row. Only counters and error text are kept; message
// bodies and addresses never reach the journal.
type Run struct {
	ID                   string
	StartedAt            time.Time
	FinishedAt           time.Time
	Unseen               int
	Processed            int
	Malformed            int
	Matched              int
	CardsCreated         int
	CardFailures         int
	NotificationsSent    int
	NotificationFailures int
	Failures             string
	Error                string
}

func (r Run) OK() bool { return r.Error == "" }

// Record implements intake.Recorder.
func (d *DB) Record(ctx context.Context, rep intake.Report, runErr error) error {
	var fails []string
	for _, e := range rep.Errors {
		fails = append(fails, e.Error())
	}
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO runs (
  id, started_at, finished_at,
  unseen, processed, malformed, matched,
  cards_created, card_failures,
  notifications_sent, notification_failures,
  failures, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		rep.RunID,
		rep.StartedAt.UTC().Format(timeLayout),
		rep.FinishedAt.UTC().Format(timeLayout),
		rep.Unseen, rep.Processed, rep.Malformed, rep.Matched,
		rep.CardsCreated, rep.CardFailures,
		rep.NotificationsSent, rep.NotificationFailures,
		strings.Join(fails, "; "), errText,
	)
	if err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	return nil
}

// ListRuns returns the newest n runs, newest first.
func (d *DB) ListRuns(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, started_at, finished_at,
       unseen, processed, malformed, matched,
       cards_created, card_failures,
       notifications_sent, notification_failures,
       failures, error
FROM runs
ORDER BY started_at DESC
LIMIT ?;
`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(
			&r.ID, &started, &finished,
			&r.Unseen, &r.Processed, &r.Malformed, &r.Matched,
			&r.CardsCreated, &r.CardFailures,
			&r.NotificationsSent, &r.NotificationFailures,
			&r.Failures, &r.Error,
		); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(timeLayout, started)
		r.FinishedAt, _ = time.Parse(timeLayout, finished)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
