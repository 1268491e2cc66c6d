// Package intake runs one pass over the inbox: every unseen message is checked
// for a training request, and each request becomes a card plus two emails.
package intake

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Sukhmangill977/data-couch/internal/domain"
)

type Mailbox interface {
	ListUnseen(ctx context.Context) ([]uint32, error)
	Fetch(ctx context.Context, uid uint32) (domain.Message, error)
	MarkSeen(ctx context.Context, uids []uint32) error
	Close() error
}

// ConnectFunc opens a logged-in mailbox session.
type ConnectFunc func(ctx context.Context) (Mailbox, error)

type Extractor interface {
	Extract(body string) domain.ExtractionResult
}

type CardCreator interface {
	CreateCard(ctx context.Context, card domain.Card) (domain.CreatedCard, error)
}

type Notifier interface {
	Send(ctx context.Context, n domain.Notification) error
}

type Runner struct {
	Connect    ConnectFunc
	Extractor  Extractor
	Cards      CardCreator
	Notifier   Notifier
	Instructor string

	// LeaveUnseen skips flagging processed messages as \Seen.
	LeaveUnseen bool

	Recorders []Recorder
	Log       *slog.Logger

	now func() time.Time
}

func (r *Runner) logger() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}

func (r *Runner) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// RunOnce processes every unseen message. The returned error is non-nil only
// for a fatal stage (connect, list, fetch) and is always a *StageError.
// Recoverable failures, including messages that cannot be decoded, are
// collected in Report.Errors.
func (r *Runner) RunOnce(ctx context.Context) (rep Report, err error) {
	rep = Report{RunID: uuid.NewString(), StartedAt: r.clock()}
	log := r.logger().With("run", rep.RunID)

	defer func() {
		rep.FinishedAt = r.clock()
		if err != nil {
			log.Error("[intake] run aborted", "err", err, "processed", rep.Processed)
		} else {
			log.Info("[intake] run finished",
				"unseen", rep.Unseen,
				"malformed", rep.Malformed,
				"matched", rep.Matched,
				"cards", rep.CardsCreated,
				"sent", rep.NotificationsSent,
				"failures", len(rep.Errors),
				"took", rep.Duration().Round(time.Millisecond),
			)
		}
		r.record(context.WithoutCancel(ctx), log, rep, err)
	}()

	mb, cerr := r.Connect(ctx)
	if cerr != nil {
		return rep, &StageError{Stage: StageConnect, Err: cerr}
	}
	defer func() {
		if cerr := mb.Close(); cerr != nil {
			log.Warn("[intake] mailbox close", "err", cerr)
		}
	}()

	uids, lerr := mb.ListUnseen(ctx)
	if lerr != nil {
		return rep, &StageError{Stage: StageList, Err: lerr}
	}
	rep.Unseen = len(uids)
	log.Info("[intake] unseen messages", "count", len(uids))

	for _, uid := range uids {
		msg, ferr := mb.Fetch(ctx, uid)
		switch {
		case errors.Is(ferr, domain.ErrMalformedMessage):
			// Left unseen it would be fetched first on every run, forever.
			rep.Malformed++
			rep.Errors = append(rep.Errors, &StageError{Stage: StageParse, UID: uid, Err: ferr})
			log.Warn("[intake] skipping undecodable message", "uid", uid, "err", ferr)
		case ferr != nil:
			return rep, &StageError{Stage: StageFetch, UID: uid, Err: ferr}
		default:
			r.process(ctx, log, msg, &rep)
			rep.Processed++
		}

		r.markSeen(ctx, log, mb, uid, &rep)
	}

	return rep, nil
}

func (r *Runner) markSeen(ctx context.Context, log *slog.Logger, mb Mailbox, uid uint32, rep *Report) {
	if r.LeaveUnseen {
		return
	}
	if err := mb.MarkSeen(ctx, []uint32{uid}); err != nil {
		rep.Errors = append(rep.Errors, &StageError{Stage: StageMarkSeen, UID: uid, Err: err})
		log.Warn("[intake] mark seen failed", "uid", uid, "err", err)
	}
}

func (r *Runner) process(ctx context.Context, log *slog.Logger, msg domain.Message, rep *Report) {
	log = log.With("uid", msg.UID)
	log.Info("[intake] message", "from", msg.Sender, "subject", msg.Subject)
	log.Debug("[intake] body", "body", msg.Body)

	res := r.Extractor.Extract(msg.Body)
	if !res.Matched() {
		log.Info("[intake] no training request detected")
		return
	}
	rep.Matched++
	log.Info("[intake] training request", "training_type", res.TrainingType, "dates", res.Dates)

	card, err := r.Cards.CreateCard(ctx, FormatCard(msg, res))
	if err != nil {
		rep.CardFailures++
		rep.Errors = append(rep.Errors, &StageError{Stage: StageCard, UID: msg.UID, Err: err})
		log.Error("[trello] failed to create card", "err", err)
	} else {
		rep.CardsCreated++
		log.Info("[trello] card created", "id", card.ID, "url", card.URL)
	}

	r.notify(ctx, log, msg.UID, FormatInstructor(r.Instructor, msg, res, card.URL), rep)
	r.notify(ctx, log, msg.UID, FormatClient(msg, res), rep)
}

func (r *Runner) notify(ctx context.Context, log *slog.Logger, uid uint32, n domain.Notification, rep *Report) {
	if err := r.Notifier.Send(ctx, n); err != nil {
		rep.NotificationFailures++
		rep.Errors = append(rep.Errors, &StageError{Stage: StageNotify, UID: uid, Err: err})
		log.Error("[notify] failed to send email", "to", n.Recipient, "err", err)
		return
	}
	rep.NotificationsSent++
}

func (r *Runner) record(ctx context.Context, log *slog.Logger, rep Report, runErr error) {
	for _, rec := range r.Recorders {
		if err := rec.Record(ctx, rep, runErr); err != nil {
			log.Warn("[intake] recorder failed", "err", err)
		}
	}
}
