package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/Sukhmangill977/data-couch/internal/domain"
	"github.com/Sukhmangill977/data-couch/internal/extract"
	"github.com/Sukhmangill977/data-couch/internal/trello"
)

type fakeMailbox struct {
	order    []uint32
	msgs     map[uint32]domain.Message
	listErr  error
	fetchErr map[uint32]error
	markErr  error

	seen   []uint32
	closed int
}

func (f *fakeMailbox) ListUnseen(context.Context) ([]uint32, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.order, nil
}

func (f *fakeMailbox) Fetch(_ context.Context, uid uint32) (domain.Message, error) {
	if err := f.fetchErr[uid]; err != nil {
		return domain.Message{}, err
	}
	return f.msgs[uid], nil
}

func (f *fakeMailbox) MarkSeen(_ context.Context, uids []uint32) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.seen = append(f.seen, uids...)
	return nil
}

func (f *fakeMailbox) Close() error {
	f.closed++
	return nil
}

type fakeCards struct {
	err   error
	cards []domain.Card
}

func (f *fakeCards) CreateCard(_ context.Context, c domain.Card) (domain.CreatedCard, error) {
	f.cards = append(f.cards, c)
	if f.err != nil {
		return domain.CreatedCard{}, f.err
	}
	return domain.CreatedCard{ID: "c1", URL: "https://trello.com/c/c1"}, nil
}

type fakeNotifier struct {
	failFor  map[string]error
	attempts []domain.Notification
}

func (f *fakeNotifier) Send(_ context.Context, n domain.Notification) error {
	f.attempts = append(f.attempts, n)
	return f.failFor[n.Recipient]
}

// keywordExtractor matches whole bodies containing "training".
type keywordExtractor struct{}

func (keywordExtractor) Extract(body string) domain.ExtractionResult {
	if !strings.Contains(strings.ToLower(body), "training") {
		return domain.ExtractionResult{}
	}
	return domain.ExtractionResult{TrainingType: strings.TrimSpace(body), Dates: extract.MatchDate(body)}
}

type recorded struct {
	rep Report
	err error
}

type fakeRecorder struct{ runs []recorded }

func (f *fakeRecorder) Record(_ context.Context, rep Report, err error) error {
	f.runs = append(f.runs, recorded{rep, err})
	return nil
}

func msg(uid uint32, from, body string) domain.Message {
	return domain.Message{UID: uid, Sender: from, SenderAddress: from, Subject: "hello", Body: body}
}

func newRunner(mb *fakeMailbox, cards *fakeCards, n *fakeNotifier) (*Runner, *fakeRecorder) {
	rec := &fakeRecorder{}
	return &Runner{
		Connect:    func(context.Context) (Mailbox, error) { return mb, nil },
		Extractor:  keywordExtractor{},
		Cards:      cards,
		Notifier:   n,
		Instructor: "instructor@example.com",
		Recorders:  []Recorder{rec},
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, rec
}

func TestRunNoTrainingRequest(t *testing.T) {
	mb := &fakeMailbox{
		order: []uint32{1},
		msgs:  map[uint32]domain.Message{1: msg(1, "a@example.com", "Invoice attached. Due June 5, 2025.")},
	}
	cards, n := &fakeCards{}, &fakeNotifier{}
	r, _ := newRunner(mb, cards, n)

	rep, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(cards.cards) != 0 || len(n.attempts) != 0 {
		t.Fatalf("downstream calls on no-match: cards=%d sends=%d", len(cards.cards), len(n.attempts))
	}
	if rep.Unseen != 1 || rep.Processed != 1 || rep.Matched != 0 {
		t.Errorf("report = %+v", rep)
	}
	if len(mb.seen) != 1 || mb.seen[0] != 1 {
		t.Errorf("seen = %v, unmatched messages are still marked", mb.seen)
	}
	if mb.closed != 1 {
		t.Errorf("closed = %d", mb.closed)
	}
}

func TestRunCardFailureStillNotifies(t *testing.T) {
	mb := &fakeMailbox{
		order: []uint32{4},
		msgs:  map[uint32]domain.Message{4: msg(4, "client@example.com", "Please schedule training on Go for 21st March 2025.")},
	}
	cards := &fakeCards{err: &trello.StatusError{Code: 500, Body: "oops"}}
	n := &fakeNotifier{}
	r, _ := newRunner(mb, cards, n)

	rep, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(n.attempts) != 2 {
		t.Fatalf("sends = %d, want 2", len(n.attempts))
	}
	if n.attempts[0].Recipient != "instructor@example.com" || n.attempts[1].Recipient != "client@example.com" {
		t.Errorf("recipients = %q, %q", n.attempts[0].Recipient, n.attempts[1].Recipient)
	}
	if strings.Contains(n.attempts[0].Body, "Card:") {
		t.Errorf("instructor body links a card that does not exist: %q", n.attempts[0].Body)
	}
	if rep.CardFailures != 1 || rep.CardsCreated != 0 || rep.NotificationsSent != 2 {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Errors) != 1 || rep.Errors[0].Stage != StageCard {
		t.Fatalf("Errors = %v", rep.Errors)
	}
	var se *trello.StatusError
	if !errors.As(rep.Errors[0], &se) || se.Code != 500 {
		t.Errorf("card error does not unwrap to the status: %v", rep.Errors[0])
	}
}

func TestRunLoginFailure(t *testing.T) {
	cards, n := &fakeCards{}, &fakeNotifier{}
	r, rec := newRunner(nil, cards, n)
	authErr := errors.New("imap login: AUTHENTICATIONFAILED")
	r.Connect = func(context.Context) (Mailbox, error) { return nil, authErr }

	_, err := r.RunOnce(context.Background())
	if !errors.Is(err, authErr) {
		t.Fatalf("err = %v, want wrapped auth error", err)
	}
	if !IsFatal(err) {
		t.Errorf("connect failure must be fatal: %v", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageConnect {
		t.Errorf("stage = %v", err)
	}
	if len(cards.cards) != 0 || len(n.attempts) != 0 {
		t.Errorf("downstream calls after login failure")
	}
	if len(rec.runs) != 1 || rec.runs[0].err == nil {
		t.Errorf("recorder runs = %+v", rec.runs)
	}
}

func TestRunNotifyFailureContinues(t *testing.T) {
	mb := &fakeMailbox{
		order: []uint32{1, 2},
		msgs: map[uint32]domain.Message{
			1: msg(1, "bad@example.com", "Training for the team please."),
			2: msg(2, "good@example.com", "Training on SQL, June 5, 2025."),
		},
	}
	cards := &fakeCards{}
	n := &fakeNotifier{failFor: map[string]error{"bad@example.com": errors.New("550 mailbox unavailable")}}
	r, _ := newRunner(mb, cards, n)

	rep, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(cards.cards) != 2 {
		t.Errorf("cards = %d, want 2", len(cards.cards))
	}
	if len(n.attempts) != 4 {
		t.Errorf("send attempts = %d, want 4", len(n.attempts))
	}
	if rep.NotificationsSent != 3 || rep.NotificationFailures != 1 {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Errors) != 1 || rep.Errors[0].Stage != StageNotify || rep.Errors[0].UID != 1 {
		t.Errorf("Errors = %v", rep.Errors)
	}
	if IsFatal(rep.Errors[0]) {
		t.Error("notify failure must not be fatal")
	}
	if len(mb.seen) != 2 {
		t.Errorf("seen = %v", mb.seen)
	}
}

func TestRunLeaveUnseen(t *testing.T) {
	mb := &fakeMailbox{
		order: []uint32{1, 2},
		msgs: map[uint32]domain.Message{
			1: msg(1, "a@example.com", "training"),
			2: msg(2, "b@example.com", "nothing"),
		},
	}
	r, _ := newRunner(mb, &fakeCards{}, &fakeNotifier{})
	r.LeaveUnseen = true

	if _, err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(mb.seen) != 0 {
		t.Errorf("seen = %v, want none", mb.seen)
	}
}

func TestRunMarkSeenFailureIsRecoverable(t *testing.T) {
	mb := &fakeMailbox{
		order:   []uint32{1},
		msgs:    map[uint32]domain.Message{1: msg(1, "a@example.com", "nothing")},
		markErr: errors.New("store failed"),
	}
	r, _ := newRunner(mb, &fakeCards{}, &fakeNotifier{})

	rep, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(rep.Errors) != 1 || rep.Errors[0].Stage != StageMarkSeen {
		t.Errorf("Errors = %v", rep.Errors)
	}
}

func TestRunFetchErrorAbortsAndCloses(t *testing.T) {
	mb := &fakeMailbox{
		order:    []uint32{1, 2, 3},
		msgs:     map[uint32]domain.Message{1: msg(1, "a@example.com", "training")},
		fetchErr: map[uint32]error{2: errors.New("connection reset")},
	}
	cards := &fakeCards{}
	r, _ := newRunner(mb, cards, &fakeNotifier{})

	rep, err := r.RunOnce(context.Background())
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageFetch || se.UID != 2 {
		t.Fatalf("err = %v, want fetch error on uid 2", err)
	}
	if rep.Processed != 1 || len(cards.cards) != 1 {
		t.Errorf("report = %+v, cards = %d", rep, len(cards.cards))
	}
	if mb.closed != 1 {
		t.Errorf("mailbox not released on error path: closed = %d", mb.closed)
	}
}

func TestRunListError(t *testing.T) {
	mb := &fakeMailbox{listErr: errors.New("search failed")}
	r, _ := newRunner(mb, &fakeCards{}, &fakeNotifier{})

	_, err := r.RunOnce(context.Background())
	if !IsFatal(err) {
		t.Fatalf("err = %v, want fatal", err)
	}
	if mb.closed != 1 {
		t.Errorf("closed = %d", mb.closed)
	}
}

func TestRunRecordsReport(t *testing.T) {
	mb := &fakeMailbox{
		order: []uint32{1},
		msgs:  map[uint32]domain.Message{1: msg(1, "a@example.com", "training")},
	}
	r, rec := newRunner(mb, &fakeCards{}, &fakeNotifier{})

	rep, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(rec.runs) != 1 {
		t.Fatalf("recorder runs = %d", len(rec.runs))
	}
	got := rec.runs[0].rep
	if got.RunID == "" || got.RunID != rep.RunID {
		t.Errorf("RunID = %q vs %q", got.RunID, rep.RunID)
	}
	if got.FinishedAt.IsZero() || got.CardsCreated != 1 || got.NotificationsSent != 2 {
		t.Errorf("recorded = %+v", got)
	}
}

func TestRunEndToEnd(t *testing.T) {
	ex, err := extract.New(extract.SelectLast)
	if err != nil {
		t.Fatalf("extract.New: %v", err)
	}
	body := "Hi, we would like to request training on data analysis. The proposed date is June 5, 2025. Thanks."
	mb := &fakeMailbox{
		order: []uint32{9},
		msgs: map[uint32]domain.Message{9: {
			UID: 9, Sender: "Jane <jane@example.com>", SenderAddress: "jane@example.com", Body: body,
		}},
	}
	cards, n := &fakeCards{}, &fakeNotifier{}
	r, _ := newRunner(mb, cards, n)
	r.Extractor = ex

	if _, err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(cards.cards) != 1 {
		t.Fatalf("cards = %d", len(cards.cards))
	}
	card := cards.cards[0]
	if card.Title != "Training Request: Hi, we would like to request training on data analysis." {
		t.Errorf("Title = %q", card.Title)
	}
	if !strings.Contains(card.Description, "Proposed Dates: June 5, 2025") {
		t.Errorf("Description = %q", card.Description)
	}
	if len(n.attempts) != 2 || n.attempts[1].Recipient != "jane@example.com" {
		t.Fatalf("attempts = %+v", n.attempts)
	}
	if !strings.Contains(n.attempts[0].Body, "Card: https://trello.com/c/c1") {
		t.Errorf("instructor body = %q", n.attempts[0].Body)
	}
}

func TestRunMalformedMessageIsSkipped(t *testing.T) {
	mb := &fakeMailbox{
		order: []uint32{3, 4},
		msgs:  map[uint32]domain.Message{4: msg(4, "b@example.com", "Training on Go, June 5, 2025.")},
		fetchErr: map[uint32]error{
			3: fmt.Errorf("%w: parse uid 3 part: multipart: boundary is empty", domain.ErrMalformedMessage),
		},
	}
	cards, n := &fakeCards{}, &fakeNotifier{}
	r, _ := newRunner(mb, cards, n)

	rep, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(cards.cards) != 1 || len(n.attempts) != 2 {
		t.Errorf("message after the malformed one not handled: cards=%d sends=%d", len(cards.cards), len(n.attempts))
	}
	if rep.Malformed != 1 || rep.Processed != 1 {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Errors) != 1 || rep.Errors[0].Stage != StageParse || rep.Errors[0].UID != 3 {
		t.Fatalf("Errors = %v", rep.Errors)
	}
	if IsFatal(rep.Errors[0]) {
		t.Error("parse failure must not be fatal")
	}
	if len(mb.seen) != 2 || mb.seen[0] != 3 {
		t.Errorf("seen = %v, want the malformed message flagged so later runs move past it", mb.seen)
	}
}

func TestRunMalformedMessageLeaveUnseen(t *testing.T) {
	mb := &fakeMailbox{
		order:    []uint32{3},
		fetchErr: map[uint32]error{3: fmt.Errorf("%w: empty message", domain.ErrMalformedMessage)},
	}
	r, _ := newRunner(mb, &fakeCards{}, &fakeNotifier{})
	r.LeaveUnseen = true

	if _, err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(mb.seen) != 0 {
		t.Errorf("seen = %v", mb.seen)
	}
}
