// Package mailbox reads unseen messages from an IMAP inbox.
package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/Sukhmangill977/data-couch/internal/domain"
)

type Options struct {
	Addr     string // host:port, implicit TLS
	Username string
	Password string
	Mailbox  string // default INBOX

	// MaxMessages caps one listing; <= 0 means 200.
	MaxMessages int
	// SinceDays restricts the search to recent mail; 0 means no cutoff.
	SinceDays int

	TLSConfig *tls.Config
	Logger    *slog.Logger
}

// Client is one logged-in IMAP session with a mailbox selected.
type Client struct {
	c    *imapclient.Client
	opts Options
	log  *slog.Logger

	stop      func() bool
	closeOnce sync.Once
	closeErr  error
}

// Dial connects over TLS, logs in and selects the mailbox.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Addr == "" {
		return nil, errors.New("imap addr is required")
	}
	if opts.Username == "" || opts.Password == "" {
		return nil, errors.New("imap username/password is required")
	}
	if opts.Mailbox == "" {
		opts.Mailbox = "INBOX"
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 200
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TLSConfig == nil {
		host, _, err := net.SplitHostPort(opts.Addr)
		if err != nil {
			return nil, fmt.Errorf("imap addr %q: %w", opts.Addr, err)
		}
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}

	c, err := imapclient.DialTLS(opts.Addr, &imapclient.Options{TLSConfig: opts.TLSConfig})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	// Closing the connection unblocks any pending command once ctx is done.
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })

	if err := c.Login(opts.Username, opts.Password).Wait(); err != nil {
		stop()
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}

	if _, err := c.Select(opts.Mailbox, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
		stop()
		_ = c.Close()
		return nil, fmt.Errorf("imap select %q: %w", opts.Mailbox, err)
	}

	opts.Logger.Debug("[imap] session ready", "addr", opts.Addr, "mailbox", opts.Mailbox)
	return &Client{c: c, opts: opts, log: opts.Logger, stop: stop}, nil
}

// ListUnseen returns UIDs of messages without \Seen, oldest first.
func (m *Client) ListUnseen(ctx context.Context) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
	if m.opts.SinceDays > 0 {
		criteria.Since = time.Now().AddDate(0, 0, -m.opts.SinceDays)
	}

	data, err := m.c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search unseen: %w", err)
	}

	uids := data.AllUIDs()
	slices.Sort(uids)
	if len(uids) > m.opts.MaxMessages {
		m.log.Warn("[imap] unseen backlog truncated", "unseen", len(uids), "max", m.opts.MaxMessages)
		uids = uids[:m.opts.MaxMessages]
	}

	out := make([]uint32, len(uids))
	for i, u := range uids {
		out[i] = uint32(u)
	}
	return out, nil
}

// Fetch pulls one message by UID. BODY.PEEK[] is used so fetching never sets \Seen.
// A message that cannot be decoded yields an error wrapping
// domain.ErrMalformedMessage; other errors mean the session failed.
func (m *Client) Fetch(ctx context.Context, uid uint32) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}

	bodyAll := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierNone,
		Peek:      true,
	}
	fetchOptions := &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodyAll},
	}

	cmd := m.c.Fetch(imap.UIDSetNum(imap.UID(uid)), fetchOptions)
	defer func() { _ = cmd.Close() }()

	msgData := cmd.Next()
	if msgData == nil {
		if err := cmd.Close(); err != nil {
			return domain.Message{}, fmt.Errorf("imap fetch uid %d: %w", uid, err)
		}
		return domain.Message{}, fmt.Errorf("imap fetch uid %d: message not found", uid)
	}

	buf, err := msgData.Collect()
	if err != nil {
		return domain.Message{}, fmt.Errorf("imap fetch collect uid %d: %w", uid, err)
	}
	if err := cmd.Close(); err != nil {
		return domain.Message{}, fmt.Errorf("imap fetch close uid %d: %w", uid, err)
	}

	raw := buf.FindBodySection(bodyAll)
	msg, err := ParseMessage(uid, raw)
	if err != nil {
		if msg.Body == "" {
			return domain.Message{UID: uid}, fmt.Errorf("%w: %w", domain.ErrMalformedMessage, err)
		}
		m.log.Warn("[imap] message partly malformed, using the body decoded so far", "uid", uid, "err", err)
	}

	if buf.Envelope != nil {
		if msg.Subject == "" {
			msg.Subject = buf.Envelope.Subject
		}
		if msg.Date.IsZero() {
			msg.Date = buf.Envelope.Date
		}
		if msg.SenderAddress == "" && len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			msg.SenderAddress = from.Addr()
			msg.Sender = displayAddress(from.Name, from.Addr())
		}
	}
	return msg, nil
}

// MarkSeen sets \Seen on the given UIDs.
func (m *Client) MarkSeen(ctx context.Context, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	set := make([]imap.UID, len(uids))
	for i, u := range uids {
		set[i] = imap.UID(u)
	}

	storeFlags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}
	if err := m.c.Store(imap.UIDSetNum(set...), storeFlags, nil).Close(); err != nil {
		return fmt.Errorf("imap store add seen: %w", err)
	}
	return nil
}

// Close logs out then closes the connection. Safe to call more than once.
func (m *Client) Close() error {
	m.closeOnce.Do(func() {
		m.stop()
		if err := m.c.Logout().Wait(); err != nil {
			m.log.Warn("[imap] logout", "err", err)
			m.closeErr = fmt.Errorf("imap logout: %w", err)
		}
		_ = m.c.Close()
	})
	return m.closeErr
}
