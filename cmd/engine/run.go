package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Sukhmangill977/data-couch/internal/config"
	"github.com/Sukhmangill977/data-couch/internal/extract"
	"github.com/Sukhmangill977/data-couch/internal/intake"
	"github.com/Sukhmangill977/data-couch/internal/logging"
	"github.com/Sukhmangill977/data-couch/internal/mailbox"
	"github.com/Sukhmangill977/data-couch/internal/metrics"
	"github.com/Sukhmangill977/data-couch/internal/notify"
	"github.com/Sukhmangill977/data-couch/internal/runlock"
	"github.com/Sukhmangill977/data-couch/internal/scheduler"
	"github.com/Sukhmangill977/data-couch/internal/store"
	"github.com/Sukhmangill977/data-couch/internal/trello"
	"github.com/Sukhmangill977/data-couch/internal/util"
)

func runCmd(ctx context.Context, args []string, stderr io.Writer) int {
	fs, cf := newFlagSet("run", stderr)
	every := fs.Duration("every", 0, "repeat the run at this interval (0 = run once)")
	dryRun := fs.Bool("dry-run", false, "log cards and emails instead of creating/sending them")
	debug := fs.Bool("debug", false, "debug logging")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *every < 0 || (*every > 0 && *every < time.Second) {
		fmt.Fprintf(stderr, "-every %s: must be 0 (run once) or at least 1s\n", *every)
		return exitUsage
	}

	cfg, err := loadConfig(cf)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if *dryRun {
		cfg.App.DryRun = true
	}
	if *every > 0 {
		cfg.Polling.EverySeconds = int(every.Round(time.Second) / time.Second)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	log, logFile, err := logging.New(stderr, logging.Options{Level: cfg.Log.Level, Debug: *debug, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer logFile.Close()
	slog.SetDefault(log)

	for _, w := range config.Warnings(cfg) {
		log.Warn("[config] " + w)
	}

	lockPath := cfg.App.LockPath
	if lockPath == "" {
		lockPath = filepath.Join(os.TempDir(), "data-couch.lock")
	}
	release, err := runlock.Acquire(lockPath)
	if err != nil {
		log.Error("[engine] cannot start", "err", err)
		return exitFatal
	}
	defer func() { _ = release() }()

	runner, cleanup, err := buildRunner(cfg, log)
	if err != nil {
		log.Error("[engine] setup failed", "err", err)
		return exitUsage
	}
	defer cleanup()

	runOnce := func(ctx context.Context) error {
		if d := cfg.RunTimeout(); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		_, err := runner.RunOnce(ctx)
		return err
	}

	if d := cfg.PollEvery(); d > 0 {
		log.Info("[engine] polling", "every", d)
		scheduler.Every(ctx, d, "intake", log, runOnce)
		return exitOK
	}

	if err := runOnce(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("[engine] interrupted")
		}
		return exitFatal
	}
	return exitOK
}

// buildRunner wires the configured collaborators. cleanup releases the
// journal; it is safe to call when setup failed part way.
func buildRunner(cfg config.Config, log *slog.Logger) (*intake.Runner, func(), error) {
	cleanup := func() {}

	sel, err := extract.ParseSelection(cfg.Extract.Selection)
	if err != nil {
		return nil, cleanup, err
	}
	ex, err := extract.New(sel)
	if err != nil {
		return nil, cleanup, err
	}

	var (
		cards    intake.CardCreator
		notifier intake.Notifier
	)
	if cfg.App.DryRun {
		cards = trello.LogCreator{Log: log}
		notifier = notify.LogSender{Log: log}
	} else {
		cards = trello.New(trello.Config{
			BaseURL: cfg.Trello.BaseURL,
			APIKey:  cfg.Trello.APIKey,
			Token:   cfg.Trello.Token,
			ListID:  cfg.Trello.ListID,
			Timeout: cfg.TrelloTimeout(),
		}, util.NewHostLimiter(cfg.Trello.RequestsPerSecond, 1), log)

		sender, err := notify.NewSMTPSender(notify.SMTPConfig{
			Addr:     cfg.SMTPAddr(),
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		}, util.NewHostLimiter(cfg.Notify.RequestsPerSecond, 1), log)
		if err != nil {
			return nil, cleanup, err
		}
		notifier = sender
	}

	var recorders []intake.Recorder
	if cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() { _ = db.Close() }
		recorders = append(recorders, db)
	}
	if cfg.Metrics.Textfile != "" {
		recorders = append(recorders, metrics.New(cfg.Metrics.Textfile))
	}

	imapOpts := mailbox.Options{
		Addr:        cfg.IMAPAddr(),
		Username:    cfg.Mail.Username,
		Password:    cfg.Mail.Password,
		Mailbox:     cfg.Mail.Mailbox,
		MaxMessages: cfg.Mail.MaxMessages,
		SinceDays:   cfg.Mail.SinceDays,
		Logger:      log,
	}

	return &intake.Runner{
		Connect: func(ctx context.Context) (intake.Mailbox, error) {
			c, err := mailbox.Dial(ctx, imapOpts)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		Extractor:  ex,
		Cards:      cards,
		Notifier:   notifier,
		Instructor: cfg.Notify.Instructor,
		// A dry run must not consume messages it did not act on.
		LeaveUnseen: cfg.Mail.LeaveUnseen || cfg.App.DryRun,
		Recorders:   recorders,
		Log:         log,
	}, cleanup, nil
}
