package config

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/Sukhmangill977/data-couch/internal/logging"
)

func init() {
	// Report field errors under their yaml keys.
	validation.ErrorTag = "yaml"
}

var portRules = []validation.Rule{validation.Required, validation.Min(1), validation.Max(65535)}

func Validate(cfg Config) error {
	live := !cfg.App.DryRun
	var errs []error

	add := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}

	add("app", validation.ValidateStruct(&cfg.App,
		validation.Field(&cfg.App.RunTimeoutSeconds, validation.Min(0)),
	))

	add("mail", validation.ValidateStruct(&cfg.Mail,
		validation.Field(&cfg.Mail.IMAPHost, validation.Required, is.Host),
		validation.Field(&cfg.Mail.IMAPPort, portRules...),
		validation.Field(&cfg.Mail.SMTPHost, validation.Required, is.Host),
		validation.Field(&cfg.Mail.SMTPPort, portRules...),
		validation.Field(&cfg.Mail.Username, validation.Required, is.EmailFormat),
		validation.Field(&cfg.Mail.Password, validation.Required.Error("is required (PASSWORD or keychain)")),
		validation.Field(&cfg.Mail.MaxMessages, validation.Min(0)),
		validation.Field(&cfg.Mail.SinceDays, validation.Min(0)),
	))

	add("trello", validation.ValidateStruct(&cfg.Trello,
		validation.Field(&cfg.Trello.BaseURL, validation.Required, is.URL),
		validation.Field(&cfg.Trello.APIKey, validation.When(live, validation.Required.Error("is required (TRELLO_API_KEY)"))),
		validation.Field(&cfg.Trello.Token, validation.When(live, validation.Required.Error("is required (TRELLO_TOKEN or keychain)"))),
		validation.Field(&cfg.Trello.ListID, validation.When(live, validation.Required.Error("is required (TRELLO_LIST_ID)"))),
		validation.Field(&cfg.Trello.TimeoutSeconds, validation.Min(0)),
		validation.Field(&cfg.Trello.RequestsPerSecond, validation.Min(0.0)),
	))

	add("notify", validation.ValidateStruct(&cfg.Notify,
		validation.Field(&cfg.Notify.Instructor, validation.Required.Error("is required (INSTRUCTOR_EMAIL)"), is.EmailFormat),
		validation.Field(&cfg.Notify.RequestsPerSecond, validation.Min(0.0)),
	))

	add("extract", validation.ValidateStruct(&cfg.Extract,
		validation.Field(&cfg.Extract.Selection, validation.In("first", "last")),
	))

	add("polling", validation.ValidateStruct(&cfg.Polling,
		validation.Field(&cfg.Polling.EverySeconds, validation.Min(0)),
	))

	add("log", validation.ValidateStruct(&cfg.Log,
		validation.Field(&cfg.Log.Level, validation.By(func(v any) error {
			_, err := logging.ParseLevel(v.(string))
			return err
		})),
	))

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// Warnings reports settings that are legal but probably not what was meant.
func Warnings(cfg Config) []string {
	var out []string
	if strings.TrimSpace(cfg.Trello.BoardID) != "" {
		out = append(out, "trello.board_id (BOARD_ID) is set but unused; cards go to trello.list_id")
	}
	if cfg.Mail.LeaveUnseen {
		out = append(out, "mail.leave_unseen is true; every run will re-process and re-notify the same messages")
	}
	if cfg.Polling.EverySeconds > 0 && cfg.Polling.EverySeconds < 30 {
		out = append(out, fmt.Sprintf("polling.every_seconds is very low (%d) and may hit provider rate limits", cfg.Polling.EverySeconds))
	}
	if cfg.App.DryRun {
		out = append(out, "app.dry_run is on; no cards will be created and no email sent")
	}
	return out
}
