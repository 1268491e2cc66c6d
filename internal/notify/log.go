package notify

import (
	"context"
	"log/slog"

	"github.com/Sukhmangill977/data-couch/internal/domain"
)

// LogSender logs notifications instead of sending them.
// Useful for dry runs and local testing.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) Send(_ context.Context, n domain.Notification) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("[notify] dry run, email not sent",
		"to", n.Recipient,
		"subject", n.Subject,
		"body", n.Body,
	)
	return nil
}
