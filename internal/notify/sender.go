// Package notify sends plain-text acknowledgement emails.
package notify

import (
	"context"

	"github.com/Sukhmangill977/data-couch/internal/domain"
)

// Sender delivers one notification to one recipient.
type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}
