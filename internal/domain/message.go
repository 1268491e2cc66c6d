package domain

import (
	"errors"
	"time"
)

// ErrMalformedMessage marks a message that was fetched but could not be
// decoded. It concerns that one message only; the session is still usable.
var ErrMalformedMessage = errors.New("malformed message")

type Message struct {
	UID           uint32
	Sender        string // display form of From: "Name <addr>" or "addr"
	SenderAddress string
	Subject       string
	Body          string // plain text
	Date          time.Time
}
