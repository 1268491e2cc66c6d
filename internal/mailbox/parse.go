package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/Sukhmangill977/data-couch/internal/domain"
)

const maxPartBytes = 6 << 20

// ParseMessage turns a raw RFC822 message into a domain.Message. The body is
// the first inline text/plain part; an HTML-only message is flattened to text.
//
// A malformed part stops the walk, but headers and any body decoded before it
// are still returned alongside the error.
func ParseMessage(uid uint32, raw []byte) (domain.Message, error) {
	msg := domain.Message{UID: uid}
	if len(raw) == 0 {
		return msg, fmt.Errorf("parse uid %d: empty message", uid)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return msg, fmt.Errorf("parse uid %d: %w", uid, err)
	}
	defer mr.Close()

	if subj, err := mr.Header.Subject(); err == nil {
		msg.Subject = strings.TrimSpace(subj)
	} else {
		msg.Subject = strings.TrimSpace(mr.Header.Get("Subject"))
	}
	if d, err := mr.Header.Date(); err == nil {
		msg.Date = d
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.SenderAddress = from[0].Address
		msg.Sender = displayAddress(from[0].Name, from[0].Address)
	} else {
		msg.Sender = strings.TrimSpace(mr.Header.Get("From"))
	}

	var plain, html string
	var partErr error
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		// An unknown charset still leaves the part readable, just undecoded.
		if err != nil && !(message.IsUnknownCharset(err) && p != nil) {
			partErr = fmt.Errorf("parse uid %d part: %w", uid, err)
			break
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		ct = strings.ToLower(ct)
		if ct == "" {
			ct = "text/plain"
		}
		if ct != "text/plain" && ct != "text/html" {
			continue
		}

		b, err := io.ReadAll(io.LimitReader(p.Body, maxPartBytes))
		if err != nil {
			partErr = fmt.Errorf("parse uid %d read part: %w", uid, err)
			break
		}
		switch {
		case ct == "text/plain" && plain == "":
			plain = string(b)
		case ct == "text/html" && html == "":
			html = string(b)
		}
	}

	switch {
	case plain != "":
		msg.Body = normalizeNewlines(plain)
	case html != "":
		msg.Body = htmlToText(html)
	}
	return msg, partErr
}

func htmlToText(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("script,style,head").Remove()
	// Block elements end sentences; keep their boundaries visible to the splitter.
	doc.Find("p,div,br,li,tr,h1,h2,h3,h4,h5,h6").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	var lines []string
	for _, l := range strings.Split(doc.Text(), "\n") {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func displayAddress(name, addr string) string {
	name = strings.TrimSpace(name)
	addr = strings.TrimSpace(addr)
	switch {
	case name == "":
		return addr
	case addr == "":
		return name
	default:
		return name + " <" + addr + ">"
	}
}
