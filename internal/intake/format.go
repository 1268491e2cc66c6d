package intake

import (
	"fmt"

	"github.com/Sukhmangill977/data-couch/internal/domain"
)

const noDate = "not specified"

func datesOrDefault(r domain.ExtractionResult) string {
	if r.Dates == "" {
		return noDate
	}
	return r.Dates
}

func FormatCard(msg domain.Message, r domain.ExtractionResult) domain.Card {
	return domain.Card{
		Title: "Training Request: " + r.TrainingType,
		Description: fmt.Sprintf("Request from: %s\n\nDetails:\n%s\nProposed Dates: %s\n\nFull Email:\n%s",
			msg.Sender, r.TrainingType, datesOrDefault(r), msg.Body),
	}
}

// FormatInstructor builds the instructor notice. cardURL may be empty.
func FormatInstructor(instructor string, msg domain.Message, r domain.ExtractionResult, cardURL string) domain.Notification {
	body := fmt.Sprintf("A new training request has been received from %s.\n\nDetails:\n%s\nProposed Dates: %s\n\nPlease review and confirm.",
		msg.Sender, r.TrainingType, datesOrDefault(r))
	if cardURL != "" {
		body += "\nCard: " + cardURL
	}
	return domain.Notification{
		Recipient: instructor,
		Subject:   "New Training Request",
		Body:      body,
	}
}

func FormatClient(msg domain.Message, r domain.ExtractionResult) domain.Notification {
	to := msg.SenderAddress
	if to == "" {
		to = msg.Sender
	}
	return domain.Notification{
		Recipient: to,
		Subject:   "Training Request Received",
		Body: fmt.Sprintf("Dear %s,\n\nThank you for your training inquiry. We have received your request for the training:\n%s\nProposed Dates: %s\n\nOur team will get back to you soon with the available dates.",
			msg.Sender, r.TrainingType, datesOrDefault(r)),
	}
}
