package domain

// ExtractionResult is what the text extractor found in a message body.
// An empty field means nothing matched.
type ExtractionResult struct {
	TrainingType string // the matched sentence, trimmed
	Dates        string // the matched date substring
}

func (r ExtractionResult) Matched() bool { return r.TrainingType != "" }

type Card struct {
	Title       string
	Description string
}

// CreatedCard is what the task board returns for a new card.
type CreatedCard struct {
	ID  string
	URL string
}

type Notification struct {
	Recipient string
	Subject   string
	Body      string
}
