// Package extract finds the training statement and a proposed date in a
// free-text email body.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/Sukhmangill977/data-couch/internal/domain"
)

// Selection decides which sentence wins when several match.
type Selection int

const (
	SelectLast Selection = iota
	SelectFirst
)

func ParseSelection(s string) (Selection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last":
		return SelectLast, nil
	case "first":
		return SelectFirst, nil
	default:
		return SelectLast, fmt.Errorf("unknown selection %q (want first|last)", s)
	}
}

func (s Selection) String() string {
	if s == SelectFirst {
		return "first"
	}
	return "last"
}

const keyword = "training"

const monthName = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

// reDate accepts "21st March 2025", "21-March-2025", "5 June 2025" and "June 5, 2025".
var reDate = regexp.MustCompile(`(?i)\b(?:\d{1,2}(?:st|nd|rd|th)?[-/ ]?` + monthName + `[-/ ]?\d{4}|` + monthName + `\s\d{1,2},\s\d{4})\b`)

// reNumberEnd finds a sentence that ends in a number ("... 21st March 2025.")
// followed by a capitalised word. The English Punkt model treats such a period
// as an ordinal marker and never splits there.
var reNumberEnd = regexp.MustCompile(`\d[.!?]+\s+["'(]?\p{Lu}`)

type tokenizer interface {
	Tokenize(text string) []*sentences.Sentence
}

type Extractor struct {
	tok tokenizer
	sel Selection
}

// New loads the English sentence model. It is not cheap; build one and reuse it.
func New(sel Selection) (*Extractor, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load sentence tokenizer: %w", err)
	}
	return &Extractor{tok: tok, sel: sel}, nil
}

// Sentences splits body into trimmed, non-empty sentences.
func (e *Extractor) Sentences(body string) []string {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	var out []string
	for _, s := range e.tok.Tokenize(body) {
		for _, t := range splitAfterNumbers(s.Text) {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

func splitAfterNumbers(s string) []string {
	var out []string
	start := 0
	for _, m := range reNumberEnd.FindAllStringIndex(s, -1) {
		// Cut after the punctuation run, before the whitespace.
		cut := m[0] + 1
		for cut < m[1] && strings.ContainsRune(".!?", rune(s[cut])) {
			cut++
		}
		out = append(out, s[start:cut])
		start = cut
	}
	return append(out, s[start:])
}

// Extract scans every sentence. The training statement and the date are
// selected independently, each by the extractor's Selection.
func (e *Extractor) Extract(body string) domain.ExtractionResult {
	var res domain.ExtractionResult
	for _, s := range e.Sentences(body) {
		if strings.Contains(strings.ToLower(s), keyword) {
			if e.sel == SelectLast || res.TrainingType == "" {
				res.TrainingType = s
			}
		}
		if d := MatchDate(s); d != "" {
			if e.sel == SelectLast || res.Dates == "" {
				res.Dates = d
			}
		}
	}
	// A date on its own is not a request.
	if res.TrainingType == "" {
		res.Dates = ""
	}
	return res
}

// MatchDate returns the first date-like substring of s, or "".
func MatchDate(s string) string {
	return reDate.FindString(s)
}
