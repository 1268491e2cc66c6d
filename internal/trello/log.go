package trello

import (
	"context"
	"log/slog"

	"github.com/Sukhmangill977/data-couch/internal/domain"
)

// LogCreator logs cards instead of creating them. Used for dry runs.
type LogCreator struct {
	Log *slog.Logger
}

func (l LogCreator) CreateCard(_ context.Context, card domain.Card) (domain.CreatedCard, error) {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("[trello] dry run, card not created", "title", card.Title, "desc_len", len(card.Description))
	return domain.CreatedCard{ID: "dry-run"}, nil
}
