// Package trello creates cards on a Trello list.
package trello

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sukhmangill977/data-couch/internal/domain"
	"github.com/Sukhmangill977/data-couch/internal/util"
)

const DefaultBaseURL = "https://api.trello.com/1"

type Config struct {
	BaseURL string
	APIKey  string
	Token   string
	ListID  string
	Timeout time.Duration
}

type Client struct {
	cfg     Config
	hc      *http.Client
	limiter *util.HostLimiter
	log     *slog.Logger
}

// StatusError is returned when Trello answers anything but 200.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trello create card: status %d: %s", e.Code, e.Body)
}

func New(cfg Config, limiter *util.HostLimiter, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		log:     log,
	}
}

type cardResponse struct {
	ID       string `json:"id"`
	ShortURL string `json:"shortUrl"`
	URL      string `json:"url"`
}

func (c *Client) CreateCard(ctx context.Context, card domain.Card) (domain.CreatedCard, error) {
	if c.cfg.ListID == "" {
		return domain.CreatedCard{}, errors.New("trello list id is required")
	}

	q := url.Values{}
	q.Set("key", c.cfg.APIKey)
	q.Set("token", c.cfg.Token)
	q.Set("idList", c.cfg.ListID)
	q.Set("name", card.Title)
	q.Set("desc", card.Description)
	endpoint := c.cfg.BaseURL + "/cards?" + q.Encode()

	if err := c.limiter.WaitURL(ctx, endpoint); err != nil {
		return domain.CreatedCard{}, fmt.Errorf("trello rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return domain.CreatedCard{}, fmt.Errorf("trello build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "data-couch/1.0")

	res, err := c.hc.Do(req)
	if err != nil {
		// url.Error would echo the key and token back into logs.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return domain.CreatedCard{}, fmt.Errorf("trello create card: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return domain.CreatedCard{}, &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var cr cardResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&cr); err != nil {
		// The card exists; only the echo is unreadable.
		c.log.Warn("[trello] card created but response unreadable", "err", err)
		return domain.CreatedCard{}, nil
	}

	out := domain.CreatedCard{ID: cr.ID, URL: cr.ShortURL}
	if out.URL == "" {
		out.URL = cr.URL
	}
	return out, nil
}
