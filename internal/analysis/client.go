// Package analysis turns filtered captures into structured activity data via
// one of two interchangeable remote AI providers. The client never retries
// and never returns partial data: every call ends in a result or a typed
// failure the calling loop can classify.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
)

const userAgent = "sls-perception/0.1"

type Config struct {
	Provider        string // "gemini" or "openai"
	APIKey          string
	APIBase         string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	// HeaderTimeout bounds the wait for response headers; RequestTimeout
	// bounds the whole exchange (video payloads are large).
	HeaderTimeout  time.Duration
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeaderTimeout <= 0 {
		c.HeaderTimeout = 120 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 300 * time.Second
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = 2048
	}
	return c
}

// Provider exposes the two logical operations both backends share, over
// their incompatible wire formats. Selection happens once at configuration
// time, not per call.
type Provider interface {
	Transcribe(ctx context.Context, media event.FilteredMedia, prompt string) (string, error)
	StructureText(ctx context.Context, prompt string) (string, error)
	Name() string
}

func NewProvider(cfg Config) (Provider, error) {
	cfg = cfg.withDefaults()
	httpClient := &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: &http.Transport{
			ResponseHeaderTimeout: cfg.HeaderTimeout,
		},
	}
	switch cfg.Provider {
	case "gemini":
		return &geminiProvider{cfg: cfg, http: httpClient}, nil
	case "openai":
		return &openaiProvider{cfg: cfg, http: httpClient}, nil
	default:
		return nil, fmt.Errorf("unknown analysis provider %q", cfg.Provider)
	}
}

type Client struct {
	cfg      Config
	provider Provider
	extract  *Extractor
	entropy  *rand.Rand
}

func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:      cfg,
		provider: provider,
		extract:  NewExtractor(),
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (c *Client) ProviderName() string {
	return c.provider.Name()
}

func (c *Client) configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

// TranscribeMedia is phase 1: submit one filtered capture and get back timed
// observation segments.
func (c *Client) TranscribeMedia(ctx context.Context, media event.FilteredMedia) ([]event.TranscriptionSegment, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}
	if media.Suppressed || len(media.Data) == 0 {
		// Invariant: suppressed media never crosses this boundary.
		return nil, fmt.Errorf("%w: suppressed or empty media", ErrBadRequest)
	}

	text, err := c.provider.Transcribe(ctx, media, TranscriptionPrompt(media.Start, media.End))
	if err != nil {
		return nil, err
	}

	raw, err := c.extract.Array(text)
	if err != nil {
		return nil, err
	}
	var segments []event.TranscriptionSegment
	if err := json.Unmarshal(raw, &segments); err != nil {
		return nil, fmt.Errorf("%w: segment array does not match expected shape: %v", ErrMalformedResponse, err)
	}
	return segments, nil
}

// GenerateCards is phase 2: turn a transcript plus continuity context into
// activity-card drafts.
func (c *Client) GenerateCards(ctx context.Context, transcript []event.TranscriptionSegment, prior []event.ActivityCard, mainQuest string, start, end time.Time) ([]event.ActivityCard, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}

	text, err := c.provider.StructureText(ctx, CardPrompt(transcript, prior, mainQuest, start, end))
	if err != nil {
		return nil, err
	}

	raw, err := c.extract.Array(text)
	if err != nil {
		return nil, err
	}
	var cards []event.ActivityCard
	if err := json.Unmarshal(raw, &cards); err != nil {
		return nil, fmt.Errorf("%w: card array does not match expected shape: %v", ErrMalformedResponse, err)
	}

	now := time.Now()
	for i := range cards {
		cards[i].ID = ulid.MustNew(ulid.Timestamp(now), c.entropy).String()
		cards[i].CreatedAt = now
		if cards[i].Category == "" {
			// Backfill from the zero-cost classifier when the model omits it.
			cards[i].Category, _ = ClassifyWindow("", cards[i].Title)
		}
	}
	return cards, nil
}

// TestConnection validates credentials and base URL with a text-only round
// trip, without invoking either analysis phase.
func (c *Client) TestConnection(ctx context.Context) error {
	if !c.configured() {
		return ErrNotConfigured
	}
	text, err := c.provider.StructureText(ctx, ConnectionTestPrompt)
	if err != nil {
		return err
	}
	if !strings.Contains(strings.ToUpper(text), "OK") {
		return fmt.Errorf("%w: unexpected test reply %q", ErrMalformedResponse, truncateBody(text, 80))
	}
	return nil
}

// Unconfigured reports whether calls will short-circuit without network I/O.
func (c *Client) Unconfigured() bool {
	return !c.configured()
}
