package storage

import (
	"context"
	"time"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
)

// Storage persists observation events and generated activity cards.
type Storage interface {
	Init(ctx context.Context) error
	SaveEvent(ctx context.Context, e event.Event) (int64, error)
	GetEvents(ctx context.Context, start, end time.Time, eventTypes ...event.EventType) ([]event.Event, error)
	SaveCard(ctx context.Context, c event.ActivityCard) error
	GetRecentCards(ctx context.Context, limit int) ([]event.ActivityCard, error)
	TrimCards(ctx context.Context, keep int) error
	Close() error
}
