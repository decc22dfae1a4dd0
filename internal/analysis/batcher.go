package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
)

// Analyzer is the slice of the client the batcher drives.
type Analyzer interface {
	TranscribeMedia(ctx context.Context, media event.FilteredMedia) ([]event.TranscriptionSegment, error)
	GenerateCards(ctx context.Context, transcript []event.TranscriptionSegment, prior []event.ActivityCard, mainQuest string, start, end time.Time) ([]event.ActivityCard, error)
	Unconfigured() bool
}

// Batcher accumulates filtered frames and runs the two-phase analysis when
// the batch window closes. Admission control is one batch in flight: the
// batcher's own goroutine is the only caller, which bounds API spend.
type Batcher struct {
	analyzer  Analyzer
	maxBatch  int
	interval  time.Duration
	mainQuest string
	// contextWindow bounds how many prior cards are replayed to the model
	// for continuity and de-duplication.
	contextWindow int
	onCards       func(ctx context.Context, cards []event.ActivityCard)

	mu     sync.Mutex
	frames []batchFrame
	prior  []event.ActivityCard

	loggedUnconfigured bool
}

type batchFrame struct {
	media event.FilteredMedia
	snap  event.MonitorSnapshot
}

func NewBatcher(analyzer Analyzer, maxBatch int, interval time.Duration, mainQuest string, contextWindow int, onCards func(ctx context.Context, cards []event.ActivityCard)) *Batcher {
	if maxBatch <= 0 {
		maxBatch = 5
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if contextWindow <= 0 {
		contextWindow = 10
	}
	return &Batcher{
		analyzer:      analyzer,
		maxBatch:      maxBatch,
		interval:      interval,
		mainQuest:     mainQuest,
		contextWindow: contextWindow,
		onCards:       onCards,
	}
}

// Submit queues one filtered frame. The queue is bounded: when full, the
// oldest frame is dropped so a stalled analysis path cannot grow memory.
func (b *Batcher) Submit(ctx context.Context, media event.FilteredMedia, snap event.MonitorSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.frames) >= b.maxBatch {
		b.frames = b.frames[1:]
		logrus.Debug("Batch full, dropping oldest frame.")
	}
	b.frames = append(b.frames, batchFrame{media: media, snap: snap})
	return nil
}

func (b *Batcher) Run(ctx context.Context) error {
	logrus.Infof("Starting analysis batcher (interval: %s, batch: %d)", b.interval, b.maxBatch)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Analysis batcher stopping.")
			return ctx.Err()
		case <-ticker.C:
			b.flush(ctx)
		}
	}
}

func (b *Batcher) flush(ctx context.Context) {
	b.mu.Lock()
	frames := b.frames
	b.frames = nil
	b.mu.Unlock()

	if len(frames) == 0 {
		return
	}
	if b.analyzer.Unconfigured() {
		if !b.loggedUnconfigured {
			logrus.Info("Analysis provider unconfigured; captured frames are discarded.")
			b.loggedUnconfigured = true
		}
		return
	}

	start := frames[0].media.Start
	end := frames[len(frames)-1].media.End

	var transcript []event.TranscriptionSegment
	for _, f := range frames {
		segments, err := b.analyzer.TranscribeMedia(ctx, f.media)
		if err != nil {
			switch Classify(err) {
			case FailureTransport:
				// Skip the whole cycle; next scheduled batch tries again.
				logrus.Warnf("Transcription transport failure, skipping batch: %v", err)
				return
			case FailureUnconfigured:
				return
			default:
				logrus.Warnf("Transcription failed for one frame: %v", err)
				continue
			}
		}
		transcript = append(transcript, segments...)
	}
	if len(transcript) == 0 {
		logrus.Debug("Batch produced no transcript, no cards generated.")
		return
	}

	cards, err := b.analyzer.GenerateCards(ctx, transcript, b.priorWindow(), b.mainQuest, start, end)
	if err != nil {
		logrus.Warnf("Card generation failed: %v", err)
		return
	}
	if len(cards) == 0 {
		return
	}

	b.mu.Lock()
	b.prior = append(b.prior, cards...)
	if len(b.prior) > b.contextWindow {
		b.prior = b.prior[len(b.prior)-b.contextWindow:]
	}
	b.mu.Unlock()

	logrus.Infof("Generated %d activity card(s).", len(cards))
	if b.onCards != nil {
		b.onCards(ctx, cards)
	}
}

func (b *Batcher) priorWindow() []event.ActivityCard {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]event.ActivityCard, len(b.prior))
	copy(out, b.prior)
	return out
}
