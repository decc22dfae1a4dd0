package analysis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
)

type fakeAnalyzer struct {
	mu              sync.Mutex
	unconfigured    bool
	transcribeErr   error
	transcribed     []event.FilteredMedia
	generateCalls   int
	lastPrior       []event.ActivityCard
	cardsPerBatch   int
	segmentsPerCall int
}

func (f *fakeAnalyzer) TranscribeMedia(ctx context.Context, media event.FilteredMedia) ([]event.TranscriptionSegment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcribed = append(f.transcribed, media)
	if f.transcribeErr != nil {
		return nil, f.transcribeErr
	}
	segments := make([]event.TranscriptionSegment, f.segmentsPerCall)
	for i := range segments {
		segments[i] = event.TranscriptionSegment{Description: fmt.Sprintf("segment %d", i)}
	}
	return segments, nil
}

func (f *fakeAnalyzer) GenerateCards(ctx context.Context, transcript []event.TranscriptionSegment, prior []event.ActivityCard, mainQuest string, start, end time.Time) ([]event.ActivityCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	f.lastPrior = prior
	cards := make([]event.ActivityCard, f.cardsPerBatch)
	for i := range cards {
		cards[i] = event.ActivityCard{ID: fmt.Sprintf("card-%d-%d", f.generateCalls, i), Title: "t"}
	}
	return cards, nil
}

func (f *fakeAnalyzer) Unconfigured() bool { return f.unconfigured }

func (f *fakeAnalyzer) transcribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transcribed)
}

func frame(desc string) (event.FilteredMedia, event.MonitorSnapshot) {
	now := time.Now()
	return event.FilteredMedia{
		Data:  []byte(desc),
		MIME:  "image/jpeg",
		Start: now.Add(-time.Minute),
		End:   now,
	}, event.MonitorSnapshot{AppID: "code", Taken: now}
}

func TestFlushGeneratesCards(t *testing.T) {
	analyzer := &fakeAnalyzer{segmentsPerCall: 2, cardsPerBatch: 1}
	var got []event.ActivityCard
	b := NewBatcher(analyzer, 5, time.Minute, "quest", 10, func(ctx context.Context, cards []event.ActivityCard) {
		got = append(got, cards...)
	})

	ctx := context.Background()
	m1, s1 := frame("one")
	m2, s2 := frame("two")
	require.NoError(t, b.Submit(ctx, m1, s1))
	require.NoError(t, b.Submit(ctx, m2, s2))

	b.flush(ctx)

	assert.Equal(t, 2, analyzer.transcribeCount())
	assert.Equal(t, 1, analyzer.generateCalls)
	require.Len(t, got, 1)
	assert.Equal(t, "card-1-0", got[0].ID)
}

func TestFlushEmptyQueueIsNoop(t *testing.T) {
	analyzer := &fakeAnalyzer{segmentsPerCall: 1, cardsPerBatch: 1}
	b := NewBatcher(analyzer, 5, time.Minute, "", 10, nil)

	b.flush(context.Background())

	assert.Zero(t, analyzer.transcribeCount())
	assert.Zero(t, analyzer.generateCalls)
}

func TestFlushTransportFailureAbortsBatch(t *testing.T) {
	analyzer := &fakeAnalyzer{
		transcribeErr: &StatusError{Provider: "gemini", StatusCode: 503},
		cardsPerBatch: 1,
	}
	b := NewBatcher(analyzer, 5, time.Minute, "", 10, nil)

	ctx := context.Background()
	m1, s1 := frame("one")
	m2, s2 := frame("two")
	require.NoError(t, b.Submit(ctx, m1, s1))
	require.NoError(t, b.Submit(ctx, m2, s2))

	b.flush(ctx)

	// First frame fails with a transport error, the rest of the batch is
	// skipped and no cards are generated.
	assert.Equal(t, 1, analyzer.transcribeCount())
	assert.Zero(t, analyzer.generateCalls)
}

func TestFlushMalformedSkipsFrameOnly(t *testing.T) {
	analyzer := &fakeAnalyzer{transcribeErr: ErrMalformedResponse, cardsPerBatch: 1}
	b := NewBatcher(analyzer, 5, time.Minute, "", 10, nil)

	ctx := context.Background()
	m1, s1 := frame("one")
	m2, s2 := frame("two")
	require.NoError(t, b.Submit(ctx, m1, s1))
	require.NoError(t, b.Submit(ctx, m2, s2))

	b.flush(ctx)

	// Both frames attempted; no transcript means no card generation.
	assert.Equal(t, 2, analyzer.transcribeCount())
	assert.Zero(t, analyzer.generateCalls)
}

func TestFlushUnconfiguredDiscards(t *testing.T) {
	analyzer := &fakeAnalyzer{unconfigured: true}
	b := NewBatcher(analyzer, 5, time.Minute, "", 10, nil)

	ctx := context.Background()
	m, s := frame("one")
	require.NoError(t, b.Submit(ctx, m, s))

	b.flush(ctx)

	assert.Zero(t, analyzer.transcribeCount())
}

func TestSubmitBoundedDropsOldest(t *testing.T) {
	analyzer := &fakeAnalyzer{segmentsPerCall: 1, cardsPerBatch: 1}
	b := NewBatcher(analyzer, 2, time.Minute, "", 10, nil)

	ctx := context.Background()
	for _, desc := range []string{"one", "two", "three"} {
		m, s := frame(desc)
		require.NoError(t, b.Submit(ctx, m, s))
	}

	b.flush(ctx)

	require.Equal(t, 2, analyzer.transcribeCount())
	assert.Equal(t, []byte("two"), analyzer.transcribed[0].Data)
	assert.Equal(t, []byte("three"), analyzer.transcribed[1].Data)
}

func TestPriorCardsWindowed(t *testing.T) {
	analyzer := &fakeAnalyzer{segmentsPerCall: 1, cardsPerBatch: 2}
	b := NewBatcher(analyzer, 5, time.Minute, "", 3, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		m, s := frame(fmt.Sprintf("frame %d", i))
		require.NoError(t, b.Submit(ctx, m, s))
		b.flush(ctx)
	}

	// Each batch produced 2 cards; the window caps continuity context at 3.
	assert.Len(t, analyzer.lastPrior, 3)
	assert.Len(t, b.priorWindow(), 3)
}
