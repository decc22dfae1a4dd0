package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
)

func TestExtractWholeTextArray(t *testing.T) {
	e := NewExtractor()

	raw, err := e.Array(`  [{"title":"Coding"}]  `)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"title":"Coding"}]`, string(raw))
}

func TestExtractFencedBlock(t *testing.T) {
	e := NewExtractor()

	text := "Here you go:\n```json\n[{\"title\":\"Coding\"}]\n```"
	raw, err := e.Array(text)
	require.NoError(t, err)

	var cards []event.ActivityCard
	require.NoError(t, json.Unmarshal(raw, &cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "Coding", cards[0].Title)
}

func TestExtractFencedBlockWithoutTag(t *testing.T) {
	e := NewExtractor()

	raw, err := e.Array("```\n[1, 2, 3]\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,3]`, string(raw))
}

func TestExtractPrefersWholeText(t *testing.T) {
	e := NewExtractor()

	// When the whole response is the array, it wins even if fenced text follows.
	raw, err := e.Array(`[{"a":1}]`)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"a":1}]`, string(raw))
}

func TestExtractNoArray(t *testing.T) {
	e := NewExtractor()

	_, err := e.Array("I could not produce any structured output, sorry.")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestExtractInvalidJSONInFence(t *testing.T) {
	e := NewExtractor()

	_, err := e.Array("```json\n[{'single': 'quotes'}]\n```")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestExtractObjectIsNotArray(t *testing.T) {
	e := NewExtractor()

	_, err := e.Array(`{"title":"Coding"}`)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestExtractCustomStrategy(t *testing.T) {
	// Extra strategies run after the default chain.
	fallback := func(text string) (string, bool) {
		return `["fallback"]`, true
	}
	e := NewExtractor(fallback)

	raw, err := e.Array("nothing structured here")
	require.NoError(t, err)
	assert.JSONEq(t, `["fallback"]`, string(raw))
}
