package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyWindowByApp(t *testing.T) {
	category, confidence := ClassifyWindow("vscode", "main.go")
	assert.Equal(t, "coding", category)
	assert.InDelta(t, 0.8, confidence, 0.001)
}

func TestClassifyBrowserRefinedByTitle(t *testing.T) {
	category, confidence := ClassifyWindow("firefox", "Some Talk - YouTube")
	assert.Equal(t, "media", category)
	assert.InDelta(t, 0.75, confidence, 0.001)
}

func TestClassifyBrowserUnrefined(t *testing.T) {
	category, confidence := ClassifyWindow("chromium", "New Tab")
	assert.Equal(t, "browsing", category)
	assert.InDelta(t, 0.5, confidence, 0.001)
}

func TestClassifyByTitleFallback(t *testing.T) {
	category, confidence := ClassifyWindow("", "Spotify Premium")
	assert.Equal(t, "media", category)
	assert.InDelta(t, 0.6, confidence, 0.001)
}

func TestClassifyUnknown(t *testing.T) {
	category, confidence := ClassifyWindow("some-obscure-tool", "untitled")
	assert.Equal(t, "unknown", category)
	assert.InDelta(t, 0.3, confidence, 0.001)
}

func TestClassifyCaseInsensitive(t *testing.T) {
	category, _ := ClassifyWindow("DISCORD", "")
	assert.Equal(t, "social", category)
}
