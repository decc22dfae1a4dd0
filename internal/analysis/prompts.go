package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
)

// CategoryVocabulary is the closed set of activity categories the model is
// asked to choose from.
var CategoryVocabulary = []string{
	"coding", "writing", "learning", "browsing", "media", "social",
	"gaming", "work", "communication", "design", "reading", "research",
	"meeting", "idle", "unknown",
}

const transcriptionPromptTemplate = `You are the cognition engine of a personal activity system. The attached capture covers the time range %s to %s.

Describe what the user is doing as a sequence of timed observations. Be specific: not "writing code" but "implementing an async HTTP client in Python". Mention concrete content you can see (file names, URLs, chat partners).

Reply with ONLY a JSON array, no extra text:
[
  {"startOffset": "MM:SS", "endOffset": "MM:SS", "description": "specific observation"}
]`

const cardPromptTemplate = `You are the cognition engine of a personal activity system. Turn the transcript below into activity cards: structured, time-bounded summaries of what the user did.

Rules:
- Merge adjacent observations of the same activity into one card.
- Do not duplicate or overlap the previously generated cards; continue from them.
- category must be one of: %s
- Be concrete in titles and summaries.

Previously generated cards:
%s

User's main quest (their stated goal for this period):
%s

Transcript (%s to %s):
%s

Reply with ONLY a JSON array, no extra text:
[
  {"title": "short title", "startTime": "HH:MM", "endTime": "HH:MM", "category": "coding", "summary": "one or two sentences"}
]`

// ConnectionTestPrompt is a lightweight round trip used to validate
// credentials and base URL without invoking either analysis phase.
const ConnectionTestPrompt = `reply with exactly: OK`

func TranscriptionPrompt(start, end time.Time) string {
	return fmt.Sprintf(transcriptionPromptTemplate,
		start.Format("15:04:05"), end.Format("15:04:05"))
}

func CardPrompt(transcript []event.TranscriptionSegment, prior []event.ActivityCard, mainQuest string, start, end time.Time) string {
	priorJSON := "[]"
	if len(prior) > 0 {
		if b, err := json.Marshal(prior); err == nil {
			priorJSON = string(b)
		}
	}
	if strings.TrimSpace(mainQuest) == "" {
		mainQuest = "(none stated)"
	}

	var sb strings.Builder
	for _, seg := range transcript {
		fmt.Fprintf(&sb, "- [%s - %s] %s\n", seg.StartOffset, seg.EndOffset, seg.Description)
	}

	return fmt.Sprintf(cardPromptTemplate,
		strings.Join(CategoryVocabulary, " / "),
		priorJSON,
		mainQuest,
		start.Format("15:04"), end.Format("15:04"),
		sb.String())
}
