package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Strategy attempts to pull a JSON array out of freeform model text.
// Strategies are tried in order; extraction is inherently best-effort
// against an LLM's prose, so the chain is pluggable.
type Strategy func(text string) (string, bool)

// Extractor runs a chain of extraction strategies over a model response.
type Extractor struct {
	strategies []Strategy
}

func NewExtractor(extra ...Strategy) *Extractor {
	chain := []Strategy{wholeTextArray, fencedBlockArray}
	return &Extractor{strategies: append(chain, extra...)}
}

// Array returns the first JSON array any strategy can extract, or a
// malformed-response failure. Never partial data.
func (e *Extractor) Array(text string) (json.RawMessage, error) {
	for _, strategy := range e.strategies {
		if candidate, ok := strategy(text); ok {
			return json.RawMessage(candidate), nil
		}
	}
	return nil, fmt.Errorf("%w: no JSON array found in %q", ErrMalformedResponse, truncateBody(text, 200))
}

// Strategy 1: the entire response is the array.
func wholeTextArray(text string) (string, bool) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "[") && json.Valid([]byte(cleaned)) {
		return cleaned, true
	}
	return "", false
}

// Strategy 2: the array is inside a fenced code block, optionally tagged
// json. Non-greedy and multi-line-spanning.
var fencedArrayRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\])\\s*```")

func fencedBlockArray(text string) (string, bool) {
	matches := fencedArrayRegex.FindStringSubmatch(text)
	if len(matches) > 1 {
		candidate := strings.TrimSpace(matches[1])
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}
