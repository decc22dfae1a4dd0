package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/event"
)

// geminiProvider speaks the generateContent wire format:
// POST {base}/v1beta/models/{model}:generateContent with inline_data parts.
type geminiProvider struct {
	cfg  Config
	http *http.Client
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
	Text       string            `json:"text,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *geminiProvider) Name() string { return "gemini" }

func (p *geminiProvider) Transcribe(ctx context.Context, media event.FilteredMedia, prompt string) (string, error) {
	parts := []geminiPart{
		{InlineData: &geminiInlineData{
			MIMEType: media.MIME,
			Data:     base64.StdEncoding.EncodeToString(media.Data),
		}},
		{Text: prompt},
	}
	return p.call(ctx, parts)
}

func (p *geminiProvider) StructureText(ctx context.Context, prompt string) (string, error) {
	return p.call(ctx, []geminiPart{{Text: prompt}})
}

func (p *geminiProvider) call(ctx context.Context, parts []geminiPart) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     p.cfg.Temperature,
			MaxOutputTokens: p.cfg.MaxOutputTokens,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(p.cfg.APIBase, "/"), p.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini response read failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Body:       truncateBody(string(raw), 500),
		}
		logrus.Warnf("Gemini call failed: %v", statusErr)
		return "", statusErr
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates in gemini response", ErrMalformedResponse)
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}
