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

// openaiProvider speaks the chat-completions wire format:
// POST {base}/v1/chat/completions, media as data-URL parts.
type openaiProvider struct {
	cfg  Config
	http *http.Client
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openaiMessage struct {
	Role string `json:"role"`
	// Content is either a plain string or a parts array carrying media.
	Content any `json:"content"`
}

type openaiPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiMediaURL `json:"image_url,omitempty"`
	VideoURL *openaiMediaURL `json:"video_url,omitempty"`
}

type openaiMediaURL struct {
	URL string `json:"url"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *openaiProvider) Name() string { return "openai" }

func (p *openaiProvider) Transcribe(ctx context.Context, media event.FilteredMedia, prompt string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s",
		media.MIME, base64.StdEncoding.EncodeToString(media.Data))

	mediaPart := openaiPart{Type: "image_url", ImageURL: &openaiMediaURL{URL: dataURL}}
	if strings.HasPrefix(media.MIME, "video/") {
		mediaPart = openaiPart{Type: "video_url", VideoURL: &openaiMediaURL{URL: dataURL}}
	}

	content := []openaiPart{
		mediaPart,
		{Type: "text", Text: prompt},
	}
	return p.call(ctx, content)
}

func (p *openaiProvider) StructureText(ctx context.Context, prompt string) (string, error) {
	return p.call(ctx, prompt)
}

func (p *openaiProvider) call(ctx context.Context, content any) (string, error) {
	body := openaiRequest{
		Model:       p.cfg.Model,
		Messages:    []openaiMessage{{Role: "user", Content: content}},
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxOutputTokens,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	url := strings.TrimRight(p.cfg.APIBase, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai response read failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Body:       truncateBody(string(raw), 500),
		}
		logrus.Warnf("OpenAI call failed: %v", statusErr)
		return "", statusErr
	}

	var decoded openaiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in openai response", ErrMalformedResponse)
	}
	return decoded.Choices[0].Message.Content, nil
}
