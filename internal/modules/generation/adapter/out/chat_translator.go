package out

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	generationout "pixelbooth/internal/modules/generation/port/out"
)

// ChatTranslator asks an OpenAI compatible chat completions endpoint to
// translate prompts.
type ChatTranslator struct {
	endpoint string
	apiKey   string
	model    string
	target   string
	client   *http.Client
}

func NewChatTranslator(endpoint, apiKey, model, targetLanguage string, timeout time.Duration) generationout.Translator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if targetLanguage == "" {
		targetLanguage = "English"
	}
	return &ChatTranslator{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		model:    model,
		target:   targetLanguage,
		client:   &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (t *ChatTranslator) Translate(ctx context.Context, text string) (string, error) {
	raw, err := json.Marshal(chatRequest{
		Model: t.model,
		Messages: []chatMessage{
			{Role: "system", Content: "Translate the following text to " + t.target + ". Reply with the translation only."},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode translation request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build translation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate: %s", statusError(resp))
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode translation: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("translate: no choices returned")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
