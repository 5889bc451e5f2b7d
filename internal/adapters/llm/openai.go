package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/creatorplatform/gateway-core/pkg/mmodel"
)

// PlainConfig configures a plain-string-content provider family (the
// "openai" and "generic" families from spec.md §4.7 - identical wire
// format, distinguished only by base URL and auth header so per-provider
// timeout/backoff tuning doesn't leak across them).
type PlainConfig struct {
	BaseURL        string
	APIKey         string
	AuthHeaderName string
	AuthPrefix     string
}

// PlainProvider implements Provider for chat-completions-shaped upstreams:
// plain string message content, `choices[0].delta.content` SSE chunks.
type PlainProvider struct {
	cfg    PlainConfig
	client *StreamClient
}

// NewPlainProvider returns a PlainProvider.
func NewPlainProvider(cfg PlainConfig, client *StreamClient) *PlainProvider {
	return &PlainProvider{cfg: cfg, client: client}
}

type plainChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type plainChatRequest struct {
	Model            string              `json:"model"`
	Messages         []plainChatMessage  `json:"messages"`
	Stream           bool                `json:"stream"`
	Temperature      float64             `json:"temperature,omitempty"`
	MaxTokens        int                 `json:"max_tokens,omitempty"`
	TopP             float64             `json:"top_p,omitempty"`
	FrequencyPenalty float64             `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64             `json:"presence_penalty,omitempty"`
}

type plainChatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Stream implements Provider.
func (p *PlainProvider) Stream(ctx context.Context, model mmodel.Model, system mmodel.PromptMessage, messages []mmodel.PromptMessage, params mmodel.SamplingParams) (<-chan mmodel.StreamChunk, error) {
	payload := plainChatRequest{
		Model:            model.ProviderModelID,
		Stream:           true,
		Temperature:      params.Temperature,
		MaxTokens:        params.MaxTokens,
		TopP:             params.TopP,
		FrequencyPenalty: params.FrequencyPenalty,
		PresencePenalty:  params.PresencePenalty,
	}

	payload.Messages = append(payload.Messages, plainChatMessage{Role: "system", Content: flatten(system)})
	for _, m := range messages {
		payload.Messages = append(payload.Messages, plainChatMessage{Role: roleString(m.Role), Content: flatten(m)})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(p.cfg.AuthHeaderName, p.cfg.AuthPrefix+p.cfg.APIKey)

	resp, cancel, err := p.client.open(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer cancel()
		defer resp.Body.Close()

		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

		return nil, fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(errBody))
	}

	lines := p.client.sseLines(cancel, resp.Body)
	out := make(chan mmodel.StreamChunk)

	go func() {
		defer close(out)

		var promptTokens, completionTokens int64

		for line := range lines {
			if line == "[DONE]" {
				sendChunk(ctx, out, mmodel.StreamChunk{Done: true, PromptTokens: promptTokens, CompletionTokens: completionTokens})
				return
			}

			var chunk plainChatChunk
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				continue
			}

			if chunk.Usage != nil {
				promptTokens = chunk.Usage.PromptTokens
				completionTokens = chunk.Usage.CompletionTokens
			}

			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				if !sendChunk(ctx, out, mmodel.StreamChunk{Delta: chunk.Choices[0].Delta.Content}) {
					return
				}
			}
		}

		sendChunk(ctx, out, mmodel.StreamChunk{Done: true, PromptTokens: promptTokens, CompletionTokens: completionTokens})
	}()

	return out, nil
}

func flatten(m mmodel.PromptMessage) string {
	var out string
	for i, b := range m.Blocks {
		if i > 0 {
			out += "\n"
		}

		out += b.Text
	}

	return out
}

func roleString(r mmodel.MessageRole) string {
	switch r {
	case mmodel.RoleAssistant:
		return "assistant"
	case mmodel.RoleSystem:
		return "system"
	default:
		return "user"
	}
}
