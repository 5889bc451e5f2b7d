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

// AnthropicConfig configures the multipart content-block provider family
// from spec.md §4.7: content is an array of typed blocks rather than a
// plain string, and a cache-eligible system block carries an explicit
// cache_control directive instead of a bare prompt-cache header.
type AnthropicConfig struct {
	BaseURL    string
	APIKey     string
	APIVersion string
}

// AnthropicProvider implements Provider for the Anthropic Messages API wire
// shape: multipart content blocks, content_block_delta/message_delta SSE
// events.
type AnthropicProvider struct {
	cfg    AnthropicConfig
	client *StreamClient
}

// NewAnthropicProvider returns an AnthropicProvider.
func NewAnthropicProvider(cfg AnthropicConfig, client *StreamClient) *AnthropicProvider {
	return &AnthropicProvider{cfg: cfg, client: client}
}

type anthropicTextBlock struct {
	Type         string           `json:"type"`
	Text         string           `json:"text"`
	CacheControl *anthropicCache  `json:"cache_control,omitempty"`
}

type anthropicCache struct {
	Type string `json:"type"`
}

type anthropicMessage struct {
	Role    string                `json:"role"`
	Content []anthropicTextBlock  `json:"content"`
}

type anthropicRequest struct {
	Model       string               `json:"model"`
	System      []anthropicTextBlock `json:"system,omitempty"`
	Messages    []anthropicMessage   `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature,omitempty"`
	TopP        float64              `json:"top_p,omitempty"`
	Stream      bool                 `json:"stream"`
}

// anthropicEvent covers the subset of SSE event payloads the orchestrator
// cares about: streamed text deltas and the usage totals that arrive on
// message_start/message_delta.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Message *struct {
		Usage struct {
			InputTokens int64 `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Usage *struct {
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// Stream implements Provider.
func (p *AnthropicProvider) Stream(ctx context.Context, model mmodel.Model, system mmodel.PromptMessage, messages []mmodel.PromptMessage, params mmodel.SamplingParams) (<-chan mmodel.StreamChunk, error) {
	payload := anthropicRequest{
		Model:       model.ProviderModelID,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		Stream:      true,
		System:      toAnthropicBlocks(system),
	}

	for _, m := range messages {
		payload.Messages = append(payload.Messages, anthropicMessage{
			Role:    anthropicRole(m.Role),
			Content: toAnthropicBlocks(m),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", p.cfg.APIVersion)

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
			var ev anthropicEvent
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				continue
			}

			switch ev.Type {
			case "content_block_delta":
				if ev.Delta.Text != "" {
					if !sendChunk(ctx, out, mmodel.StreamChunk{Delta: ev.Delta.Text}) {
						return
					}
				}
			case "message_start":
				if ev.Message != nil {
					promptTokens = ev.Message.Usage.InputTokens
				}
			case "message_delta":
				if ev.Usage != nil {
					completionTokens = ev.Usage.OutputTokens
				}
			case "message_stop":
				sendChunk(ctx, out, mmodel.StreamChunk{Done: true, PromptTokens: promptTokens, CompletionTokens: completionTokens})
				return
			}
		}

		sendChunk(ctx, out, mmodel.StreamChunk{Done: true, PromptTokens: promptTokens, CompletionTokens: completionTokens})
	}()

	return out, nil
}

func toAnthropicBlocks(m mmodel.PromptMessage) []anthropicTextBlock {
	blocks := make([]anthropicTextBlock, 0, len(m.Blocks))

	for _, b := range m.Blocks {
		block := anthropicTextBlock{Type: "text", Text: b.Text}
		if b.Cache != nil {
			block.CacheControl = &anthropicCache{Type: b.Cache.Type}
		}

		blocks = append(blocks, block)
	}

	return blocks
}

func anthropicRole(r mmodel.MessageRole) string {
	if r == mmodel.RoleAssistant {
		return "assistant"
	}

	return "user"
}
