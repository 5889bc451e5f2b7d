package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/creatorplatform/gateway-core/pkg/mmodel"
)

func TestPlainProviderStreamsDeltasAndDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		flusher := w.(http.Flusher)

		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":10,\"completion_tokens\":2}}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	p := NewPlainProvider(PlainConfig{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		AuthHeaderName: "Authorization",
		AuthPrefix:     "Bearer ",
	}, NewStreamClient(time.Second, time.Second, 5*time.Second))

	model := mmodel.Model{Provider: "openai", ProviderModelID: "gpt-test"}
	system := mmodel.PromptMessage{Role: mmodel.RoleSystem, Blocks: []mmodel.ContentBlock{{Text: "be helpful"}}}
	messages := []mmodel.PromptMessage{{Role: mmodel.RoleUser, Blocks: []mmodel.ContentBlock{{Text: "hi"}}}}

	chunks, err := p.Stream(context.Background(), model, system, messages, mmodel.SamplingParams{})
	require.NoError(t, err)

	var text string
	var done mmodel.StreamChunk

	for c := range chunks {
		if c.Done {
			done = c
			break
		}

		text += c.Delta
	}

	require.Equal(t, "Hello", text)
	require.True(t, done.Done)
	require.Equal(t, int64(10), done.PromptTokens)
	require.Equal(t, int64(2), done.CompletionTokens)
}

func TestPlainProviderReturnsErrorOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "invalid api key")
	}))
	defer srv.Close()

	p := NewPlainProvider(PlainConfig{BaseURL: srv.URL, AuthHeaderName: "Authorization", AuthPrefix: "Bearer "}, NewStreamClient(time.Second, time.Second, 5*time.Second))

	_, err := p.Stream(context.Background(), mmodel.Model{}, mmodel.PromptMessage{}, nil, mmodel.SamplingParams{})
	require.Error(t, err)
}

func TestRegistryDispatchesByProviderName(t *testing.T) {
	client := NewStreamClient(time.Second, time.Second, time.Second)
	openaiP := NewPlainProvider(PlainConfig{BaseURL: "http://openai.example"}, client)
	reg := NewRegistry(map[string]Provider{"openai": openaiP})

	p, err := reg.For(mmodel.Model{Provider: "openai"})
	require.NoError(t, err)
	require.Same(t, openaiP, p)

	_, err = reg.For(mmodel.Model{Provider: "unknown"})
	require.Error(t, err)
}
