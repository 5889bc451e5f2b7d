package orchestrator

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/creatorplatform/gateway-core/internal/adapters/llm"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/agent"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/conversation"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/ledger"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/persona"
	"github.com/creatorplatform/gateway-core/internal/services/fee"
	"github.com/creatorplatform/gateway-core/internal/services/moderation"
	"github.com/creatorplatform/gateway-core/internal/services/prompt"
	"github.com/creatorplatform/gateway-core/internal/services/queue"
	"github.com/creatorplatform/gateway-core/pkg/mlog"
	"github.com/creatorplatform/gateway-core/pkg/mmodel"
	"github.com/creatorplatform/gateway-core/pkg/mrabbitmq"
	mhttp "github.com/creatorplatform/gateway-core/pkg/net/http"
)

// --- fakes -------------------------------------------------------------

type fakeLedger struct {
	freezeResult mmodel.FreezeResult
	freezeErr    error
	settled      []decimal.Decimal
	refunded     int
}

func (f *fakeLedger) Freeze(_ context.Context, _ uuid.UUID, _ decimal.Decimal, _, _ string, _ *uuid.UUID) (mmodel.FreezeResult, error) {
	return f.freezeResult, f.freezeErr
}

func (f *fakeLedger) Settle(_ context.Context, _ string, actualAmount decimal.Decimal) (mmodel.SettleResult, error) {
	f.settled = append(f.settled, actualAmount)
	return mmodel.SettleResult{}, nil
}

func (f *fakeLedger) Refund(_ context.Context, _ string) (mmodel.RefundResult, error) {
	f.refunded++
	return mmodel.RefundResult{Refunded: decimal.Zero}, nil
}

func (f *fakeLedger) GetBalance(_ context.Context, _ uuid.UUID) (mmodel.BalanceSnapshot, error) {
	return mmodel.BalanceSnapshot{}, nil
}

func (f *fakeLedger) ListTransactions(_ context.Context, _ uuid.UUID, _ mmodel.Pagination) ([]mmodel.Transaction, error) {
	return nil, nil
}

var _ ledger.Repository = (*fakeLedger)(nil)

type fakeAgents struct{ a mmodel.Agent }

func (f *fakeAgents) Get(_ context.Context, _ uuid.UUID) (*mmodel.Agent, error) { return &f.a, nil }
func (f *fakeAgents) ListAvailable(_ context.Context, _ uuid.UUID) ([]mmodel.Agent, error) {
	return []mmodel.Agent{f.a}, nil
}

var _ agent.Repository = (*fakeAgents)(nil)

type fakeModels struct{ m mmodel.Model }

func (f *fakeModels) Get(_ context.Context, _ string) (*mmodel.Model, error) { return &f.m, nil }

var _ agent.ModelRepository = (*fakeModels)(nil)

type fakePersonas struct{}

func (fakePersonas) Create(_ context.Context, p *mmodel.Persona) (*mmodel.Persona, error) { return p, nil }
func (fakePersonas) Get(_ context.Context, _ uuid.UUID) (*mmodel.Persona, error)          { return nil, errors.New("not found") }
func (fakePersonas) ListByOwner(_ context.Context, _ uuid.UUID) ([]mmodel.Persona, error) { return nil, nil }
func (fakePersonas) Update(_ context.Context, p *mmodel.Persona) (*mmodel.Persona, error) { return p, nil }
func (fakePersonas) Delete(_ context.Context, _ uuid.UUID) error                          { return nil }

var _ persona.Repository = (fakePersonas{})

type fakeConversations struct {
	appended []mmodel.PersistJob
}

func (f *fakeConversations) AppendTurn(_ context.Context, conversationID *uuid.UUID, owner mmodel.Conversation, userMsg, assistantMsg mmodel.ConversationMessage) (uuid.UUID, error) {
	id := uuid.New()
	if conversationID != nil {
		id = *conversationID
	}

	f.appended = append(f.appended, mmodel.PersistJob{
		ConversationID: &id, UserText: userMsg.Content, AssistantText: assistantMsg.Content,
	})

	return id, nil
}

func (f *fakeConversations) Get(_ context.Context, id uuid.UUID) (mmodel.ConversationWithMessages, error) {
	return mmodel.ConversationWithMessages{Conversation: mmodel.Conversation{ID: id}}, nil
}

func (f *fakeConversations) List(_ context.Context, _ uuid.UUID, _ mmodel.ConversationFilter) ([]mmodel.Conversation, error) {
	return nil, nil
}

func (f *fakeConversations) UpdateTitle(_ context.Context, _ uuid.UUID, _ string) error { return nil }
func (f *fakeConversations) Archive(_ context.Context, _ uuid.UUID) error               { return nil }
func (f *fakeConversations) Delete(_ context.Context, _ uuid.UUID) error                { return nil }

var _ conversation.Repository = (*fakeConversations)(nil)

type fakeProvider struct {
	deltas []string
	err    error
}

func (f *fakeProvider) Stream(ctx context.Context, _ mmodel.Model, _ mmodel.PromptMessage, _ []mmodel.PromptMessage, _ mmodel.SamplingParams) (<-chan mmodel.StreamChunk, error) {
	if f.err != nil {
		return nil, f.err
	}

	out := make(chan mmodel.StreamChunk, len(f.deltas)+1)
	for _, d := range f.deltas {
		out <- mmodel.StreamChunk{Delta: d}
	}

	out <- mmodel.StreamChunk{Done: true, PromptTokens: 10, CompletionTokens: 5}
	close(out)

	return out, nil
}

var _ llm.Provider = (*fakeProvider)(nil)

// --- harness -------------------------------------------------------------

func newHarness(t *testing.T, ledgerRepo ledger.Repository, provider llm.Provider, agentModel mmodel.Model) (*Orchestrator, *fakeConversations) {
	t.Helper()

	agents := &fakeAgents{a: mmodel.Agent{ID: uuid.New(), Name: "default", SystemPrompt: "be helpful", MaxTokens: 512, ModelRef: agentModel.Ref}}
	models := &fakeModels{m: agentModel}
	conv := &fakeConversations{}

	q := queue.New(conv, &mrabbitmq.Connection{URL: "amqp://127.0.0.1:1", Logger: mlog.NopLogger{}}, mlog.NopLogger{}, 1, 100)
	registry := llm.NewRegistry(map[string]llm.Provider{agentModel.Provider: provider})
	gate := moderation.NewGate(moderation.NewPolicy([]string{"forbidden"}, nil))
	builder := &prompt.Builder{SysSoftMax: prompt.DefaultSysSoftMax}

	cfg := Config{
		Fee: fee.Coefficients{
			Base:  decimal.Zero,
			WIn:   decimal.NewFromFloat(0.01),
			WOut:  decimal.NewFromFloat(0.02),
			Scale: decimal.NewFromFloat(1),
		},
		ModerationPenaltyPct: 10,
		MaxOutputTokenCap:    4096,
		FallbackCompletionK:  0.3,
	}

	return New(ledgerRepo, gate, builder, registry, agents, models, fakePersonas{}, conv, q, mlog.NopLogger{}, cfg), conv
}

func testSSEWriter(w *bufio.Writer) *mhttp.SSEWriter {
	return mhttp.NewSSEWriterForWriter(w)
}

func TestHandleChatHappyPath(t *testing.T) {
	model := mmodel.Model{Ref: "gpt", Provider: "openai", ModelMultiplier: 1, KIn: 0.3}
	ledgerRepo := &fakeLedger{freezeResult: mmodel.FreezeResult{Success: true}}
	provider := &fakeProvider{deltas: []string{"Hel", "lo"}}

	o, _ := newHarness(t, ledgerRepo, provider, model)

	var buf bytes.Buffer
	writer := testSSEWriter(bufio.NewWriter(&buf))

	err := o.HandleChat(context.Background(), ChatRequest{UserID: uuid.New(), Text: "hi"}, writer)
	require.NoError(t, err)
	require.Len(t, ledgerRepo.settled, 1)
	require.Equal(t, 0, ledgerRepo.refunded)
	require.Contains(t, buf.String(), `"content":"Hel"`)
	require.Contains(t, buf.String(), `"done":true`)
}

func TestHandleChatInsufficientBalance(t *testing.T) {
	model := mmodel.Model{Ref: "gpt", Provider: "openai", ModelMultiplier: 1, KIn: 0.3}
	ledgerRepo := &fakeLedger{freezeResult: mmodel.FreezeResult{InsufficientBalance: true}}
	provider := &fakeProvider{deltas: []string{"unused"}}

	o, _ := newHarness(t, ledgerRepo, provider, model)

	writer := testSSEWriter(bufio.NewWriter(&bytes.Buffer{}))

	err := o.HandleChat(context.Background(), ChatRequest{UserID: uuid.New(), Text: "hi"}, writer)
	require.Error(t, err)
	require.Empty(t, ledgerRepo.settled)
}

func TestHandleChatUpstreamFailureRefunds(t *testing.T) {
	model := mmodel.Model{Ref: "gpt", Provider: "openai", ModelMultiplier: 1, KIn: 0.3}
	ledgerRepo := &fakeLedger{freezeResult: mmodel.FreezeResult{Success: true}}
	provider := &fakeProvider{err: errors.New("connect refused")}

	o, _ := newHarness(t, ledgerRepo, provider, model)

	writer := testSSEWriter(bufio.NewWriter(&bytes.Buffer{}))

	err := o.HandleChat(context.Background(), ChatRequest{UserID: uuid.New(), Text: "hi"}, writer)
	require.Error(t, err)
	require.Equal(t, 1, ledgerRepo.refunded)
	require.Empty(t, ledgerRepo.settled)
}

func TestHandleChatPreCheckBlockedNoFreeze(t *testing.T) {
	model := mmodel.Model{Ref: "gpt", Provider: "openai", ModelMultiplier: 1, KIn: 0.3}
	ledgerRepo := &fakeLedger{freezeResult: mmodel.FreezeResult{Success: true}}
	provider := &fakeProvider{deltas: []string{"unused"}}

	o, _ := newHarness(t, ledgerRepo, provider, model)

	writer := testSSEWriter(bufio.NewWriter(&bytes.Buffer{}))

	err := o.HandleChat(context.Background(), ChatRequest{UserID: uuid.New(), Text: "this is forbidden content"}, writer)
	require.Error(t, err)
	require.Empty(t, ledgerRepo.settled)
	require.Equal(t, 0, ledgerRepo.refunded)
}

func TestHandleChatPostCheckSettlesPenalty(t *testing.T) {
	model := mmodel.Model{Ref: "gpt", Provider: "openai", ModelMultiplier: 1, KIn: 0.3}
	ledgerRepo := &fakeLedger{freezeResult: mmodel.FreezeResult{Success: true}}
	provider := &fakeProvider{deltas: []string{"this reply contains forbidden text"}}

	o, _ := newHarness(t, ledgerRepo, provider, model)

	writer := testSSEWriter(bufio.NewWriter(&bytes.Buffer{}))

	err := o.HandleChat(context.Background(), ChatRequest{UserID: uuid.New(), Text: "hi"}, writer)
	require.NoError(t, err)
	require.Len(t, ledgerRepo.settled, 1)
}

func TestHandleChatAlreadyFrozenResumesIdempotently(t *testing.T) {
	model := mmodel.Model{Ref: "gpt", Provider: "openai", ModelMultiplier: 1, KIn: 0.3}
	ledgerRepo := &fakeLedger{freezeResult: mmodel.FreezeResult{AlreadyFrozen: true}}
	provider := &fakeProvider{deltas: []string{"hi"}}

	o, _ := newHarness(t, ledgerRepo, provider, model)

	writer := testSSEWriter(bufio.NewWriter(&bytes.Buffer{}))

	err := o.HandleChat(context.Background(), ChatRequest{UserID: uuid.New(), Text: "hi"}, writer)
	require.NoError(t, err)
	require.Len(t, ledgerRepo.settled, 1)
}
