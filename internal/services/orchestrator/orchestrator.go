// Package orchestrator implements the Stream Orchestrator (C8): the
// per-request state machine from spec.md §4.8 tying the Credit Ledger,
// Prompt Builder, Moderation Gate, Upstream LLM Adapter, and Persistence
// Queue together and emitting the gateway's SSE dialect.
package orchestrator

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/creatorplatform/gateway-core/internal/adapters/llm"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/agent"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/conversation"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/ledger"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/persona"
	"github.com/creatorplatform/gateway-core/internal/services/fee"
	"github.com/creatorplatform/gateway-core/internal/services/moderation"
	"github.com/creatorplatform/gateway-core/internal/services/prompt"
	"github.com/creatorplatform/gateway-core/internal/services/queue"
	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/constant"
	"github.com/creatorplatform/gateway-core/pkg/mlog"
	"github.com/creatorplatform/gateway-core/pkg/mmodel"
	mhttp "github.com/creatorplatform/gateway-core/pkg/net/http"
)

// State is one node of the spec.md §4.8 state machine.
type State string

const (
	StateInit         State = "INIT"
	StateModPre       State = "MOD_PRE"
	StateEstimate     State = "ESTIMATE"
	StateFreeze       State = "FREEZE"
	StateAssemble     State = "ASSEMBLE"
	StateUpstreamOpen State = "UPSTREAM_OPEN"
	StateStream       State = "STREAM"
	StateModPost      State = "MOD_POST"
	StateSettle       State = "SETTLE"
	StatePersist      State = "PERSIST"
	StateDone         State = "DONE"
	StateRefund       State = "REFUND"
	StateErrorEmit    State = "ERROR_EMIT"
)

// ChatRequest is handle_chat's input from spec.md §4.8.
type ChatRequest struct {
	UserID         uuid.UUID
	ConversationID *uuid.UUID
	AgentID        *uuid.UUID
	ProjectID      *uuid.UUID
	Text           string
	ModelHint      string
}

// Config carries the tunables named in spec.md §6.
type Config struct {
	Fee                fee.Coefficients
	ModerationPenaltyPct int
	MaxOutputTokenCap   int
	FallbackCompletionK float64
}

// Orchestrator wires C1, C5, C6, C7, C3 together per spec.md §4.8.
type Orchestrator struct {
	ledger   ledger.Repository
	gate     *moderation.Gate
	builder  *prompt.Builder
	registry *llm.Registry
	agents   agent.Repository
	models   agent.ModelRepository
	personas persona.Repository
	conv     conversation.Repository
	queue    *queue.Queue
	logger   mlog.Logger
	cfg      Config
}

// New builds an Orchestrator.
func New(
	ledgerRepo ledger.Repository,
	gate *moderation.Gate,
	builder *prompt.Builder,
	registry *llm.Registry,
	agents agent.Repository,
	models agent.ModelRepository,
	personas persona.Repository,
	conv conversation.Repository,
	q *queue.Queue,
	logger mlog.Logger,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		ledger: ledgerRepo, gate: gate, builder: builder, registry: registry,
		agents: agents, models: models, personas: personas, conv: conv,
		queue: q, logger: logger, cfg: cfg,
	}
}

// turn holds the state a single handle_chat call accumulates as it walks
// the state machine. Exported only within the package: callers interact
// through HandleChat.
type turn struct {
	req   ChatRequest
	state State
	err   error

	agent   mmodel.Agent
	model   mmodel.Model
	persona *mmodel.Persona
	history []mmodel.ConversationMessage

	conversationID uuid.UUID
	requestID      string
	estimate       decimal.Decimal

	plan   mmodel.PromptPlan
	chunks <-chan mmodel.StreamChunk
	cancel context.CancelFunc

	assistantText    []byte
	promptTokens     int64
	completionTokens int64
	moderationHit    bool
}

// HandleChat runs the full state machine for one user turn, writing SSE
// frames to sse as it goes. It returns nil once a DONE or ERROR_EMIT frame
// has been written; the returned error, if any, is for server-side logging
// only - the client has already received a typed error frame.
func (o *Orchestrator) HandleChat(ctx context.Context, req ChatRequest, sse *mhttp.SSEWriter) error {
	t := &turn{req: req, state: StateInit}

	for {
		switch t.state {
		case StateInit:
			o.stepInit(ctx, t)
		case StateModPre:
			o.stepModPre(t)
		case StateEstimate:
			o.stepEstimate(ctx, t)
		case StateFreeze:
			o.stepFreeze(ctx, t)
		case StateAssemble:
			o.stepAssemble(t)
		case StateUpstreamOpen:
			o.stepUpstreamOpen(ctx, t, sse)
		case StateStream:
			return o.stepStream(ctx, t, sse)
		case StateRefund:
			o.stepRefund(ctx, t)
			t.state = StateErrorEmit
		case StateErrorEmit:
			return o.emitError(sse, t)
		case StateDone:
			return nil
		default:
			t.err = pkg.InternalError{Code: constant.ErrInternal, Message: "unreachable orchestrator state"}
			t.state = StateErrorEmit
		}
	}
}

func (o *Orchestrator) stepInit(ctx context.Context, t *turn) {
	if t.req.Text == "" {
		t.err = pkg.ValidationError{Code: constant.ErrValidation, Message: "message text must not be empty"}
		t.state = StateErrorEmit

		return
	}

	var a *mmodel.Agent

	var err error

	if t.req.AgentID != nil {
		a, err = o.agents.Get(ctx, *t.req.AgentID)
	} else {
		var list []mmodel.Agent

		list, err = o.agents.ListAvailable(ctx, t.req.UserID)
		if err == nil && len(list) > 0 {
			a = &list[0]
		} else if err == nil {
			err = pkg.EntityNotFoundError{EntityType: "Agent", Code: constant.ErrAgentNotFound}
		}
	}

	if err != nil {
		t.err = err
		t.state = StateErrorEmit

		return
	}

	t.agent = *a

	modelRef := t.agent.ModelRef
	if t.req.ModelHint != "" {
		modelRef = t.req.ModelHint
	}

	model, err := o.models.Get(ctx, modelRef)
	if err != nil {
		t.err = err
		t.state = StateErrorEmit

		return
	}

	t.model = *model

	if t.req.ProjectID != nil {
		p, err := o.personas.Get(ctx, *t.req.ProjectID)
		if err != nil {
			t.err = err
			t.state = StateErrorEmit

			return
		}

		if p.OwnerID != t.req.UserID {
			t.err = pkg.ForbiddenError{Code: constant.ErrProjectNotFound, Message: "project not owned by caller"}
			t.state = StateErrorEmit

			return
		}

		t.persona = p
	}

	if t.req.ConversationID != nil {
		detail, err := o.conv.Get(ctx, *t.req.ConversationID)
		if err != nil {
			t.err = err
			t.state = StateErrorEmit

			return
		}

		if detail.Conversation.OwnerID != t.req.UserID {
			t.err = pkg.ForbiddenError{Code: constant.ErrConversationNotFound, Message: "conversation not owned by caller"}
			t.state = StateErrorEmit

			return
		}

		t.history = detail.Messages
		t.conversationID = detail.Conversation.ID
	} else {
		t.conversationID = uuid.New()
	}

	t.state = StateModPre
}

func (o *Orchestrator) stepModPre(t *turn) {
	result := o.gate.CheckPre(t.req.Text)
	if result.Blocked {
		t.err = pkg.BusinessError{Code: constant.ErrContentViolationPre, Message: "blocked: " + result.Reason}
		t.state = StateErrorEmit

		return
	}

	t.state = StateEstimate
}

func (o *Orchestrator) stepEstimate(_ context.Context, t *turn) {
	charCount := int64(len(t.req.Text) + len(t.agent.SystemPrompt))
	if t.persona != nil {
		charCount += int64(len(t.persona.DisplayName) + len(t.persona.Introduction))
	}

	estIn := fee.EstimateInputTokens(charCount, t.model.KIn)
	estOut := fee.EstimateOutputTokens(t.agent.MaxTokens, o.cfg.MaxOutputTokenCap)

	t.estimate = fee.Compute(o.cfg.Fee, estIn, estOut, decimal.NewFromFloat(t.model.ModelMultiplier))
	t.requestID = uuid.New().String()
	t.state = StateFreeze
}

func (o *Orchestrator) stepFreeze(ctx context.Context, t *turn) {
	conversationID := t.conversationID

	result, err := o.ledger.Freeze(ctx, t.req.UserID, t.estimate, t.requestID, t.model.Ref, &conversationID)
	if err != nil {
		t.err = err
		t.state = StateErrorEmit

		return
	}

	if result.InsufficientBalance {
		t.err = pkg.BusinessError{Code: constant.ErrInsufficientBalance, Message: "insufficient balance"}
		t.state = StateErrorEmit

		return
	}

	// result.AlreadyFrozen resumes idempotently - the same request_id was
	// frozen by an earlier, presumably-crashed attempt; proceed as normal,
	// SETTLE/REFUND will themselves observe the idempotent outcome.
	t.state = StateAssemble
}

func (o *Orchestrator) stepAssemble(t *turn) {
	t.plan = o.builder.Build(t.agent, t.persona, t.history, t.req.Text, len(t.history) == 0, t.model.SupportsCacheHint)
	t.state = StateUpstreamOpen
}

func (o *Orchestrator) stepUpstreamOpen(ctx context.Context, t *turn, sse *mhttp.SSEWriter) {
	provider, err := o.registry.For(t.model)
	if err != nil {
		t.err = err
		t.state = StateRefund

		return
	}

	params := mmodel.SamplingParams{
		Temperature:      t.agent.Temperature,
		MaxTokens:        t.agent.MaxTokens,
		TopP:              t.agent.TopP,
		FrequencyPenalty: t.agent.FrequencyPenalty,
		PresencePenalty:  t.agent.PresencePenalty,
	}

	// Owns an independent cancel so a client disconnect mid-STREAM can abort
	// the upstream body without depending on the caller's ctx semantics
	// (spec.md §5: cancellation must reach the upstream connection).
	streamCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	chunks, err := provider.Stream(streamCtx, t.model, t.plan.SystemPrompt, t.plan.Messages, params)
	if err != nil {
		cancel()

		t.err = pkg.TransientError{Code: constant.ErrUpstreamConnect, Message: "upstream connect failed", Err: err}
		t.state = StateRefund

		return
	}

	if err := sse.Frame(mhttp.ConversationIDFrame{ConversationID: t.conversationID.String()}); err != nil {
		cancel()

		t.err = err
		t.state = StateRefund

		return
	}

	t.chunks = chunks
	t.state = StateStream
}

func (o *Orchestrator) stepStream(ctx context.Context, t *turn, sse *mhttp.SSEWriter) error {
	defer t.cancel()

	for chunk := range t.chunks {
		if chunk.Err != nil {
			t.cancel()
			o.stepRefund(ctx, t)
			t.err = chunk.Err
			t.state = StateErrorEmit

			return o.emitError(sse, t)
		}

		if chunk.Delta != "" {
			t.assistantText = append(t.assistantText, chunk.Delta...)

			if err := sse.Frame(mhttp.ContentFrame{Content: chunk.Delta}); err != nil {
				// Client disconnected: per spec.md §5, abort the upstream
				// body and fall through to MOD_POST with the partial text
				// rather than erroring - the turn is still settled and
				// persisted for what was delivered.
				t.cancel()

				break
			}
		}

		if chunk.Done {
			t.promptTokens = chunk.PromptTokens
			t.completionTokens = chunk.CompletionTokens

			break
		}
	}

	if t.completionTokens == 0 {
		t.completionTokens = fee.EstimateCompletionTokens(int64(len(t.assistantText)), o.cfg.FallbackCompletionK)
	}

	return o.stepModPostSettlePersistDone(ctx, t, sse)
}

func (o *Orchestrator) stepModPostSettlePersistDone(ctx context.Context, t *turn, sse *mhttp.SSEWriter) error {
	result := o.gate.CheckPost(string(t.assistantText))
	t.moderationHit = result.Blocked

	var actual decimal.Decimal
	if t.moderationHit {
		// spec.md §4.6/§4.8: a post-check violation settles at
		// MODERATION_PENALTY_PCT of the estimate, not at actual consumption.
		actual = fee.Penalty(t.estimate, o.cfg.ModerationPenaltyPct)
	} else {
		promptTokens := t.promptTokens
		if promptTokens == 0 {
			promptTokens = t.plan.EstInputTokens
		}

		actual = fee.Compute(o.cfg.Fee, promptTokens, t.completionTokens, decimal.NewFromFloat(t.model.ModelMultiplier))
	}

	if _, err := o.ledger.Settle(ctx, t.requestID, actual); err != nil {
		o.logger.Errorf("orchestrator: settle failed for request %s: %v", t.requestID, err)
	}

	job := mmodel.PersistJob{
		ConversationID:  &t.conversationID,
		UserID:          t.req.UserID,
		ProjectID:       t.req.ProjectID,
		AgentID:         &t.agent.ID,
		Title:           titleFromText(t.req.Text),
		UserText:        t.req.Text,
		UserTokens:      t.promptTokens,
		AssistantText:   string(t.assistantText),
		AssistantTokens: t.completionTokens,
		ModelRef:        t.model.Ref,
	}

	if !o.queue.Enqueue(ctx, job) {
		o.logger.Warnf("orchestrator: persistence job dropped for request %s", t.requestID)
	}

	if err := sse.Frame(mhttp.DoneFrame{Done: true}); err != nil {
		o.logger.Warnf("orchestrator: failed writing done frame for request %s: %v", t.requestID, err)
	}

	return nil
}

func (o *Orchestrator) stepRefund(ctx context.Context, t *turn) {
	if _, err := o.ledger.Refund(ctx, t.requestID); err != nil {
		o.logger.Errorf("orchestrator: refund failed for request %s: %v", t.requestID, err)
	}
}

func (o *Orchestrator) emitError(sse *mhttp.SSEWriter, t *turn) error {
	code := errorCode(t.err)

	if err := sse.Frame(mhttp.ErrorFrame{Error: code}); err != nil {
		return err
	}

	return t.err
}

func errorCode(err error) string {
	var be pkg.BusinessError
	if errors.As(err, &be) {
		return be.Code
	}

	var ve pkg.ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}

	var te pkg.TransientError
	if errors.As(err, &te) {
		return te.Code
	}

	var nf pkg.EntityNotFoundError
	if errors.As(err, &nf) {
		return nf.Code
	}

	var fe pkg.ForbiddenError
	if errors.As(err, &fe) {
		return fe.Code
	}

	return constant.ErrInternal
}

func titleFromText(text string) string {
	const maxTitleLen = 60
	if len(text) <= maxTitleLen {
		return text
	}

	return text[:maxTitleLen]
}
