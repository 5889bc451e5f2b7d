package bootstrap

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/creatorplatform/gateway-core/internal/adapters/http/in"
	"github.com/creatorplatform/gateway-core/internal/adapters/identity"
	"github.com/creatorplatform/gateway-core/internal/adapters/llm"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/account"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/agent"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/conversation"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/ledger"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/persona"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/tokenstore"
	"github.com/creatorplatform/gateway-core/internal/adapters/redis"
	"github.com/creatorplatform/gateway-core/internal/services/fee"
	"github.com/creatorplatform/gateway-core/internal/services/moderation"
	"github.com/creatorplatform/gateway-core/internal/services/orchestrator"
	"github.com/creatorplatform/gateway-core/internal/services/prompt"
	"github.com/creatorplatform/gateway-core/internal/services/queue"
	"github.com/creatorplatform/gateway-core/internal/services/sequence"
	"github.com/creatorplatform/gateway-core/internal/services/token"
	"github.com/creatorplatform/gateway-core/pkg/mlog"
	"github.com/creatorplatform/gateway-core/pkg/mpostgres"
	"github.com/creatorplatform/gateway-core/pkg/mrabbitmq"
	"github.com/creatorplatform/gateway-core/pkg/mredis"
)

// Service bundles every constructed component the server needs, plus the
// connections it must close on shutdown.
type Service struct {
	Logger mlog.Logger
	Router *in.Handlers

	postgres *mpostgres.Connection
	redis    *mredis.Connection
	rabbitmq *mrabbitmq.Connection
}

// NewService constructs the full dependency graph described by
// SPEC_FULL.md: Postgres/Redis/RabbitMQ connections, every C1-C9 component,
// the LLM provider registry, and the HTTP handler set - mirroring the
// teacher's service.go "wire everything, return one struct" shape.
func NewService(cfg Config) (*Service, error) {
	logger := mlog.NewZapLoggerOrExit(cfg.LogLevel)

	pg := &mpostgres.Connection{
		PrimaryDSN:    cfg.PostgresPrimaryDSN,
		ReplicaDSN:    cfg.PostgresReplicaDSN,
		MigrationsDir: cfg.MigrationsDir,
		Logger:        logger,
	}

	rd := &mredis.Connection{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Logger:   logger,
	}

	rmq := &mrabbitmq.Connection{
		URL:    cfg.RabbitMQURL,
		Logger: logger,
	}

	accountRepo := account.New(pg)
	ledgerRepo := ledger.New(pg, logger, cfg.LedgerRetryMax, cfg.LedgerRetryBaseMS)
	conversationRepo := conversation.New(pg, logger, &sequence.Generator{})
	tokenRepo := tokenstore.New(pg)
	agentRepo := agent.New(pg)
	modelRepo := agent.NewModelRepository(pg)
	personaRepo := persona.New(pg)

	revocationCache := redis.NewRevocationCache(rd)

	identityProvider := identity.NewHTTPProvider(identity.Config{
		BaseURL:      cfg.IdentityBaseURL,
		ClientID:     cfg.IdentityClientID,
		ClientSecret: cfg.IdentityClientSecret,
		Timeout:      cfg.IdentityTimeout,
	})

	tokenService := token.New(accountRepo, tokenRepo, revocationCache, identityProvider, token.Config{
		Secret:       []byte(cfg.TokenSecret),
		AccessTTL:    cfg.AccessTokenTTL,
		RefreshTTL:   cfg.RefreshTokenTTL,
		GraceSeconds: cfg.TokenGraceSeconds,
	})

	q := queue.New(conversationRepo, rmq, logger, cfg.QueueWorkers, cfg.QueueCapacity)

	gate := moderation.NewGate(moderation.NewPolicy(splitCSV(cfg.ModerationKeywordsCSV), nil))

	builder := &prompt.Builder{SysSoftMax: cfg.SysSoftMax}

	streamClient := llm.NewStreamClient(cfg.UpstreamConnectTimeout, cfg.UpstreamReadTimeout, cfg.UpstreamTotalTimeout)

	providers := map[string]llm.Provider{
		"openai": llm.NewPlainProvider(llm.PlainConfig{
			BaseURL:        cfg.OpenAIBaseURL,
			APIKey:         cfg.OpenAIAPIKey,
			AuthHeaderName: "Authorization",
			AuthPrefix:     "Bearer ",
		}, streamClient),
		"anthropic": llm.NewAnthropicProvider(llm.AnthropicConfig{
			BaseURL:    cfg.AnthropicBaseURL,
			APIKey:     cfg.AnthropicAPIKey,
			APIVersion: cfg.AnthropicAPIVersion,
		}, streamClient),
		"generic": llm.NewGenericProvider(llm.PlainConfig{
			BaseURL:        cfg.GenericBaseURL,
			APIKey:         cfg.GenericAPIKey,
			AuthHeaderName: "Authorization",
			AuthPrefix:     "Bearer ",
		}, streamClient),
	}

	registry := llm.NewRegistry(providers)

	feeCoeff := fee.Coefficients{
		Base:  mustDecimal(cfg.FeeBase),
		WIn:   mustDecimal(cfg.FeeWIn),
		WOut:  mustDecimal(cfg.FeeWOut),
		Scale: mustDecimal(cfg.FeeScale),
	}

	orch := orchestrator.New(ledgerRepo, gate, builder, registry, agentRepo, modelRepo, personaRepo, conversationRepo, q, logger, orchestrator.Config{
		Fee:                  feeCoeff,
		ModerationPenaltyPct: cfg.ModerationPenaltyPct,
		MaxOutputTokenCap:    cfg.MaxOutputTokenCap,
		FallbackCompletionK:  cfg.FallbackCompletionK,
	})

	handlers := &in.Handlers{
		Auth:          &in.AuthHandler{Tokens: tokenService},
		Chat:          &in.ChatHandler{Orchestrator: orch},
		Conversations: &in.ConversationHandler{Conversations: conversationRepo},
		Coin:          &in.CoinHandler{Ledger: ledgerRepo},
		Tokens:        tokenService,
	}

	return &Service{
		Logger:   logger,
		Router:   handlers,
		postgres: pg,
		redis:    rd,
		rabbitmq: rmq,
	}, nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

// mustDecimal parses a fee coefficient from its env-var string form. A
// malformed FEE_* value is a startup-time configuration mistake, not a
// recoverable runtime condition, so it panics rather than silently
// defaulting to zero.
func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("bootstrap: invalid fee coefficient " + s)
	}

	return d
}
