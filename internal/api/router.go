package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/finance-chat/internal/agent"
	"github.com/Rrens/finance-chat/internal/api/handler"
	customMiddleware "github.com/Rrens/finance-chat/internal/api/middleware"
	"github.com/Rrens/finance-chat/internal/classifier"
	"github.com/Rrens/finance-chat/internal/config"
	"github.com/Rrens/finance-chat/internal/kite"
	"github.com/Rrens/finance-chat/internal/llm"
	"github.com/Rrens/finance-chat/internal/llm/anthropic"
	"github.com/Rrens/finance-chat/internal/llm/deepseek"
	"github.com/Rrens/finance-chat/internal/llm/gemini"
	"github.com/Rrens/finance-chat/internal/llm/ollama"
	"github.com/Rrens/finance-chat/internal/llm/openai"
	"github.com/Rrens/finance-chat/internal/repository/postgres"
	"github.com/Rrens/finance-chat/internal/repository/redis"
	"github.com/Rrens/finance-chat/internal/security"
	"github.com/Rrens/finance-chat/internal/service"
)

// NewLLMRouter registers every provider that has credentials
func NewLLMRouter(ctx context.Context, cfg config.LLMConfig) (*llm.Router, error) {
	llmRouter := llm.NewRouter(cfg.DefaultProvider)

	log.Info().Msgf("Initializing LLM providers. Default: %s", cfg.DefaultProvider)

	if cfg.OpenAI.APIKey != "" {
		p, err := openai.NewProvider(ctx, cfg.OpenAI)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai provider: %w", err)
		}
		llmRouter.RegisterProvider(p)
	}
	if cfg.DeepSeek.APIKey != "" {
		p, err := deepseek.NewProvider(ctx, cfg.DeepSeek)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepseek provider: %w", err)
		}
		llmRouter.RegisterProvider(p)
	}
	if cfg.Anthropic.APIKey != "" {
		llmRouter.RegisterProvider(anthropic.NewProvider(cfg.Anthropic))
	}
	if cfg.Gemini.APIKey != "" {
		llmRouter.RegisterProvider(gemini.NewProvider(cfg.Gemini))
	}
	if cfg.Ollama.Host != "" {
		log.Info().Str("host", cfg.Ollama.Host).Msg("Registering Ollama provider")
		llmRouter.RegisterProvider(ollama.NewProvider(cfg.Ollama))
	}

	if len(llmRouter.ListProviders()) == 0 {
		log.Warn().Msg("no LLM provider configured; chat answers will fail")
	}
	return llmRouter, nil
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, db *postgres.DB, redisClient *redis.Client, llmRouter *llm.Router) (http.Handler, error) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{cfg.Frontend.BaseURL}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		// browsers reject credentials on a wildcard origin
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           300,
	}))

	// Security components
	jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	encryptor, err := security.NewEncryptorFromSecret(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create token encryptor: %w", err)
	}

	// Repositories
	sessionRepo := postgres.NewSessionRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	metricsRepo := postgres.NewMetricsRepository(db)
	connectionRepo := postgres.NewConnectionRepository(db)
	balanceRepo := postgres.NewBalanceRepository(db)
	stateRepo := postgres.NewOAuthStateRepository(db)

	rateLimiter := redis.NewRateLimiter(
		redisClient,
		cfg.Security.RateLimit.RequestsPerMinute,
		cfg.Security.RateLimit.Burst,
	)
	classificationCache := redis.NewClassificationCache(redisClient)

	provider, err := llmRouter.GetProvider("")
	if err != nil {
		return nil, fmt.Errorf("failed to select default llm provider: %w", err)
	}

	// Services
	brokerageService := service.NewBrokerageService(
		connectionRepo,
		balanceRepo,
		stateRepo,
		kite.NewClient(cfg.Broker),
		encryptor,
		cfg.Frontend.BaseURL,
		cfg.Chat.BalanceCacheTTL,
		cfg.Chat.OAuthStateTTL,
	)
	financeAgent := agent.NewFinance(provider, llm.ResolveModel(provider, cfg.LLM.FinanceModel), cfg.LLM.Timeouts.Finance, brokerageService)
	chatService := service.NewChatService(
		sessionRepo,
		messageRepo,
		metricsRepo,
		classifier.New(provider, llm.ResolveModel(provider, cfg.LLM.ClassifierModel), cfg.LLM.Timeouts.Classification, classificationCache),
		financeAgent,
		agent.NewGeneral(provider, llm.ResolveModel(provider, cfg.LLM.GeneralModel), cfg.LLM.Timeouts.General),
		cfg.Chat.MaxContentLength,
	)

	// Handlers
	chatHandler := handler.NewChatHandler(chatService, cfg.Chat.StreamKeepAlive)
	zerodhaHandler := handler.NewZerodhaHandler(brokerageService)
	agentHandler := handler.NewAgentHandler(financeAgent)

	authMiddleware := customMiddleware.NewAuthMiddleware(jwtManager)
	rateLimitMiddleware := customMiddleware.NewRateLimitMiddleware(rateLimiter)

	r.Use(authMiddleware.OptionalAuth)

	// SSE stays outside the request timeout
	r.Get("/chat/stream/{sessionID}/{messageID}", chatHandler.Stream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(map[string]handler.Pinger{
			"database": db,
			"redis":    redisClient,
		}))
		r.Get("/llm/providers", handler.ListLLMProviders(llmRouter))

		r.Route("/chat", func(r chi.Router) {
			r.With(rateLimitMiddleware.Limit).Post("/send", chatHandler.Send)
			r.Get("/sessions/{sessionID}/messages", chatHandler.Messages)
		})

		r.Route("/zerodha", func(r chi.Router) {
			r.Post("/oauth/initiate", zerodhaHandler.InitiateOAuth)
			r.Get("/oauth/callback", zerodhaHandler.OAuthCallback)
			r.Post("/connection/status", zerodhaHandler.Status)
			r.Post("/connection/disconnect", zerodhaHandler.Disconnect)
			r.Post("/balance/refresh", zerodhaHandler.RefreshBalance)

			for _, resource := range []string{"profile", "holdings", "positions", "margins", "orders"} {
				r.Post("/"+resource, zerodhaHandler.Passthrough(resource))
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/admin/cache/flush", handler.FlushCache(classificationCache))
			r.Post("/agents/finance/analyze", agentHandler.AnalyzeFinance)
		})
	})

	return r, nil
}
