package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"perfbot/internal/config"
	"perfbot/internal/events"
	"perfbot/internal/handler"
	"perfbot/internal/logger"
	"perfbot/internal/middleware"
	"perfbot/internal/repository"
	"perfbot/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the order status consumer",
	RunE:  runServe,
}

// stores bundles the chat and order persistence chosen by STORE_DRIVER
type stores struct {
	chats  service.ChatStore
	orders service.OrderStore
	pinger handler.Pinger
	close  func() error
}

func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	if cfg.Server.StoreDriver == "memory" {
		log.Warn("Using in-memory store, data will not survive a restart")
		mem := repository.NewMemoryStore()
		return &stores{chats: mem, orders: mem, close: func() error { return nil }}, nil
	}

	repo, err := repository.NewPostgresRepository(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	log.Info("Connected to PostgreSQL database")
	return &stores{chats: repo, orders: repo, pinger: repo, close: repo.Close}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info("Starting PerfBot", "version", Version, "build_time", BuildTime, "git_commit", GitCommit)
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	kb := service.LoadKnowledgeBase(cfg.Knowledge.Path, log)

	aiClient := service.NewOpenAIClient(&cfg.OpenAI, log)
	if aiClient.IsEnabled() {
		log.Info("OpenAI client initialized",
			"api_base", cfg.OpenAI.APIBase,
			"chat_model", cfg.OpenAI.ChatModel,
			"extraction_model", cfg.OpenAI.ExtractionModel,
		)
	} else {
		log.Warn("OpenAI is disabled, replies use canned fallbacks and orders use keyword extraction")
	}

	backends := map[string]handler.Pinger{}
	if st.pinger != nil {
		backends["postgres"] = st.pinger
	}

	deps := service.OrderServiceDeps{
		Chats:         st.chats,
		Orders:        st.orders,
		Menu:          kb.Menu,
		Lifecycle:     service.NewOrderLifecycle(cfg.Orders.IDPrefix, time.Duration(cfg.Orders.DeliveryEstimateMinutes)*time.Minute),
		MaxIDAttempts: cfg.Orders.MaxIDAttempts,
	}

	if cfg.Redis.Addr != "" {
		cache, err := repository.NewRedisCache(ctx, repository.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			TTL:      cfg.OrderCacheTTL(),
		})
		if err != nil {
			log.Warn("Redis unavailable, order cache disabled", "error", err)
		} else {
			defer cache.Close()
			deps.Cache = cache
			backends["redis"] = cache
			log.Info("Connected to Redis", "addr", cfg.Redis.Addr)
		}
	}

	var auditHistory handler.AuditHistory
	if cfg.MongoDB.URI != "" {
		audit, err := repository.NewMongoAudit(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Collection)
		if err != nil {
			log.Warn("MongoDB unavailable, audit log disabled", "error", err)
		} else {
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				audit.Close(closeCtx)
			}()
			deps.Audit = audit
			auditHistory = audit
			backends["mongodb"] = audit
			log.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)
		}
	}

	brokers := cfg.KafkaBrokerList()
	if len(brokers) > 0 {
		producer, err := events.NewOrderEventProducer(brokers, cfg.Kafka.OrderTopic)
		if err != nil {
			log.Warn("Kafka producer unavailable, order events disabled", "error", err)
		} else {
			defer producer.Close()
			deps.Events = producer
			log.Info("Kafka producer ready", "topic", cfg.Kafka.OrderTopic)
		}
	}

	extractionModel := cfg.OpenAI.ExtractionModel
	if extractionModel == "" {
		extractionModel = cfg.OpenAI.ChatModel
	}
	deps.Extractor = service.NewOrderExtractor(log,
		service.NewLLMExtractionTier(aiClient, service.LLMSettings{
			Model:       extractionModel,
			Temperature: cfg.OpenAI.ExtractionTemperature,
			MaxTokens:   cfg.OpenAI.ExtractionMaxTokens,
			Timeout:     time.Duration(cfg.OpenAI.ExtractionTimeout) * time.Second,
		}, log),
		service.KeywordExtractionTier{},
	)

	retriever := service.NewRetriever(kb, log)
	generator := service.NewResponseGenerator(aiClient, service.GeneratorOptions{
		HistoryLimit: cfg.Knowledge.HistoryLimit,
		MaxTokens:    cfg.OpenAI.ChatMaxTokens,
		Temperature:  cfg.OpenAI.ChatTemperature,
	}, log)
	chatService := service.NewChatService(st.chats, retriever, generator, service.ChatOptions{
		MaxResults:   cfg.Knowledge.MaxResults,
		HistoryLimit: cfg.Knowledge.HistoryLimit,
	}, log)
	orderService := service.NewOrderService(deps, log)

	var consumerDone chan error
	if len(brokers) > 0 {
		consumer, err := events.NewStatusConsumer(brokers, cfg.Kafka.ConsumerGroup, cfg.Kafka.StatusTopic, orderService, log)
		if err != nil {
			log.Warn("Kafka consumer unavailable, status events disabled", "error", err)
		} else {
			defer consumer.Close()
			consumerDone = make(chan error, 1)
			go func() { consumerDone <- consumer.Run(ctx) }()
			log.Info("Consuming order status events", "topic", cfg.Kafka.StatusTopic, "group", cfg.Kafka.ConsumerGroup)
		}
	}

	router := handler.NewRouter(handler.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		EnableDebug:    cfg.Server.EnableDebugRoutes,
		Auth:           middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, cfg.Auth.Issuer, log),
		Chat:           handler.NewChatHandler(chatService, log),
		Orders:         handler.NewOrderHandler(orderService, log),
		System: handler.NewSystemHandler(handler.BuildInfo{
			Version:   Version,
			BuildTime: BuildTime,
			GitCommit: GitCommit,
		}, backends),
		Debug: handler.NewDebugHandler(aiClient, auditHistory),
	}, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", "addr", addr, "menu_items", kb.Menu.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
	}
	if consumerDone != nil {
		if err := <-consumerDone; err != nil {
			log.Warn("Status consumer stopped with error", "error", err)
		}
	}
	orderService.Wait()

	log.Info("Server stopped")
	return nil
}
