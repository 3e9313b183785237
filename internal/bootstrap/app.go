package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"deepresearch/internal/ai"
	"deepresearch/internal/app"
	"deepresearch/internal/cache"
	"deepresearch/internal/config"
	"deepresearch/internal/model"
	"deepresearch/internal/pipeline"
	mysqlClient "deepresearch/internal/platform/mysql"
	rabbitmqClient "deepresearch/internal/platform/rabbitmq"
	redisClient "deepresearch/internal/platform/redis"
	"deepresearch/internal/repository"
	"deepresearch/internal/worker"
)

type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	MySQL    *gorm.DB
	Redis    *redis.Client
	MQConn   *amqp.Connection
	Research *app.ResearchService
	Worker   *worker.ResearchWorker

	StartedAt time.Time
}

func New(ctx context.Context, logger zerolog.Logger) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.ResearchSession{},
		&model.ResearchReport{},
		&model.ResearchSummary{},
		&model.ResearchReasoning{},
		&model.ResearchCost{},
		&model.UploadedDocument{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	research := buildResearchService(cfg, mysqlDB, redisCli, mqConn, logger)

	researchWorker := worker.NewResearchWorker(
		mqConn,
		research,
		cfg.RabbitMQ.ResearchQueue,
		cfg.Research.WorkerConcurrency,
		logger.With().Str("component", "research_worker").Logger(),
	)
	if err := researchWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start research worker failed: %w", err)
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		MySQL:     mysqlDB,
		Redis:     redisCli,
		MQConn:    mqConn,
		Research:  research,
		Worker:    researchWorker,
		StartedAt: time.Now(),
	}, nil
}

func buildResearchService(
	cfg *config.Config,
	db *gorm.DB,
	redisCli *redis.Client,
	mqConn *amqp.Connection,
	logger zerolog.Logger,
) *app.ResearchService {
	sessionRepo := repository.NewSessionRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	publisher := rabbitmqClient.NewJobPublisher(mqConn, cfg.RabbitMQ.ResearchQueue)
	detailCache := cache.NewDetailCache(redisCli, time.Duration(cfg.Redis.DetailCacheTTLSeconds)*time.Second)

	llmClient := ai.NewOpenAICompatibleClient()

	researchCfg := ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}
	summaryModel := cfg.LLM.SummaryModel
	if summaryModel == "" {
		summaryModel = cfg.LLM.Model
	}
	summaryCfg := ai.ChatConfig{
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		Model:     summaryModel,
		MaxTokens: cfg.Research.SummaryMaxTokens,
	}

	assembler := app.NewContextAssembler(cfg.Research.ContextMaxChars, cfg.Research.ContextMaxTokens)
	summarizer := app.NewSummarizer(llmClient, summaryCfg, app.SummarizerConfig{
		DocumentInputMaxChars:   cfg.Research.UploadSummaryInputMaxChars,
		DocumentSummaryMaxChars: cfg.Research.UploadSummaryMaxChars,
		ReportInputMaxChars:     cfg.Research.ReportSummaryInputMaxChars,
		ReportSummaryMaxChars:   cfg.Research.SummaryMaxChars,
		Wait:                    time.Duration(cfg.Research.SummaryWaitSeconds) * time.Second,
	})

	rates := make(map[string]app.CostRate, len(cfg.Research.Costs))
	for name, rate := range cfg.Research.Costs {
		rates[name] = app.CostRate{Input: rate.Input, Output: rate.Output}
	}
	ledger := app.NewUsageLedger(rates)

	costModel := cfg.Research.CostModel
	if costModel == "" {
		costModel = cfg.LLM.Model
	}

	runner := pipeline.NewLLMRunner(llmClient, researchCfg)

	return app.NewResearchService(
		sessionRepo,
		documentRepo,
		publisher,
		detailCache,
		assembler,
		summarizer,
		ledger,
		runner,
		costModel,
		time.Duration(cfg.Research.PipelineTimeoutSeconds)*time.Second,
		cfg.Research.UploadStoreMaxChars,
		logger.With().Str("component", "research_service").Logger(),
	)
}

func (a *App) Close() error {
	var closeErr error
	if a.Worker != nil {
		a.Worker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
