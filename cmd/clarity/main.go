package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/clarity-app/clarity/internal/ai"
	"github.com/clarity-app/clarity/internal/config"
	"github.com/clarity-app/clarity/internal/db"
	"github.com/clarity-app/clarity/internal/embedcache"
	"github.com/clarity-app/clarity/internal/filestore"
	"github.com/clarity-app/clarity/internal/handler"
	"github.com/clarity-app/clarity/internal/job"
	"github.com/clarity-app/clarity/internal/jobqueue"
	"github.com/clarity-app/clarity/internal/middleware"
	"github.com/clarity-app/clarity/internal/model"
	"github.com/clarity-app/clarity/internal/repo"
	"github.com/clarity-app/clarity/internal/schedule"
	"github.com/clarity-app/clarity/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "clarity",
		Short: "clarity backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run clarity server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	userRepo := repo.NewUserRepo(database)
	brainRepo := repo.NewBrainRepo(database)
	streamRepo := repo.NewStreamRepo(database)
	cardRepo := repo.NewCardRepo(database)
	streamCardRepo := repo.NewStreamCardRepo(database)
	cardLinkRepo := repo.NewCardLinkRepo(database)
	fileRepo := repo.NewFileRepo(database)
	jobRepo := repo.NewProcessingJobRepo(database)
	embeddingRepo := repo.NewEmbeddingRepo(database)

	store, err := filestore.New(cfg.FileStore.Type, cfg.FileStore.Data)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	var aiProvider ai.IProvider
	var embedderInstance ai.IEmbedder
	if cfg.AI.Provider != "" {
		aiProvider, err = ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
		if err != nil {
			return fmt.Errorf("init ai provider: %w", err)
		}
		if cfg.AI.EmbedModel != "" {
			embedderInstance = embedcache.WrapLRU(ai.NewEmbedder(aiProvider, cfg.AI.EmbedModel), 1024, time.Hour)
		}
	}

	queue := jobqueue.New(jobRepo, jobqueue.DefaultOptions())

	ledgerService := service.NewLedgerService(database, brainRepo, streamRepo, cardRepo,
		streamCardRepo, cardLinkRepo, embeddingRepo, store)
	cardService := service.NewCardService(database, brainRepo, cardRepo, cardLinkRepo,
		embeddingRepo, store, ledgerService, queue, cfg.Limits.BrainStorageBytes)
	brainService := service.NewBrainService(brainRepo, streamRepo, cardRepo, streamCardRepo,
		cardLinkRepo, fileRepo, embeddingRepo, store)
	streamService := service.NewStreamService(brainRepo, streamRepo, streamCardRepo, ledgerService)
	fileService := service.NewFileService(brainRepo, fileRepo, cardService, store, queue,
		cfg.Limits.MaxUploadBytes, cfg.Limits.SyncProcessBytes)
	linkService := service.NewLinkService(brainRepo, cardRepo, cardLinkRepo, embeddingRepo,
		cardService, embedderInstance)
	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	aiService := service.NewAIService(aiProvider, cfg.AI.Model, embedderInstance, brainRepo,
		cardRepo, streamCardRepo, embeddingRepo, cardService)

	queue.RegisterHandler(model.JobTypeFileProcessing, fileService.HandleProcessing)
	queue.RegisterHandler(model.JobTypeLinkResolution, linkService.HandleResolution)
	queue.RegisterHandler(model.JobTypeStorageCalculation, brainService.HandleStorageCalculation)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("start job queue: %w", err)
	}
	defer queue.Stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewJobCleanupJob(queue, cfg.Jobs.CleanupKeepDays), cfg.Jobs.CleanupSpec); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewStorageReconJob(brainService, queue), cfg.Jobs.StorageReconSpec); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(authService),
		Brains:    handler.NewBrainHandler(brainService),
		Streams:   handler.NewStreamHandler(streamService, ledgerService),
		Cards:     handler.NewCardHandler(cardService, linkService),
		Files:     handler.NewFileHandler(fileService),
		Jobs:      handler.NewJobHandler(queue),
		AI:        handler.NewAIHandler(aiService),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
