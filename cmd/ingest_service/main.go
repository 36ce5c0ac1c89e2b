package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"video_ingest_service/internal/ingest/api/handlers"
	"video_ingest_service/internal/ingest/api/router"
	"video_ingest_service/internal/ingest/app"
	"video_ingest_service/internal/ingest/domain"
	"video_ingest_service/internal/ingest/repository"
	"video_ingest_service/pkg/config"
	"video_ingest_service/pkg/database"
	"video_ingest_service/pkg/logger"
	"video_ingest_service/pkg/metrics"
	testtool "video_ingest_service/pkg/test_tool"
	"video_ingest_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.Ingest, config.EnvConfig.IngestLogPath)
	defer logger.Log.Sync()

	cfg, err := config.LoadConfig[config.Ingest](config.EnvConfig.Ingest, config.EnvConfig.IngestYAMLPath)
	if err != nil {
		logger.Log.Fatal("load config failed", zap.Error(err))
	}
	if config.EnvConfig.IngestPort != "" {
		cfg.Port = config.EnvConfig.IngestPort
	}
	token.SetSecret(cfg.JWTSecret)

	// ffmpeg / ffprobe 不存在就不用啟動了
	if err := app.CheckMediaTools(cfg.Media.FFmpegBin, cfg.Media.FFprobeBin); err != nil {
		logger.Log.Fatal("media tools missing", zap.Error(err))
	}

	// 1. 連線 PostgreSQL
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		cfg.PostgreSQL.Host, cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Database, cfg.PostgreSQL.Port)
	db, err := database.NewPGConnection(database.Connection{
		ConnectStr: dsn,

		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to postgreSQL database after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.PostgreSQL.Host, cfg.PostgreSQL.Port)),
			zap.Error(err),
		)
	}

	videoRepo := repository.NewVideoRepo(db)
	if err := videoRepo.AutoMigrate(); err != nil {
		logger.Log.Fatal("資料表遷移失敗", zap.Error(err))
	}

	// 2. 初始化 MinIO 客戶端
	minioClient, err := database.NewMinIOConnection(database.MinIOConnection{
		Endpoint:   fmt.Sprintf("%s:%d", cfg.MinIO.Host, cfg.MinIO.Port),
		User:       cfg.MinIO.User,
		Password:   cfg.MinIO.Password,
		BucketName: cfg.MinIO.BucketName,
		UseSSL:     cfg.MinIO.UseSSL,

		RetryCount:    cfg.MinIO.RetryCount,
		RetryInterval: cfg.MinIO.RetryInterval,
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to minio after retries", zap.Error(err))
	}
	target := domain.StoreTarget{Bucket: cfg.MinIO.BucketName, Namespace: cfg.MinIO.Namespace}

	// 3. Redis 播放清單快取，連不上就不快取
	var playbackCache database.RedisRepository[domain.PlaybackManifest]
	if cfg.Redis.Addr != "" {
		rdb, err := database.NewRedisClient(database.RedisConnection{Addr: cfg.Redis.Addr, DB: cfg.Redis.RedisDB})
		if err != nil {
			logger.Log.Warn("redis unavailable, playback cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			playbackCache = database.NewRedisRepository[domain.PlaybackManifest](rdb)
		}
	}

	// 4. RabbitMQ：事件與刪除重試 queue
	var rabbitChannel *amqp.Channel
	if cfg.RabbitMQ.IP != "" {
		rabbitURL := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.IP, cfg.RabbitMQ.Port)
		queues := database.RabbitQueues{Events: cfg.RabbitMQ.Queue, Reconcile: reconcileQueueName(cfg)}
		conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
			ConnectStr:    rabbitURL,
			RetryCount:    cfg.RabbitMQ.RetryCount,
			RetryInterval: time.Duration(cfg.RabbitMQ.RetryInterval),
		}, queues)
		if err != nil {
			log.Fatalf("RabbitMQ 連線失敗: %v", err)
		}
		defer conn.Close()

		rabbitChannel, err = database.GetRabbitMQChannelWithRetry(conn, queues, cfg.RabbitMQ.RetryCount, time.Duration(cfg.RabbitMQ.RetryInterval))
		if err != nil {
			log.Fatalf("取得 RabbitMQ Channel 失敗: %v", err)
		}
		defer rabbitChannel.Close()

		if err := database.DeclareQueues(rabbitChannel, queues); err != nil {
			log.Fatalf("Queue Declare failed: %v", err)
		}
	}

	var events app.EventPublisher = app.NoopPublisher{}
	switch cfg.Events.Driver {
	case "rabbitmq":
		if rabbitChannel == nil {
			logger.Log.Fatal("events.driver is rabbitmq but rabbitmq is not configured")
		}
		events = app.NewRabbitPublisher(database.NewRabbitRepository(rabbitChannel), cfg.RabbitMQ.Queue)
	case "kafka":
		kafkaWriter, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.KafKa.Brokers,
			Topic:         cfg.KafKa.Topic,
			RetryCount:    cfg.KafKa.RetryCount,
			RetryInterval: cfg.KafKa.RetryInterval,
		})
		if err != nil {
			log.Fatalf("Kafka Writer 建立失敗: %v", err)
		}
		defer kafkaWriter.Close()
		events = app.NewKafkaPublisher(kafkaWriter)
	}

	// ingest 執行紀錄 (MongoDB)，沒設定就不記錄
	var runJournal repository.RunJournal
	if cfg.Mongo.URI != "" {
		mongoDB, err := database.NewMongoDB(context.Background(), database.Connection{
			ConnectStr:    cfg.Mongo.URI,
			RetryCount:    cfg.Mongo.RetryCount,
			RetryInterval: time.Duration(cfg.Mongo.RetryInterval),
		}, cfg.Mongo.Database)
		if err != nil {
			log.Fatalf("MongoDB 連線失敗: %v", err)
		}
		defer mongoDB.Close(context.Background())
		if err := repository.EnsureIndexes(context.Background(), mongoDB.Database); err != nil {
			logger.Log.Warn("create ingest_runs index failed", zap.Error(err))
		}
		runJournal = repository.NewMongoRunJournal(mongoDB.Database)
	}

	// 5. 組裝 pipeline
	m := metrics.New()
	limits := cfg.Limits.ToLimits()
	policy := cfg.Retry.ToRetryPolicy()

	pipeline := app.NewPipeline(
		app.NewFFProbe(cfg.Media.FFprobeBin),
		app.NewFFmpegSplitter(cfg.Media.FFmpegBin, limits),
		app.NewUploader(minioClient, policy, m),
		minioClient,
		videoRepo,
		app.PipelineOptions{
			Limits:     limits,
			StagingDir: stagingDir(cfg),
			Rollback:   cfg.Pipeline.Rollback(),
			Metrics:    m,
		},
	)

	deps := app.UseCaseDeps{
		Pipeline:          pipeline,
		Reconciler:        app.NewReconciler(minioClient, policy, m),
		Repo:              videoRepo,
		Store:             minioClient,
		Cache:             playbackCache,
		Events:            events,
		Journal:           runJournal,
		Target:            target,
		PresignTTL:        time.Duration(cfg.PresignTTL) * time.Second,
		CacheTTL:          time.Duration(cfg.Redis.CacheTTL) * time.Second,
		ReconcileAttempts: cfg.Pipeline.ReconcileAttempts,
	}
	if rabbitChannel != nil {
		deps.RetryQueue = app.NewRabbitReconcileQueue(database.NewRabbitRepository(rabbitChannel), reconcileQueueName(cfg))
	}
	usecase := app.NewIngestUseCase(deps)

	// 使用 context 控制 worker 與 server 的生命週期
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rabbitChannel != nil {
		worker := app.NewReconcileWorker(usecase, deps.RetryQueue, cfg.Pipeline.ReconcileAttempts)
		go func() {
			if err := worker.Start(ctx, rabbitChannel, reconcileQueueName(cfg)); err != nil {
				logger.Log.Error("reconcile worker exited", zap.Error(err))
			}
		}()
	}

	testtool.StartPprof(cfg.PprofAddr)

	// 6. 建立 Fiber 應用
	bodyLimit := cfg.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 2048
	}
	r := fiber.New(fiber.Config{
		BodyLimit:         bodyLimit * 1024 * 1024,
		StreamRequestBody: true,
	})

	if err := os.MkdirAll(config.EnvConfig.IngestLogPath, 0755); err != nil {
		log.Fatalf("Failed to create log dir: %v", err)
	}
	file, err := os.OpenFile(filepath.Join(config.EnvConfig.IngestLogPath, "access.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()
	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	router.RegisterRoutes(r, handlers.NewVideoHandler(usecase), m)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Log.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Log.Info(fmt.Sprintf("IngestService listening on : %s", cfg.Port))
	if err := r.Listen(cfg.IP + ":" + cfg.Port); err != nil {
		logger.Log.Fatal("Server failed to start", zap.Error(err))
	}
}

func reconcileQueueName(cfg config.Ingest) string {
	if cfg.RabbitMQ.ReconcileQueue != "" {
		return cfg.RabbitMQ.ReconcileQueue
	}
	return domain.ReconcileQueueName
}

func stagingDir(cfg config.Ingest) string {
	if cfg.StagingDir != "" {
		return cfg.StagingDir
	}
	return filepath.Join(os.TempDir(), "ingest_staging")
}
