package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jittakal/kafsuppress/internal/archive"
	"github.com/jittakal/kafsuppress/internal/codec"
	"github.com/jittakal/kafsuppress/internal/config"
	"github.com/jittakal/kafsuppress/internal/config/dto"
	internalencoder "github.com/jittakal/kafsuppress/internal/encoder"
	"github.com/jittakal/kafsuppress/internal/kafka"
	"github.com/jittakal/kafsuppress/internal/observability"
	"github.com/jittakal/kafsuppress/internal/server"
	"github.com/jittakal/kafsuppress/internal/stage"
	"github.com/jittakal/kafsuppress/internal/storage"
	"github.com/jittakal/kafsuppress/internal/validator"
	"github.com/jittakal/kafsuppress/pkg/encoder"
	pkgstorage "github.com/jittakal/kafsuppress/pkg/storage"
	"github.com/jittakal/kafsuppress/pkg/suppress"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	// Parse command-line flags
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Load configuration
	// Priority: CLI flag > CONFIG_PATH env var > default path
	var cfgPath string
	if *configPath != "" {
		cfgPath = *configPath
	} else if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		cfgPath = envPath
	} else {
		cfgPath = "config/application.yaml"
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize observability
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	})
	logger.Info("starting suppression stage",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
		"mode", cfg.Suppression.Mode,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Track cleanup functions
	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, fn)
		logger.Debug("registered cleanup", "component", name)
	}
	runCleanups := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			if err := cleanupFuncs[i](); err != nil {
				logger.Error("cleanup failed", "error", err)
			}
		}
	}
	defer runCleanups()

	// Suppression policy
	policy, err := suppressionPolicy(cfg.Suppression)
	if err != nil {
		return fmt.Errorf("invalid suppression configuration: %w", err)
	}

	// Changefeed codecs
	keyCodec, err := codec.NewKeyCodec(codec.KeyFormat(cfg.Codec.KeyFormat), cfg.Codec.WindowSizeMS)
	if err != nil {
		return fmt.Errorf("failed to create key codec: %w", err)
	}
	changeCodec := codec.NewChangeCodec()

	// Kafka consumer for the upstream changefeed
	consumerConfig := kafka.ConsumerConfig{
		BootstrapServers:    cfg.Kafka.BootstrapServers,
		GroupID:             cfg.Kafka.Consumer.GroupID,
		SecurityProtocol:    cfg.Kafka.SecurityProtocol,
		SASLMechanism:       cfg.Kafka.SASLMechanism,
		SASLUsername:        cfg.Kafka.SASLUsername,
		SASLPassword:        cfg.Kafka.SASLPassword,
		AutoOffsetReset:     cfg.Kafka.Consumer.AutoOffsetReset,
		EnableAutoCommit:    cfg.Kafka.Consumer.EnableAutoCommit,
		MaxPollIntervalMS:   cfg.Kafka.Consumer.MaxPollIntervalMS,
		SessionTimeoutMS:    cfg.Kafka.Consumer.SessionTimeoutMS,
		HeartbeatIntervalMS: cfg.Kafka.Consumer.HeartbeatIntervalMS,
	}
	source, err := kafka.NewSaramaConsumer(consumerConfig, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	addCleanup("kafka-consumer", source.Close)

	// Downstream publisher
	publisher, err := kafka.NewSaramaPublisher(
		cfg.Kafka.BootstrapServers,
		consumerConfig,
		kafka.ProducerConfig{
			Topic:        cfg.Kafka.Producer.Topic,
			RequiredAcks: cfg.Kafka.Producer.RequiredAcks,
			MaxRetries:   cfg.Kafka.Producer.MaxRetries,
			Idempotent:   cfg.Kafka.Producer.Idempotent,
		},
		logger,
		metrics,
	)
	if err != nil {
		return fmt.Errorf("failed to create downstream publisher: %w", err)
	}
	addCleanup("downstream-publisher", publisher.Close)

	// Optional emission archive
	var archiver stage.Archiver
	if cfg.Archive.Enabled {
		a, err := buildArchiver(cfg, observability.ComponentLogger(logger, "archive"), metrics)
		if err != nil {
			return fmt.Errorf("failed to create archive coordinator: %w", err)
		}
		archiver = a
		addCleanup("archive-coordinator", a.Close)
	}

	// Suppression stage
	st, err := stage.New(
		stage.Config{
			Policy:      policy,
			KeyCodec:    keyCodec,
			ChangeCodec: changeCodec,
		},
		publisher,
		archiver,
		validator.NewChangeRecordValidator(),
		logger,
		metrics,
	)
	if err != nil {
		return fmt.Errorf("failed to create suppression stage: %w", err)
	}
	addCleanup("suppression-stage", st.Close)

	// Start HTTP server
	health := &stageHealthChecker{stage: st}
	httpServer := server.NewServer(
		cfg.Observability.Health.Port,
		cfg.Observability.Metrics.Port,
		health,
		st,
		registry,
		observability.ComponentLogger(logger, "http"),
	)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	addCleanup("http-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	})

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run the stage in background
	runErrChan := make(chan error, 1)
	go func() {
		health.ready.Store(true)
		runErrChan <- st.Run(ctx, source, cfg.Kafka.Consumer.Topics)
	}()

	logger.Info("application started successfully",
		"topics", cfg.Kafka.Consumer.Topics,
		"downstream_topic", cfg.Kafka.Producer.Topic,
		"archive_enabled", cfg.Archive.Enabled,
	)

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("received termination signal")
	case err := <-runErrChan:
		if err != nil && err != context.Canceled {
			logger.Error("stage error", "error", err)
			health.ready.Store(false)
			return err
		}
	}

	// Graceful shutdown
	logger.Info("initiating graceful shutdown")
	health.ready.Store(false)
	cancel()

	// Allow the consume loop to drain before cleanups run
	select {
	case <-runErrChan:
	case <-time.After(time.Duration(cfg.Shutdown.GracePeriodSeconds) * time.Second):
		logger.Warn("grace period expired before consume loop stopped")
	}

	logger.Info("application stopped successfully")
	return nil
}

// suppressionPolicy maps the declared suppression mode onto a policy.
func suppressionPolicy(cfg dto.SuppressionConfig) (suppress.Suppressed, error) {
	buffer := suppress.Unbounded()
	if cfg.Buffer.MaxRecords > 0 {
		buffer = buffer.WithMaxRecords(cfg.Buffer.MaxRecords)
	}
	if cfg.Buffer.MaxBytes > 0 {
		buffer = buffer.WithMaxBytes(cfg.Buffer.MaxBytes)
	}
	if cfg.Buffer.FullStrategy == "shut_down" {
		buffer = buffer.ShutDownWhenFull()
	}

	switch cfg.Mode {
	case "final_results":
		grace := time.Duration(cfg.GraceMS) * time.Millisecond
		return suppress.UntilWindowCloses(buffer).WithGracePeriod(grace), nil
	case "time_limit", "":
		timeLimit := time.Duration(cfg.TimeLimitMS) * time.Millisecond
		return suppress.UntilTimeLimit(timeLimit, buffer), nil
	default:
		return suppress.Suppressed{}, fmt.Errorf("unsupported suppression mode: %s", cfg.Mode)
	}
}

// buildArchiver assembles the storage writer, path router, rotation policy
// and value renderer for the emission archive.
func buildArchiver(cfg *dto.ApplicationConfig, logger *slog.Logger, metrics *observability.Metrics) (*archive.Archiver, error) {
	format := encoder.FormatParquet
	if cfg.Archive.Format == "avro" {
		format = encoder.FormatAvro
	}
	compression := cfg.Archive.Compression
	if compression == "" {
		compression = internalencoder.DefaultCompression(format)
	}

	var writer pkgstorage.Writer
	var err error
	switch cfg.Archive.Backend {
	case "file":
		writer, err = storage.NewFileWriter(storage.FileConfig{
			BasePath: cfg.Archive.File.BasePath,
		}, format, compression, logger, metrics)
	case "s3":
		writer, err = storage.NewS3Writer(storage.S3Config{
			Bucket:       cfg.Archive.S3.Bucket,
			Region:       cfg.Archive.S3.Region,
			Endpoint:     cfg.Archive.S3.Endpoint,
			UsePathStyle: cfg.Archive.S3.UsePathStyle,
			SSEEnabled:   cfg.Archive.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.Archive.S3.SSEKMSKeyID,
		}, format, compression, logger, metrics)
	case "gcs":
		writer, err = storage.NewGCSWriter(storage.GCSConfig{
			Bucket:               cfg.Archive.GCS.Bucket,
			ProjectID:            cfg.Archive.GCS.ProjectID,
			CredentialsFile:      cfg.Archive.GCS.CredentialsFile,
			CredentialsJSON:      os.Getenv("GCP_CREDENTIALS_JSON"),
			UseDefaultCredential: cfg.Archive.GCS.UseDefaultCredential,
		}, format, compression, logger, metrics)
	case "azure":
		writer, err = storage.NewAzureWriter(storage.AzureConfig{
			AccountName:   cfg.Archive.Azure.AccountName,
			AccountKey:    os.Getenv("AZURE_STORAGE_ACCOUNT_KEY"),
			ContainerName: cfg.Archive.Azure.Container,
		}, format, compression, logger, metrics)
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s (supported: file, s3, gcs, azure)", cfg.Archive.Backend)
	}
	if err != nil {
		return nil, err
	}

	router := storage.NewRouter(
		archive.Protocol(cfg.Archive.Backend),
		archiveBucket(cfg),
		archiveBasePath(cfg),
	)
	policy := storage.NewPolicy(storage.PolicyConfig{
		MaxFileSizeMB:      cfg.Archive.Rotation.MaxSizeBytes / (1024 * 1024),
		MaxRecordsPerFile:  cfg.Archive.Rotation.MaxRecords,
		MaxDurationSeconds: cfg.Archive.Rotation.MaxAgeSeconds,
	})

	var renderValue codec.ValueRenderer
	if cfg.Codec.ValueFormat != "" {
		renderValue, err = codec.NewValueRenderer(codec.ValueFormat(cfg.Codec.ValueFormat), cfg.Codec.AvroSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to create value renderer: %w", err)
		}
	}

	return archive.New(
		archive.Config{
			Format:           format,
			MaxBufferBytes:   cfg.Archive.Rotation.MaxSizeBytes,
			MaxBufferRecords: cfg.Archive.Rotation.MaxRecords,
			FlushInterval:    time.Duration(cfg.Archive.Rotation.MaxAgeSeconds) * time.Second,
			RenderValue:      renderValue,
		},
		writer,
		router,
		policy,
		logger,
	)
}

func archiveBucket(cfg *dto.ApplicationConfig) string {
	switch cfg.Archive.Backend {
	case "s3":
		return cfg.Archive.S3.Bucket
	case "gcs":
		return cfg.Archive.GCS.Bucket
	case "azure":
		return cfg.Archive.Azure.Container
	default:
		// File backend: basePath is handled by FileWriter, the router only
		// contributes the topic/date/partition structure.
		return ""
	}
}

func archiveBasePath(cfg *dto.ApplicationConfig) string {
	switch cfg.Archive.Backend {
	case "s3":
		return cfg.Archive.S3.BasePath
	case "gcs":
		return cfg.Archive.GCS.BasePath
	default:
		return ""
	}
}

// stageHealthChecker implements server.HealthChecker backed by the stage.
type stageHealthChecker struct {
	ready atomic.Bool
	stage *stage.Stage
}

func (h *stageHealthChecker) Liveness() bool {
	return true
}

func (h *stageHealthChecker) Readiness(ctx context.Context) bool {
	return h.ready.Load()
}

func (h *stageHealthChecker) IsHealthy() bool {
	return h.ready.Load()
}

func (h *stageHealthChecker) GetStatus() map[string]string {
	stats := h.stage.Stats()
	var records int
	for _, s := range stats {
		records += s.RecordCount
	}
	return map[string]string{
		"partitions":       fmt.Sprintf("%d", len(stats)),
		"buffered_records": fmt.Sprintf("%d", records),
	}
}
