package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jittakal/kafsuppress/internal/config/dto"
	"github.com/spf13/viper"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	// Set defaults
	l.setDefaults()

	// Load from file if provided
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Expand environment variables in config values
	// Only expand if the value contains ${...} pattern
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	// Unmarshal configuration
	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "kafka-suppress")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Kafka defaults
	l.v.SetDefault("kafka.security_protocol", "SASL_SSL")
	l.v.SetDefault("kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("kafka.consumer.auto_offset_reset", "earliest")
	l.v.SetDefault("kafka.consumer.enable_auto_commit", false)
	l.v.SetDefault("kafka.consumer.max_poll_interval_ms", 300000)
	l.v.SetDefault("kafka.consumer.session_timeout_ms", 30000)
	l.v.SetDefault("kafka.consumer.heartbeat_interval_ms", 10000)
	l.v.SetDefault("kafka.producer.required_acks", "all")
	l.v.SetDefault("kafka.producer.max_retries", 3)
	l.v.SetDefault("kafka.producer.idempotent", true)

	// Suppression defaults
	l.v.SetDefault("suppression.mode", "time_limit")
	l.v.SetDefault("suppression.time_limit_ms", 1000)
	l.v.SetDefault("suppression.grace_ms", 0)
	l.v.SetDefault("suppression.buffer.max_records", 0)
	l.v.SetDefault("suppression.buffer.max_bytes", 0)
	l.v.SetDefault("suppression.buffer.full_strategy", "emit_early")

	// Codec defaults
	l.v.SetDefault("codec.key_format", "plain")
	l.v.SetDefault("codec.window_size_ms", 0)
	l.v.SetDefault("codec.value_format", "string")

	// Archive defaults
	l.v.SetDefault("archive.enabled", false)
	l.v.SetDefault("archive.format", "avro")
	l.v.SetDefault("archive.compression", "gzip")
	l.v.SetDefault("archive.backend", "file")
	l.v.SetDefault("archive.rotation.max_records", 100000)
	l.v.SetDefault("archive.rotation.max_size_bytes", 128*1024*1024)
	l.v.SetDefault("archive.rotation.max_age_seconds", 300)
	l.v.SetDefault("archive.s3.use_path_style", false)
	l.v.SetDefault("archive.s3.sse_enabled", true)

	// Retry defaults
	l.v.SetDefault("retry.enabled", true)
	l.v.SetDefault("retry.max_attempts", 5)
	l.v.SetDefault("retry.initial_backoff_ms", 100)
	l.v.SetDefault("retry.max_backoff_ms", 30000)
	l.v.SetDefault("retry.backoff_multiplier", 2.0)
	l.v.SetDefault("retry.jitter", true)

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
	l.v.SetDefault("shutdown.force_timeout_seconds", 60)
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	// Kafka validation
	if len(config.Kafka.BootstrapServers) == 0 {
		return errors.New("kafka.bootstrap_servers is required")
	}
	if len(config.Kafka.Consumer.Topics) == 0 {
		return errors.New("kafka.consumer.topics is required")
	}
	if config.Kafka.Consumer.GroupID == "" {
		return errors.New("kafka.consumer.group_id is required")
	}
	if config.Kafka.Producer.Topic == "" {
		return errors.New("kafka.producer.topic is required")
	}

	// Suppression validation
	switch config.Suppression.Mode {
	case "time_limit":
		if config.Suppression.TimeLimitMS < 0 {
			return fmt.Errorf("suppression.time_limit_ms must not be negative: %d", config.Suppression.TimeLimitMS)
		}
	case "final_results":
		if config.Suppression.GraceMS < 0 {
			return fmt.Errorf("suppression.grace_ms must not be negative: %d", config.Suppression.GraceMS)
		}
		if config.Codec.KeyFormat == "plain" {
			return errors.New("suppression.mode final_results requires a windowed codec.key_format")
		}
	default:
		return fmt.Errorf("unsupported suppression mode: %s", config.Suppression.Mode)
	}

	switch config.Suppression.Buffer.FullStrategy {
	case "emit_early", "shut_down":
	default:
		return fmt.Errorf("unsupported buffer full strategy: %s", config.Suppression.Buffer.FullStrategy)
	}

	// Codec validation
	switch config.Codec.KeyFormat {
	case "plain", "session_windowed":
	case "time_windowed":
		if config.Codec.WindowSizeMS <= 0 {
			return errors.New("codec.window_size_ms is required for time_windowed keys")
		}
	default:
		return fmt.Errorf("unsupported key format: %s", config.Codec.KeyFormat)
	}
	switch config.Codec.ValueFormat {
	case "string", "int64":
	case "avro":
		if config.Codec.AvroSchema == "" {
			return errors.New("codec.avro_schema is required for avro values")
		}
	default:
		return fmt.Errorf("unsupported value format: %s", config.Codec.ValueFormat)
	}

	// Archive validation
	if config.Archive.Enabled {
		switch config.Archive.Backend {
		case "s3":
			if config.Archive.S3.Bucket == "" {
				return errors.New("archive.s3.bucket is required for S3 backend")
			}
			if config.Archive.S3.Region == "" {
				return errors.New("archive.s3.region is required for S3 backend")
			}
		case "azure":
			if config.Archive.Azure.AccountName == "" {
				return errors.New("archive.azure.account_name is required for Azure backend")
			}
			if config.Archive.Azure.Container == "" {
				return errors.New("archive.azure.container is required for Azure backend")
			}
		case "gcs":
			if config.Archive.GCS.Bucket == "" {
				return errors.New("archive.gcs.bucket is required for GCS backend")
			}
		case "file":
			if config.Archive.File.BasePath == "" {
				return errors.New("archive.file.base_path is required for file backend")
			}
		default:
			return fmt.Errorf("unsupported archive backend: %s", config.Archive.Backend)
		}

		if config.Archive.Format != "parquet" && config.Archive.Format != "avro" {
			return fmt.Errorf("unsupported archive format: %s", config.Archive.Format)
		}
	}

	// Port validation
	if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
	}
	if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
		return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
	}

	return nil
}
