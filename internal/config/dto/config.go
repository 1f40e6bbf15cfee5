package dto

import (
	"fmt"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Suppression   SuppressionConfig   `mapstructure:"suppression"`
	Codec         CodecConfig         `mapstructure:"codec"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// KafkaConfig contains Kafka-related configuration
type KafkaConfig struct {
	BootstrapServers []string       `mapstructure:"bootstrap_servers"`
	SecurityProtocol string         `mapstructure:"security_protocol"`
	SASLMechanism    string         `mapstructure:"sasl_mechanism"`
	SASLUsername     string         `mapstructure:"sasl_username"`
	SASLPassword     string         `mapstructure:"sasl_password"`
	Consumer         ConsumerConfig `mapstructure:"consumer"`
	Producer         ProducerConfig `mapstructure:"producer"`
}

// ConsumerConfig contains Kafka consumer configuration for the upstream
// changefeed topic.
type ConsumerConfig struct {
	GroupID             string   `mapstructure:"group_id"`
	Topics              []string `mapstructure:"topics"`
	AutoOffsetReset     string   `mapstructure:"auto_offset_reset"`
	EnableAutoCommit    bool     `mapstructure:"enable_auto_commit"`
	MaxPollIntervalMS   int      `mapstructure:"max_poll_interval_ms"`
	SessionTimeoutMS    int      `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMS int      `mapstructure:"heartbeat_interval_ms"`
}

// ProducerConfig contains Kafka producer configuration for the downstream
// emission topic.
type ProducerConfig struct {
	Topic        string `mapstructure:"topic"`
	RequiredAcks string `mapstructure:"required_acks"`
	MaxRetries   int    `mapstructure:"max_retries"`
	Idempotent   bool   `mapstructure:"idempotent"`
}

// SuppressionConfig declares the suppression policy applied per partition.
type SuppressionConfig struct {
	// Mode is "time_limit" or "final_results".
	Mode string `mapstructure:"mode"`
	// TimeLimitMS is the fixed emission delay for time_limit mode.
	TimeLimitMS int64 `mapstructure:"time_limit_ms"`
	// GraceMS is the grace past the window end for final_results mode.
	GraceMS int64        `mapstructure:"grace_ms"`
	Buffer  BufferConfig `mapstructure:"buffer"`
}

// BufferConfig declares the buffer capacity ceiling. Zero limits mean
// unbounded.
type BufferConfig struct {
	MaxRecords int64 `mapstructure:"max_records"`
	MaxBytes   int64 `mapstructure:"max_bytes"`
	// FullStrategy is "emit_early" (default) or "shut_down".
	FullStrategy string `mapstructure:"full_strategy"`
}

// CodecConfig declares the wire formats of the upstream changefeed.
type CodecConfig struct {
	// KeyFormat is "plain", "time_windowed" or "session_windowed".
	KeyFormat    string `mapstructure:"key_format"`
	WindowSizeMS int64  `mapstructure:"window_size_ms"`
	// ValueFormat is "string", "int64" or "avro"; used when archiving.
	ValueFormat string `mapstructure:"value_format"`
	AvroSchema  string `mapstructure:"avro_schema"`
}

// ArchiveConfig contains the optional emission archive settings.
type ArchiveConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Format is "avro" or "parquet".
	Format      string `mapstructure:"format"`
	Compression string `mapstructure:"compression"`
	// Backend is "file", "s3", "gcs" or "azure".
	Backend      string         `mapstructure:"backend"`
	PathTemplate string         `mapstructure:"path_template"`
	Rotation     RotationConfig `mapstructure:"rotation"`
	S3           S3Config       `mapstructure:"s3"`
	Azure        AzureConfig    `mapstructure:"azure"`
	GCS          GCSConfig      `mapstructure:"gcs"`
	File         FileConfig     `mapstructure:"file"`
}

// RotationConfig controls when an archive batch is flushed to a file.
type RotationConfig struct {
	MaxRecords    int   `mapstructure:"max_records"`
	MaxSizeBytes  int64 `mapstructure:"max_size_bytes"`
	MaxAgeSeconds int   `mapstructure:"max_age_seconds"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	BasePath     string `mapstructure:"base_path"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName        string `mapstructure:"account_name"`
	Container          string `mapstructure:"container"`
	UseManagedIdentity bool   `mapstructure:"use_managed_identity"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	BasePath             string `mapstructure:"base_path"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// RetryConfig contains retry settings for downstream publishing and archive
// uploads.
type RetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	MaxAttempts       int     `mapstructure:"max_attempts"`
	InitialBackoffMS  int     `mapstructure:"initial_backoff_ms"`
	MaxBackoffMS      int     `mapstructure:"max_backoff_ms"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
	Jitter            bool    `mapstructure:"jitter"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds  int `mapstructure:"grace_period_seconds"`
	ForceTimeoutSeconds int `mapstructure:"force_timeout_seconds"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if len(c.Kafka.BootstrapServers) == 0 {
		return fmt.Errorf("kafka bootstrap servers are required")
	}
	if c.Kafka.Consumer.GroupID == "" {
		return fmt.Errorf("kafka consumer group ID is required")
	}
	if c.Kafka.Producer.Topic == "" {
		return fmt.Errorf("kafka producer topic is required")
	}
	return nil
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.Container == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("file base path is required")
	}
	return nil
}
