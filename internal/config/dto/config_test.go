package dto

import (
	"testing"
)

func TestApplicationConfig_Validate(t *testing.T) {
	valid := func() *ApplicationConfig {
		return &ApplicationConfig{
			Application: ApplicationInfo{
				Name:        "kafka-suppress",
				Version:     "1.0.0",
				Environment: "dev",
			},
			Kafka: KafkaConfig{
				BootstrapServers: []string{"localhost:9092"},
				Consumer: ConsumerConfig{
					GroupID: "test-group",
					Topics:  []string{"aggregates-changelog"},
				},
				Producer: ProducerConfig{
					Topic: "aggregates-final",
				},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*ApplicationConfig)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *ApplicationConfig) {},
			wantErr: false,
		},
		{
			name: "missing application name",
			mutate: func(c *ApplicationConfig) {
				c.Application.Name = ""
			},
			wantErr: true,
		},
		{
			name: "missing bootstrap servers",
			mutate: func(c *ApplicationConfig) {
				c.Kafka.BootstrapServers = nil
			},
			wantErr: true,
		},
		{
			name: "missing consumer group ID",
			mutate: func(c *ApplicationConfig) {
				c.Kafka.Consumer.GroupID = ""
			},
			wantErr: true,
		},
		{
			name: "missing producer topic",
			mutate: func(c *ApplicationConfig) {
				c.Kafka.Producer.Topic = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestS3Config_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  S3Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: S3Config{
				Bucket: "archive-bucket",
				Region: "us-east-1",
			},
			wantErr: false,
		},
		{
			name: "missing bucket",
			config: S3Config{
				Region: "us-east-1",
			},
			wantErr: true,
		},
		{
			name: "missing region",
			config: S3Config{
				Bucket: "archive-bucket",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAzureConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  AzureConfig
		wantErr bool
	}{
		{
			name: "valid config",
			config: AzureConfig{
				AccountName: "archiveaccount",
				Container:   "emissions",
			},
			wantErr: false,
		},
		{
			name: "missing account name",
			config: AzureConfig{
				Container: "emissions",
			},
			wantErr: true,
		},
		{
			name: "missing container",
			config: AzureConfig{
				AccountName: "archiveaccount",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  FileConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  FileConfig{BasePath: "/var/lib/archive"},
			wantErr: false,
		},
		{
			name:    "missing base path",
			config:  FileConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
