package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jittakal/kafsuppress/pkg/changefeed"
)

func TestAzureConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  AzureConfig
		wantErr bool
	}{
		{
			name: "valid config with account key",
			config: AzureConfig{
				AccountName:   "testaccount",
				AccountKey:    "dGVzdGtleQ==",
				ContainerName: "test-container",
			},
			wantErr: false,
		},
		{
			name: "empty account name",
			config: AzureConfig{
				AccountName:   "",
				AccountKey:    "dGVzdGtleQ==",
				ContainerName: "test-container",
			},
			wantErr: true,
		},
		{
			name: "empty account key",
			config: AzureConfig{
				AccountName:   "testaccount",
				AccountKey:    "",
				ContainerName: "test-container",
			},
			wantErr: true,
		},
		{
			name: "empty container name",
			config: AzureConfig{
				AccountName:   "testaccount",
				AccountKey:    "dGVzdGtleQ==",
				ContainerName: "",
			},
			wantErr: true,
		},
		{
			name: "with custom endpoint",
			config: AzureConfig{
				AccountName:   "testaccount",
				AccountKey:    "dGVzdGtleQ==",
				ContainerName: "test-container",
				Endpoint:      "http://127.0.0.1:10000/devstoreaccount1",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAzureConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateAzureConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func validateAzureConfig(config AzureConfig) error {
	if config.AccountName == "" {
		return errors.New("account name is required")
	}
	if config.AccountKey == "" {
		return errors.New("account key is required")
	}
	if config.ContainerName == "" {
		return errors.New("container name is required")
	}
	return nil
}

func TestAzurePath_Construction(t *testing.T) {
	tests := []struct {
		name      string
		container string
		blobPath  string
		want      string
	}{
		{
			name:      "simple path",
			container: "changes",
			blobPath:  "topic/dt=2025-12-19/pid=0/file.parquet",
			want:      "wasbs://changes/topic/dt=2025-12-19/pid=0/file.parquet",
		},
		{
			name:      "nested path",
			container: "data",
			blobPath:  "changes/topic/dt=2025-12-19/pid=0/file.parquet",
			want:      "wasbs://data/changes/topic/dt=2025-12-19/pid=0/file.parquet",
		},
		{
			name:      "root path",
			container: "root",
			blobPath:  "file.parquet",
			want:      "wasbs://root/file.parquet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := "wasbs://" + tt.container + "/" + tt.blobPath
			if got != tt.want {
				t.Errorf("Azure path = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAzureContainerName_Validation(t *testing.T) {
	tests := []struct {
		name      string
		container string
		valid     bool
	}{
		{"valid lowercase", "mycontainer", true},
		{"valid with numbers", "container123", true},
		{"valid with dashes", "my-container", true},
		{"invalid uppercase", "MyContainer", false},
		{"invalid underscore", "my_container", false},
		{"invalid start with dash", "-container", false},
		{"invalid end with dash", "container-", false},
		{"invalid too short", "ab", false},
		{"invalid too long", "verylongcontainernamethatexceedssixtythreecharactersinlengthtest", false},
		{"valid minimum length", "abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid := isValidAzureContainerName(tt.container)
			if valid != tt.valid {
				t.Errorf("Container %v validity = %v, want %v", tt.container, valid, tt.valid)
			}
		})
	}
}

func isValidAzureContainerName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if name[0] == '-' || name[len(name)-1] == '-' {
		return false
	}
	for _, c := range name {
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-') {
			return false
		}
	}
	return true
}

func TestAzureWriter_ErrorCodes(t *testing.T) {
	tests := []struct {
		name      string
		errorCode string
		retryable bool
	}{
		{"server busy", "ServerBusy", true},
		{"timeout", "OperationTimedOut", true},
		{"blob not found", "BlobNotFound", false},
		{"container not found", "ContainerNotFound", false},
		{"authentication failed", "AuthenticationFailed", false},
		{"invalid credentials", "InvalidCredentials", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable := tt.errorCode == "ServerBusy" ||
				tt.errorCode == "OperationTimedOut" ||
				tt.errorCode == "ServiceUnavailable"

			if retryable != tt.retryable {
				t.Errorf("Error %v retryable = %v, want %v", tt.errorCode, retryable, tt.retryable)
			}
		})
	}
}

func TestAzureWriter_Context(t *testing.T) {
	tests := []struct {
		name       string
		ctx        context.Context
		shouldFail bool
	}{
		{
			name:       "valid context",
			ctx:        context.Background(),
			shouldFail: false,
		},
		{
			name:       "cancelled context",
			ctx:        cancelledAzureContext(),
			shouldFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			select {
			case <-tt.ctx.Done():
				if !tt.shouldFail {
					t.Error("Context should not be done")
				}
			default:
				if tt.shouldFail {
					t.Error("Context should be done")
				}
			}
		})
	}
}

func cancelledAzureContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestAzureWriter_Close(t *testing.T) {
	closed := false

	closeFunc := func() error {
		if closed {
			return errors.New("already closed")
		}
		closed = true
		return nil
	}

	if err := closeFunc(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if !closed {
		t.Error("Should be closed")
	}

	if err := closeFunc(); err == nil {
		t.Error("Second close should fail")
	}
}

func TestAzureWriter_RecordBatch(t *testing.T) {
	records := []changefeed.EmittedRecord{emittedRecord(1)}

	if len(records) != 1 {
		t.Errorf("Record count = %d, want 1", len(records))
	}

	if len(records[0].Key) == 0 {
		t.Error("Key should not be empty")
	}
}

func TestAzureEmulator(t *testing.T) {
	// Azurite emulator default endpoint
	emulatorEndpoint := "http://127.0.0.1:10000/devstoreaccount1"
	emulatorAccountName := "devstoreaccount1"
	emulatorAccountKey := "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

	config := AzureConfig{
		AccountName:   emulatorAccountName,
		AccountKey:    emulatorAccountKey,
		ContainerName: "test-container",
		Endpoint:      emulatorEndpoint,
	}

	if err := validateAzureConfig(config); err != nil {
		t.Errorf("Emulator config should be valid: %v", err)
	}
}

func TestAzureConnectionString(t *testing.T) {
	connectionString := "DefaultEndpointsProtocol=https;AccountName=testaccount;AccountKey=dGVzdGtleQ==;EndpointSuffix=core.windows.net"

	requiredComponents := []string{"AccountName", "AccountKey"}
	for _, component := range requiredComponents {
		if !strings.Contains(connectionString, component) {
			t.Errorf("Connection string missing %v", component)
		}
	}
}
