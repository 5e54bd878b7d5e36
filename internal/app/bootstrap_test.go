package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportportal.io/portal/internal/config"
	"supportportal.io/portal/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

const testEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func unreachableDB() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     "localhost",
		Port:     65432,
		User:     "test",
		Password: "test",
		Database: "test",
		SSLMode:  "disable",
		MaxConns: 5,
		MinConns: 1,
	}
}

func TestBootstrap_Failures(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr string
	}{
		{name: "bad encryption key", key: "not-hex", wantErr: "encryption key"},
		{name: "short encryption key", key: "0011", wantErr: "encryption key"},
		{name: "database unreachable", key: testEncryptionKey, wantErr: "init database"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Database: unreachableDB(),
				Security: config.SecurityConfig{EncryptionKey: tt.key},
				Worker:   config.WorkerConfig{GeneralPoolSize: 2, IntegrationPoolSize: 1},
			}
			application, err := Bootstrap(context.Background(), cfg)
			require.Error(t, err)
			assert.Nil(t, application)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}

func TestApplication_StartWithoutQueue(t *testing.T) {
	assert.NoError(t, (&Application{}).Start(context.Background()))
}

func TestApplication_ShutdownEmpty(t *testing.T) {
	assert.NotPanics(t, func() {
		(&Application{}).Shutdown(context.Background())
	})
}
