package objectstore

import (
	"errors"
	"time"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/env"
)

// Config holds the attachment bucket settings.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	PublicBaseURL   string
	UploadExpiry    time.Duration
}

// LoadConfig reads S3_* variables. A config without bucket is disabled.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		PublicBaseURL:   env.GetEnv("S3_PUBLIC_BASE_URL", ""),
		UploadExpiry:    env.GetEnvDuration("S3_UPLOAD_EXPIRY", 15*time.Minute),
	}

	if cfg.IsEnabled() {
		if cfg.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when S3_BUCKET_NAME is set")
		}
		if cfg.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when S3_BUCKET_NAME is set")
		}
	}
	return cfg, nil
}

func (c *Config) IsEnabled() bool {
	return c.BucketName != ""
}
