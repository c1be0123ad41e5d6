package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/confkit-labs/confkit-go/internal/platform/env"
)

type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	UseSSL        bool
	BucketArchive string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("CONFKIT_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:      env.String("CONFKIT_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:     env.String("CONFKIT_MINIO_ACCESS_KEY", "confkit"),
		SecretKey:     env.String("CONFKIT_MINIO_SECRET_KEY", "confkitminio"),
		Region:        env.String("CONFKIT_MINIO_REGION", "us-east-1"),
		UseSSL:        useSSL,
		BucketArchive: env.String("CONFKIT_MINIO_BUCKET_ARCHIVE", "config-audit-archive"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.BucketArchive) == "" {
		return errors.New("archive bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
