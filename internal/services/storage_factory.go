package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"ticketer/internal/config"
)

// NewStorageService returns S3 storage with a local fallback when a bucket
// is configured and reachable, local storage alone otherwise.
func NewStorageService(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) StorageService {
	local := NewLocalStorageService(cfg.LocalPath, cfg.LocalURL, logger)

	if cfg.S3Bucket == "" {
		logger.Info("Storage: no S3 bucket configured, using local storage")
		return local
	}

	s3Service, err := NewS3StorageService(ctx, S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		PublicURL:       cfg.S3PublicURL,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("Storage: S3 unavailable, using local storage only")
		return local
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s3Service.HealthCheck(checkCtx); err != nil {
		logger.WithError(err).Warn("Storage: S3 health check failed, using local storage only")
		return local
	}

	logger.WithField("bucket", cfg.S3Bucket).Info("Storage: S3 initialized with local fallback")
	return NewStorageServiceWithFallback(s3Service, local, logger)
}
