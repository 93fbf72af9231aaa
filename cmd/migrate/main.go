package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"ticketer/internal/app"
	"ticketer/internal/config"
	"ticketer/internal/logging"
	"ticketer/internal/services"
)

func main() {
	var (
		statusFlag = flag.Bool("status", false, "Show migration status (SQL backends)")
		upFlag     = flag.Bool("up", false, "Run pending migrations or create DynamoDB tables")
		bucketFlag = flag.Bool("create-bucket", false, "Create the configured S3 bucket")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.IsDevelopment())
	ctx := context.Background()

	if !*statusFlag && !*upFlag && !*bucketFlag {
		fmt.Println("Usage:")
		fmt.Println("  migrate --status          # Show migration status")
		fmt.Println("  migrate --up              # Run pending migrations")
		fmt.Println("  migrate --create-bucket   # Create the S3 bucket for QR images")
		os.Exit(1)
	}

	if *bucketFlag {
		s3Service, err := services.NewS3StorageService(ctx, services.S3Config{
			Bucket:          cfg.Storage.S3Bucket,
			Region:          cfg.Storage.S3Region,
			Endpoint:        cfg.Storage.S3Endpoint,
			PublicURL:       cfg.Storage.S3PublicURL,
			AccessKeyID:     cfg.Storage.S3AccessKeyID,
			SecretAccessKey: cfg.Storage.S3SecretAccessKey,
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize S3")
		}
		if err := s3Service.CreateBucket(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to create bucket")
		}
		fmt.Printf("Bucket %s is ready\n", cfg.Storage.S3Bucket)
	}

	if !*statusFlag && !*upFlag {
		return
	}

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to store")
	}
	defer stores.Close()

	if *statusFlag {
		if stores.SQL == nil {
			fmt.Println("DynamoDB backend has no migrations; use --up to create tables")
		} else {
			status, err := stores.SQL.GetMigrationStatus()
			if err != nil {
				logger.WithError(err).Fatal("Failed to get migration status")
			}
			fmt.Println("Migration Status:")
			for _, m := range status {
				state := "pending"
				if m.Applied {
					state = "applied"
				}
				fmt.Printf("  %03d_%s  %s\n", m.Version, m.Name, state)
			}
		}
	}

	if *upFlag {
		if err := stores.Prepare(ctx, cfg); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
		fmt.Println("All migrations completed successfully!")
	}
}
