package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/creatives-backend/internal/platform/gcp"
	"github.com/yungbote/creatives-backend/internal/platform/logger"
	"github.com/yungbote/creatives-backend/internal/platform/mongodb"
	"github.com/yungbote/creatives-backend/internal/store"
)

var (
	newBucketServiceWithConfig = gcp.NewBucketServiceWithConfig
	newS3Store                 = store.NewS3
)

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidDriver       StorageProviderBootstrapErrorCode = "invalid_driver"
	StorageProviderBootstrapErrorInvalidMode         StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingBucket       StorageProviderBootstrapErrorCode = "missing_bucket"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Driver       StoreDriver
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "brief store bootstrap failed"
	}
	return fmt.Sprintf(
		"brief store bootstrap failed (code=%s driver=%q mode=%q emulator_host=%q): %v",
		e.Code,
		e.Driver,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveBlobStore opens the brief store selected by STORE_DRIVER. The
// returned close func releases the backing client and is never nil.
func resolveBlobStore(ctx context.Context, log *logger.Logger, cfg Config) (store.BlobStore, func(), error) {
	nop := func() {}
	log.Info("Selecting brief store", "driver", cfg.StoreDriver)

	switch cfg.StoreDriver {
	case StoreDriverMemory, "":
		return store.NewMemory(), nop, nil

	case StoreDriverGCS:
		bucket, err := resolveBucketService(ctx, log, cfg)
		if err != nil {
			return nil, nop, err
		}
		return store.NewGCS(bucket), func() {
			if err := bucket.Close(); err != nil {
				log.Warn("GCS client close failed", "error", err)
			}
		}, nil

	case StoreDriverMongo:
		client, err := mongodb.Connect(ctx, log, mongodb.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
		if err != nil {
			return nil, nop, bootstrapFailure(cfg, StorageProviderBootstrapErrorConnectFailed, err)
		}
		blobs := store.NewMongo(client.Database(cfg.MongoDatabase), cfg.MongoCollection)
		return blobs, func() { mongodb.Disconnect(log, client) }, nil

	case StoreDriverS3:
		blobs, err := newS3Store(store.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, nop, bootstrapFailure(cfg, StorageProviderBootstrapErrorConnectFailed, err)
		}
		return blobs, nop, nil

	default:
		err := bootstrapFailure(cfg, StorageProviderBootstrapErrorInvalidDriver, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver))
		log.Error("Brief store selection failed", "driver", cfg.StoreDriver, "error_code", err.Code, "error", err)
		return nil, nop, err
	}
}

func bootstrapFailure(cfg Config, code StorageProviderBootstrapErrorCode, cause error) *StorageProviderBootstrapError {
	return &StorageProviderBootstrapError{
		Code:         code,
		Driver:       cfg.StoreDriver,
		Mode:         cfg.ObjectStorageMode,
		EmulatorHost: cfg.StorageEmulatorHost,
		Cause:        cause,
	}
}

func resolveBucketService(ctx context.Context, log *logger.Logger, cfg Config) (gcp.BucketService, error) {
	storageCfg, err := gcp.ResolveObjectStorageConfig(cfg.ObjectStorageMode, cfg.GCSBucket, cfg.StorageEmulatorHost)
	if err != nil {
		classified := classifyStorageProviderBootstrapError(cfg, storageCfg, err)
		log.Error(
			"Object storage provider selection failed",
			"mode", cfg.ObjectStorageMode,
			"emulator_host", storageCfg.EmulatorHost,
			"error_code", storageProviderBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, classified
	}

	log.Info(
		"Selecting object storage provider",
		"mode", storageCfg.Mode,
		"mode_source", storageCfg.ModeSource(),
		"compatibility_fallback", storageCfg.CompatibilityFallback,
		"emulator_host", storageCfg.EmulatorHost,
		"bucket", storageCfg.Bucket,
	)

	bucket, err := newBucketServiceWithConfig(ctx, log, storageCfg)
	if err != nil {
		classified := classifyStorageProviderBootstrapError(cfg, storageCfg, err)
		log.Error(
			"Object storage provider bootstrap failed",
			"mode", storageCfg.Mode,
			"mode_source", storageCfg.ModeSource(),
			"emulator_host", storageCfg.EmulatorHost,
			"error_code", storageProviderBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, classified
	}
	return bucket, nil
}

func classifyStorageProviderBootstrapError(cfg Config, storageCfg gcp.ObjectStorageConfig, err error) error {
	out := &StorageProviderBootstrapError{
		Code:         StorageProviderBootstrapErrorConnectFailed,
		Driver:       cfg.StoreDriver,
		Mode:         string(storageCfg.Mode),
		EmulatorHost: storageCfg.EmulatorHost,
		Cause:        err,
	}
	if out.Mode == "" {
		out.Mode = cfg.ObjectStorageMode
	}

	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.ObjectStorageConfigErrorInvalidMode:
			out.Code = StorageProviderBootstrapErrorInvalidMode
		case gcp.ObjectStorageConfigErrorMissingBucket:
			out.Code = StorageProviderBootstrapErrorMissingBucket
		case gcp.ObjectStorageConfigErrorMissingEmulatorHost:
			out.Code = StorageProviderBootstrapErrorMissingEmulatorHost
		case gcp.ObjectStorageConfigErrorInvalidEmulatorHost:
			out.Code = StorageProviderBootstrapErrorInvalidEmulatorHost
		}
	}
	return out
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return StorageProviderBootstrapErrorConnectFailed
}
