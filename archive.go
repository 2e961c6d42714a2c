package sensorlog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveConfig configures the optional S3 log mirror.
type ArchiveConfig struct {
	// Enabled turns on periodic archiving
	Enabled bool `yaml:"enabled"`

	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // For S3-compatible services (MinIO, etc.)
	// AccessKeyID for authentication. Prefer using IAM roles, instance
	// profiles, or environment variables (AWS_ACCESS_KEY_ID,
	// AWS_SECRET_ACCESS_KEY) instead of setting these directly.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`         // Key prefix for all objects
	UsePathStyle    bool   `yaml:"use_path_style"` // Use path-style addressing

	// Interval between archive passes. Default: 1 hour.
	Interval Duration `yaml:"interval"`

	// MaxRetries is the retry budget per upload. Default: 3.
	MaxRetries int `yaml:"max_retries"`
}

// objectPutter is the slice of the S3 client the archiver uses; tests
// substitute a fake.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver periodically mirrors the cataloged log files to S3. It only ever
// reads the logs; the writer process still owns them. Each pass uploads a
// point-in-time copy of each file under prefix/filename.
type Archiver struct {
	client  objectPutter
	config  ArchiveConfig
	dir     string
	catalog Catalog
	logger  *slog.Logger
}

// NewArchiver builds an archiver from configuration.
func NewArchiver(cfg ArchiveConfig, dir string, catalog Catalog, logger *slog.Logger) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = Duration(time.Hour)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return &Archiver{
		client:  s3.NewFromConfig(awsCfg, s3Opts...),
		config:  cfg,
		dir:     dir,
		catalog: catalog,
		logger:  logger,
	}, nil
}

// Run archives on every tick until the context is canceled.
func (a *Archiver) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(a.config.Interval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.ArchiveAll(ctx)
		}
	}
}

// ArchiveAll uploads a copy of every cataloged log file. Failures are
// logged per sensor and do not stop the pass.
func (a *Archiver) ArchiveAll(ctx context.Context) {
	for _, id := range a.catalog.IDs() {
		sensor := a.catalog[id]
		if err := a.archiveFile(ctx, sensor); err != nil {
			a.logger.Error("archive failed", "sensor", id, "file", sensor.File, "error", err)
		}
	}
}

func (a *Archiver) archiveFile(ctx context.Context, sensor Sensor) error {
	path := filepath.Join(a.dir, sensor.File)
	key := a.config.Prefix + sensor.File

	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 0; attempt < a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			lastErr = err
			continue
		}

		_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(a.config.Bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		_ = f.Close()
		if err == nil {
			a.logger.Info("archived log", "sensor", sensor.ID, "key", key)
			return nil
		}
		lastErr = fmt.Errorf("S3 put object failed: %w", err)
	}
	return lastErr
}
