package replicate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ahmethakanbesel/nbp-datahub/internal/apperror"
	"github.com/ahmethakanbesel/nbp-datahub/internal/logging"
)

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 uploads objects to a bucket under a key prefix.
type S3 struct {
	uploader uploader
	bucket   string
	prefix   string
	logger   *slog.Logger
}

type Option func(*S3)

func WithLogger(l *slog.Logger) Option {
	return func(s *S3) { s.logger = l }
}

func withUploader(u uploader) Option {
	return func(s *S3) { s.uploader = u }
}

// New returns an S3 replicator, or Disabled when settings are incomplete.
func New(ctx context.Context, cfg Settings, opts ...Option) (Replicator, error) {
	if !cfg.Configured() {
		return Disabled{}, nil
	}
	return NewS3(ctx, cfg, opts...)
}

// NewS3 builds a client from static credentials. Endpoint, when set, points
// the client at an S3-compatible store using path-style addressing.
func NewS3(ctx context.Context, cfg Settings, opts ...Option) (*S3, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	s := &S3{bucket: cfg.Bucket, prefix: cfg.Prefix}
	for _, o := range opts {
		o(s)
	}
	s.logger = logging.OrDefault(s.logger)
	if s.prefix == "" {
		s.prefix = DefaultPrefix
	}

	if s.uploader == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
		s.uploader = manager.NewUploader(client)
	}
	return s, nil
}

// Key returns the object key for a file name.
func (s *S3) Key(name string) string {
	return s.prefix + name
}

func (s *S3) Put(ctx context.Context, obj Object) error {
	key := s.Key(obj.Name)
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "text/csv"
	}

	s.logger.Info("uploading artifact", "bucket", s.bucket, "key", key)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        obj.Body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return apperror.Wrap(apperror.Replication, fmt.Sprintf("upload s3://%s/%s", s.bucket, key), err)
	}
	s.logger.Info("uploaded artifact", "bucket", s.bucket, "key", key)
	return nil
}
