package assets

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/vidtube/internal/filex"
	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

type S3Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
	// PublicBaseURL is the prefix clients use to fetch objects. Defaults to
	// BaseEndpoint.
	PublicBaseURL string
	// KeyPrefix is the top-level folder for stored objects, "images" if empty.
	KeyPrefix string
}

// S3Uploader stores images in an S3-compatible bucket (MinIO in development).
type S3Uploader struct {
	cfg    S3Config
	client *s3.Client
	logger logging.Logger
	now    func() time.Time
}

func NewS3Uploader(ctx context.Context, cfg S3Config, logger logging.Logger) (*S3Uploader, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config error: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "images"
	}

	return &S3Uploader{
		cfg:    cfg,
		client: client,
		logger: logger.With("module", "s3_uploader"),
		now:    time.Now,
	}, nil
}

func (u *S3Uploader) storageKey(ext string) string {
	d := u.now()
	return fmt.Sprintf("%s/%d/%d/%d/%v%s", u.cfg.KeyPrefix, d.Year(), d.Month(), d.Day(), uuid.New(), strings.ToLower(ext))
}

func (u *S3Uploader) publicURL(key string) (string, error) {
	base := u.cfg.PublicBaseURL
	if base == "" {
		base = u.cfg.BaseEndpoint
	}
	return url.JoinPath(base, u.cfg.Bucket, key)
}

func (u *S3Uploader) Upload(ctx context.Context, localPath string) (*UploadResult, error) {
	if localPath == "" {
		return nil, ErrNoFile
	}

	defer func() {
		if err := filex.RemoveIfExists(localPath); err != nil {
			u.logger.Warn(ctx, "failed to remove spooled file", "path", localPath, "error", err)
		}
	}()

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	ext := filepath.Ext(localPath)
	key := u.storageKey(ext)
	bucket := u.cfg.Bucket

	in := &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   f,
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := putObject(u.client, ctx, in); err != nil {
		return nil, fmt.Errorf("s3 put object error: %w", err)
	}

	link, err := u.publicURL(key)
	if err != nil {
		return nil, fmt.Errorf("public url: %w", err)
	}

	u.logger.Debug(ctx, "object uploaded", "key", key)

	return &UploadResult{URL: link, Key: key}, nil
}
