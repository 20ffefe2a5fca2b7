package download

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"complib/internal/complib"
	"complib/internal/config"
)

// S3Fetcher downloads s3://bucket/key URLs with concurrent ranged GETs.
type S3Fetcher struct {
	downloader     *manager.Downloader
	bytesPerSecond int
}

var _ complib.Fetcher = (*S3Fetcher)(nil)

// NewS3Fetcher builds a client from cfg. Empty credentials fall back to the
// default AWS credential chain. A custom endpoint implies path-style addressing.
func NewS3Fetcher(ctx context.Context, cfg config.S3Config, bytesPerSecond int) (*S3Fetcher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Fetcher{
		downloader:     manager.NewDownloader(client),
		bytesPerSecond: bytesPerSecond,
	}, nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, src string, dst *os.File) (int64, error) {
	bucket, key, err := parseS3URL(src)
	if err != nil {
		return 0, err
	}
	n, err := f.downloader.Download(ctx, newThrottledWriterAt(ctx, dst, f.bytesPerSecond), &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return n, fmt.Errorf("downloading %s: %w", src, err)
	}
	return n, nil
}

func parseS3URL(src string) (bucket, key string, err error) {
	u, err := url.Parse(src)
	if err != nil {
		return "", "", fmt.Errorf("parsing s3 url: %w", err)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || u.Host == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 url %q: want s3://bucket/key", src)
	}
	return u.Host, key, nil
}
