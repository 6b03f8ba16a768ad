package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfgLib "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectSink stores an encoded archive object under a key.
type ObjectSink interface {
	Put(ctx context.Context, key string, body []byte) error
}

// DirSink writes archive objects as files under a local directory.
// Keys may contain "/" separators; intermediate directories are created.
type DirSink struct {
	root string
}

func NewDirSink(root string) *DirSink {
	return &DirSink{root: root}
}

func (d *DirSink) Put(_ context.Context, key string, body []byte) error {
	path := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}

// S3Sink uploads archive objects to an S3 bucket. SDK-level retries are
// disabled; retrying with backoff is handled here so each attempt gets
// its own timeout and shutdown stays responsive.
type S3Sink struct {
	client  *s3.Client
	bucket  string
	retries int
	timeout time.Duration
}

func NewS3Sink(ctx context.Context, bucket, region string) (*S3Sink, error) {
	awsCfg, err := awsCfgLib.LoadDefaultConfig(ctx, awsCfgLib.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 0
	})
	return &S3Sink{
		client:  client,
		bucket:  bucket,
		retries: 3,
		timeout: 5 * time.Second,
	}, nil
}

func (u *S3Sink) Put(ctx context.Context, key string, body []byte) error {
	var lastErr error
	backoff := 200 * time.Millisecond

	for attempt := 1; attempt <= u.retries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := u.putObject(ctx, key, body); err == nil {
			return nil
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 2*time.Second {
				backoff = 2 * time.Second
			}
		}
	}
	return lastErr
}

func (u *S3Sink) putObject(ctx context.Context, key string, body []byte) error {
	ctx2, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	_, err := u.client.PutObject(ctx2, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	return err
}
