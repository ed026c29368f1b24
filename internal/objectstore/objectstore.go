// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

// Package objectstore uploads backup artifacts to S3-compatible object
// storage. It is the only package that talks the storage wire protocol;
// everything else sees Put/Get on keys under a fixed prefix.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"golang.org/x/time/rate"

	"github.com/actorvault/actorvault/internal/logging"
	"github.com/actorvault/actorvault/internal/metrics"
)

// ErrObjectNotFound indicates a Get for a key that does not exist.
var ErrObjectNotFound = errors.New("object not found")

// UploadError wraps a failed upload with the key it targeted.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Config selects the bucket and credentials for a Client.
type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string

	// ForcePathStyle addresses the bucket in the URL path instead of
	// the hostname. Required by most S3-compatible stores.
	ForcePathStyle bool

	// UploadBytesPerSecond throttles upload bandwidth. Zero disables
	// the throttle.
	UploadBytesPerSecond int
}

// API is the subset of the S3 client the package uses. It exists so
// tests can substitute a fake.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client uploads and downloads objects in one bucket under one prefix.
type Client struct {
	api     API
	bucket  string
	prefix  string
	limiter *rate.Limiter
}

// New builds a Client from cfg. Static credentials are used when both
// key halves are present; otherwise the SDK's default chain applies.
func New(ctx context.Context, cfg Config) (*Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load object store config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewWithAPI(api, cfg), nil
}

// NewWithAPI builds a Client over an existing API implementation.
func NewWithAPI(api API, cfg Config) *Client {
	var limiter *rate.Limiter
	if cfg.UploadBytesPerSecond > 0 {
		burst := cfg.UploadBytesPerSecond
		if burst < 256*1024 {
			burst = 256 * 1024
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.UploadBytesPerSecond), burst)
	}

	return &Client{
		api:     api,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		limiter: limiter,
	}
}

// Put uploads the file at localPath to key.
func (c *Client) Put(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return &UploadError{Key: key, Err: err}
	}
	defer closeFile(f, localPath)

	info, err := f.Stat()
	if err != nil {
		return &UploadError{Key: key, Err: err}
	}

	return c.PutReader(ctx, key, f, info.Size())
}

// PutReader uploads size bytes from r to key.
func (c *Client) PutReader(ctx context.Context, key string, r io.Reader, size int64) error {
	body := r
	if c.limiter != nil {
		body = &throttledReader{ctx: ctx, r: r, limiter: c.limiter}
	}

	start := time.Now()
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(c.fullKey(key)),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return &UploadError{Key: key, Err: describeAPIError(err)}
	}

	metrics.UploadDuration.Observe(time.Since(start).Seconds())
	metrics.UploadBytes.Add(float64(size))
	return nil
}

// Get downloads key into localPath, creating parent directories.
func (c *Client) Get(ctx context.Context, key, localPath string) error {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.fullKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return fmt.Errorf("get %s: %w", key, describeAPIError(err))
	}
	defer closeBody(out.Body, key)

	if err := os.MkdirAll(path.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	defer closeFile(f, localPath)

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return nil
}

// fullKey joins the configured prefix with key.
func (c *Client) fullKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	if c.prefix == "" {
		return key
	}
	return c.prefix + "/" + key
}

// describeAPIError surfaces the remote error code when the failure came
// from the service rather than the transport.
func describeAPIError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", apiErr.ErrorCode(), err)
	}
	return err
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return code == "NoSuchKey" || code == "NotFound"
}

// throttledReader paces reads through a rate limiter so uploads stay
// under the configured bandwidth.
type throttledReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (t *throttledReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.wait(n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func (t *throttledReader) wait(n int) error {
	burst := t.limiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := t.limiter.WaitN(t.ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

func closeFile(f *os.File, path string) {
	if err := f.Close(); err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Failed to close file")
	}
}

func closeBody(body io.ReadCloser, key string) {
	if err := body.Close(); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Failed to close object body")
	}
}
