package fs

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/ije/gox/log"
)

// S3 serves package sources out of an S3-compatible bucket, for resolution
// against a published npm tarball layout rather than a local checkout. It
// has no notion of symlinks: S3 objects are opaque blobs, so SymlinkMetadata
// always reports a non-symlink and ReadLink always fails.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
	logger *log.Logger
}

var _ FS = (*S3)(nil)

// S3Config configures the bucket a resolver reads package sources from.
// Region/AccountId fall back to the AWS_REGION/AWS_ACCOUNT_ID environment
// variables when empty, matching esm.sh's server/storage client setup.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccountId string
	// Logger, if set, receives a Warnf line for every S3 request that fails
	// with something other than "object not found".
	Logger *log.Logger
}

// NewS3 builds an S3-backed FS using the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_REGION")
	}
	if cfg.AccountId == "" {
		cfg.AccountId = os.Getenv("AWS_ACCOUNT_ID")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("fs: S3Config.Bucket is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.AccountId != "" {
			o.EndpointOptions.DisableHTTPS = false
		}
	})
	return &S3{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/"), logger: cfg.Logger}, nil
}

func (s *S3) warnf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Warnf(format, args...)
	}
}

func (s *S3) key(p string) string {
	p = strings.TrimPrefix(p, "/")
	if s.prefix == "" {
		return p
	}
	return s.prefix + "/" + p
}

func (s *S3) ReadFile(p string) ([]byte, error) {
	ctx := context.Background()
	downloader := manager.NewDownloader(s.client)
	buf := manager.NewWriteAtBuffer(nil)
	_, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotExist
		}
		s.warnf("fs: s3 GetObject %s/%s: %v", s.bucket, s.key(p), err)
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *S3) Metadata(p string) (Metadata, error) {
	ctx := context.Background()
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		if isS3NotFound(err) {
			// S3 has no real directories; a "directory" exists only as a
			// common key prefix, and no prefix probing is done here. A
			// directory path therefore reports ErrNotExist, so the
			// node_modules walk (which needs a package directory to
			// report IsDir) finds no package through this FS.
			return Metadata{}, ErrNotExist
		}
		s.warnf("fs: s3 HeadObject %s/%s: %v", s.bucket, s.key(p), err)
		return Metadata{}, err
	}
	var size int64
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	var modTime time.Time
	if out.LastModified != nil {
		modTime = *out.LastModified
	}
	return Metadata{IsFile: true, Size: size, ModTime: modTime}, nil
}

// SymlinkMetadata treats every object as a plain file; S3 keys cannot be
// symlinks.
func (s *S3) SymlinkMetadata(p string) (Metadata, error) {
	return s.Metadata(p)
}

func (s *S3) ReadLink(p string) (string, error) {
	return "", errors.New("fs: S3 objects are never symlinks")
}

// Canonicalize is the identity function: there is nothing to resolve.
func (s *S3) Canonicalize(p string) (string, error) {
	return p, nil
}

// Upload writes content to the bucket at p, for callers that populate a
// fixture bucket (e.g. integration tests against a local S3-compatible
// endpoint such as MinIO).
func (s *S3) Upload(ctx context.Context, p string, content []byte) error {
	uploader := manager.NewUploader(s.client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
		Body:   bytes.NewReader(content),
	})
	return err
}

func isS3NotFound(err error) bool {
	var nf *smithyhttp.ResponseError
	if errors.As(err, &nf) {
		return nf.HTTPStatusCode() == 404
	}
	var notFound interface{ ErrorCode() string }
	if errors.As(err, &notFound) {
		code := notFound.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}
