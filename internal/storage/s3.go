package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the slice of the S3 client the provider uses. Kept narrow so
// tests can substitute a fake.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Options configures the S3 backend
type S3Options struct {
	Region         string
	Endpoint       string
	BucketPrefix   string
	ForcePathStyle bool
	PresignExpiry  time.Duration
	CacheDir       string
}

// S3Provider stores objects in S3-compatible buckets, one real bucket per
// logical bucket (optionally prefixed).
type S3Provider struct {
	client        s3API
	presigner     s3Presigner
	bucketPrefix  string
	presignExpiry time.Duration
	cacheDir      string
	logger        *slog.Logger
}

// NewS3Provider builds a provider from the ambient AWS credential chain
func NewS3Provider(ctx context.Context, opts S3Options, logger *slog.Logger) (*S3Provider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	return newS3Provider(client, s3.NewPresignClient(client), opts, logger), nil
}

func newS3Provider(client s3API, presigner s3Presigner, opts S3Options, logger *slog.Logger) *S3Provider {
	presignExpiry := opts.PresignExpiry
	if presignExpiry <= 0 {
		presignExpiry = time.Hour
	}

	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "photoflow-cache")
	}

	return &S3Provider{
		client:        client,
		presigner:     presigner,
		bucketPrefix:  opts.BucketPrefix,
		presignExpiry: presignExpiry,
		cacheDir:      cacheDir,
		logger:        logger,
	}
}

func (p *S3Provider) Remote() bool {
	return true
}

// bucketName maps a logical bucket to its real S3 bucket name
func (p *S3Provider) bucketName(bucket string) string {
	if p.bucketPrefix == "" {
		return bucket
	}
	return p.bucketPrefix + "-" + bucket
}

func (p *S3Provider) Store(ctx context.Context, r io.Reader, obj Object, contentType string) (*Stored, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucketName(obj.Bucket)),
		Key:    aws.String(obj.Path),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("S3 PutObject %s: %w", obj.Key(), err)
	}

	p.logger.Debug("Stored object in S3",
		slog.String("bucket", obj.Bucket),
		slog.String("path", obj.Path),
	)

	url, err := p.SignedURL(ctx, obj, p.presignExpiry)
	if err != nil {
		// The object is stored; a presign failure only loses the URL.
		p.logger.Warn("Failed to presign stored object",
			slog.String("bucket", obj.Bucket),
			slog.String("path", obj.Path),
			slog.String("error", err.Error()),
		)
		url = ""
	}

	return &Stored{
		Bucket:    obj.Bucket,
		Path:      obj.Path,
		FullPath:  obj.Key(),
		PublicURL: url,
	}, nil
}

func (p *S3Provider) StoreFile(ctx context.Context, localPath string, obj Object, contentType string) (*Stored, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()

	return p.Store(ctx, f, obj, contentType)
}

// Retrieve downloads the object into the local cache directory and returns
// the cached file path.
func (p *S3Provider) Retrieve(ctx context.Context, obj Object) (string, error) {
	result, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucketName(obj.Bucket)),
		Key:    aws.String(obj.Path),
	})
	if err != nil {
		if isS3NotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrObjectNotFound, obj.Key())
		}
		return "", fmt.Errorf("S3 GetObject %s: %w", obj.Key(), err)
	}
	defer result.Body.Close()

	localPath := filepath.Join(p.cacheDir, obj.Bucket, filepath.FromSlash(obj.Path))
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, result.Body); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("failed to download object %s: %w", obj.Key(), err)
	}

	return localPath, nil
}

func (p *S3Provider) Remove(ctx context.Context, obj Object) (bool, error) {
	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucketName(obj.Bucket)),
		Key:    aws.String(obj.Path),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("S3 HeadObject %s: %w", obj.Key(), err)
	}

	if _, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucketName(obj.Bucket)),
		Key:    aws.String(obj.Path),
	}); err != nil {
		return false, fmt.Errorf("S3 DeleteObject %s: %w", obj.Key(), err)
	}

	return true, nil
}

func (p *S3Provider) SignedURL(ctx context.Context, obj Object, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = p.presignExpiry
	}

	result, err := p.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucketName(obj.Bucket)),
		Key:    aws.String(obj.Path),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("S3 presign %s: %w", obj.Key(), err)
	}

	return result.URL, nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
