package ps

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nickyhof/MiniDB/core"
)

type Backend string

const (
	FileBackend   Backend = "file"
	GitBackend    Backend = "git"
	MemoryBackend Backend = "memory"
	S3Backend     Backend = "s3"
)

type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // custom endpoint, e.g. MinIO
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	Timeout         time.Duration
}

// Options selects and configures a storage backend.
type Options struct {
	Backend  Backend
	Dir      string // data directory for the file and git backends
	Identity Identity
	S3       S3Options
}

// Open builds the storage backend described by opts.
func Open(ctx context.Context, opts Options) (Storage, error) {
	switch opts.Backend {
	case FileBackend, "":
		if opts.Dir == "" {
			return nil, fmt.Errorf("file backend requires a data directory")
		}
		return OpenFileStorage(opts.Dir)
	case GitBackend:
		identity := opts.Identity
		if identity.Name == "" {
			identity = DefaultIdentity
		}
		if opts.Dir == "" {
			return NewMemoryGitStorage(identity)
		}
		return OpenGitStorage(opts.Dir, identity)
	case MemoryBackend:
		return NewMemoryStorage(), nil
	case S3Backend:
		return openS3(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

func openS3(ctx context.Context, opts S3Options) (*S3Storage, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 backend requires a bucket")
	}

	client, err := NewS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewS3Storage(client, opts.Bucket, opts.Prefix).WithTimeout(opts.Timeout), nil
}

// NewS3Client builds an S3 client from the default AWS configuration chain,
// overridden by whatever opts sets. Bucket and Prefix are ignored.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, core.WrapStorage(err, "load AWS configuration")
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	}), nil
}
