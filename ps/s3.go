package ps

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/nickyhof/MiniDB/core"
)

// S3Client is the subset of *s3.Client used by S3Storage.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

const defaultS3Timeout = 30 * time.Second

// S3Storage stores each table document as the object <prefix><table>.json.
// A PutObject replaces the whole object, so readers never observe a partial
// document.
type S3Storage struct {
	client  S3Client
	bucket  string
	prefix  string
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

func NewS3Storage(client S3Client, bucket, prefix string) *S3Storage {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Storage{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		timeout: defaultS3Timeout,
	}
}

// WithTimeout bounds every request made by the storage.
func (s *S3Storage) WithTimeout(timeout time.Duration) *S3Storage {
	if timeout > 0 {
		s.timeout = timeout
	}
	return s
}

func (s *S3Storage) key(table string) string {
	return s.prefix + documentName(table)
}

func (s *S3Storage) checkOpen(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.WrapStorage(ErrClosed, "%s", op)
	}
	return nil
}

func (s *S3Storage) Load(name string) (Document, bool, error) {
	if err := checkTableName(name); err != nil {
		return Document{}, false, err
	}
	if err := s.checkOpen("load " + name); err != nil {
		return Document{}, false, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return Document{}, false, nil
		}
		return Document{}, false, core.WrapStorage(err, "load %s", name)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Document{}, false, core.WrapStorage(err, "load %s", name)
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return Document{}, false, core.WrapStorage(err, "load %s", name)
	}
	return doc, true, nil
}

func (s *S3Storage) Persist(name string, doc Document) error {
	if err := checkTableName(name); err != nil {
		return err
	}
	if err := s.checkOpen("persist " + name); err != nil {
		return err
	}
	data, err := EncodeDocument(doc)
	if err != nil {
		return core.WrapStorage(err, "persist %s", name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return core.WrapStorage(err, "persist %s", name)
	}
	return nil
}

func (s *S3Storage) List() ([]string, error) {
	if err := s.checkOpen("list tables"); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, core.WrapStorage(err, "list tables")
		}
		for _, object := range page.Contents {
			file := strings.TrimPrefix(aws.ToString(object.Key), s.prefix)
			if strings.Contains(file, "/") {
				continue
			}
			if name, ok := tableName(file); ok {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *S3Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}
