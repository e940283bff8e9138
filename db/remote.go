// Script I/O for local paths, S3 objects and HTTP URLs.
package db

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nickyhof/MiniDB/core"
	"github.com/nickyhof/MiniDB/ps"
)

// urlScheme represents the scheme of a URL
type urlScheme string

const (
	schemeFile  urlScheme = "file"
	schemeS3    urlScheme = "s3"
	schemeHTTP  urlScheme = "http"
	schemeHTTPS urlScheme = "https"
	schemeLocal urlScheme = "local" // no scheme, local path
)

// detectScheme detects the URL scheme from a path string
func detectScheme(path string) urlScheme {
	lowerPath := strings.ToLower(path)
	switch {
	case strings.HasPrefix(lowerPath, "s3://"):
		return schemeS3
	case strings.HasPrefix(lowerPath, "https://"):
		return schemeHTTPS
	case strings.HasPrefix(lowerPath, "http://"):
		return schemeHTTP
	case strings.HasPrefix(lowerPath, "file://"):
		return schemeFile
	default:
		return schemeLocal
	}
}

// OpenScript opens a statement script at a local path, file://, http(s)://
// or s3://bucket/key location.
func OpenScript(ctx context.Context, location string, opts ps.S3Options) (io.ReadCloser, error) {
	switch scheme := detectScheme(location); scheme {
	case schemeLocal, schemeFile:
		return osOpen(strings.TrimPrefix(location, "file://"))
	case schemeHTTP, schemeHTTPS:
		return openHTTPReader(ctx, location)
	case schemeS3:
		return openS3Reader(ctx, location, opts)
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s", location)
	}
}

// CreateScript opens a script destination for writing. HTTP locations are
// read-only.
func CreateScript(ctx context.Context, location string, opts ps.S3Options) (io.WriteCloser, error) {
	switch scheme := detectScheme(location); scheme {
	case schemeLocal, schemeFile:
		return osCreate(strings.TrimPrefix(location, "file://"))
	case schemeHTTP, schemeHTTPS:
		return nil, fmt.Errorf("HTTP/HTTPS does not support writing")
	case schemeS3:
		return openS3Writer(ctx, location, opts)
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s", location)
	}
}

var httpClient = &http.Client{Timeout: 5 * time.Minute}

func openHTTPReader(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request returned status %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// parseS3URL parses s3://bucket/key into bucket and key parts
func parseS3URL(url string) (bucket, key string, err error) {
	path := url[len("s3://"):]
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid S3 URL: %s", url)
	}
	return parts[0], parts[1], nil
}

// scriptS3Client is the part of the S3 API script I/O needs.
type scriptS3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// newS3Client is swapped in tests
var newS3Client = func(ctx context.Context, opts ps.S3Options) (scriptS3Client, error) {
	client, err := ps.NewS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func openS3Reader(ctx context.Context, url string, opts ps.S3Options) (io.ReadCloser, error) {
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return nil, err
	}

	client, err := newS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get S3 object: %w", err)
	}

	return resp.Body, nil
}

// s3Writer buffers a script and uploads it on Close.
type s3Writer struct {
	ctx    context.Context
	client scriptS3Client
	bucket string
	key    string
	buffer bytes.Buffer
	closed bool
}

func (w *s3Writer) Write(p []byte) (n int, err error) {
	if w.closed {
		return 0, fmt.Errorf("writer is closed")
	}
	return w.buffer.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	_, err := w.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.key),
		Body:        bytes.NewReader(w.buffer.Bytes()),
		ContentType: aws.String("application/sql"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	return nil
}

func openS3Writer(ctx context.Context, url string, opts ps.S3Options) (io.WriteCloser, error) {
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return nil, err
	}

	client, err := newS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &s3Writer{
		ctx:    ctx,
		client: client,
		bucket: bucket,
		key:    key,
	}, nil
}

// osOpen wraps os.Open - used to allow the function to be swapped in tests
var osOpen = func(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// osCreate wraps os.Create - used to allow the function to be swapped in tests
var osCreate = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// Import runs the script at location. Statements run in order until the
// first failing one; a script that cannot be read is a StorageError.
func (engine *Engine) Import(ctx context.Context, location string, opts ps.S3Options) ([]Outcome, error) {
	reader, err := OpenScript(ctx, location, opts)
	if err != nil {
		return nil, core.WrapStorage(err, "open script %s", location)
	}
	defer reader.Close()

	script, err := io.ReadAll(reader)
	if err != nil {
		return nil, core.WrapStorage(err, "read script %s", location)
	}

	return engine.RunScript(string(script)), nil
}

// Export writes a script recreating every table to location.
func (engine *Engine) Export(ctx context.Context, location string, opts ps.S3Options) (err error) {
	writer, err := CreateScript(ctx, location, opts)
	if err != nil {
		return core.WrapStorage(err, "create script %s", location)
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = core.WrapStorage(closeErr, "write script %s", location)
		}
	}()

	if err := engine.Dump(writer); err != nil {
		return core.WrapStorage(err, "write script %s", location)
	}
	return nil
}

// Dump writes one CREATE TABLE statement per table followed by an INSERT per
// row, in insertion order. Running the output against an empty database
// recreates the same tables and rows.
func (engine *Engine) Dump(w io.Writer) error {
	for _, name := range engine.catalog.Names() {
		table, err := engine.catalog.Lookup(name)
		if err != nil {
			return err
		}
		schema := table.Schema()
		if _, err := fmt.Fprintf(w, "%s;\n", SchemaString(schema)); err != nil {
			return err
		}

		selection, err := table.Select(nil, nil)
		if err != nil {
			return err
		}
		columns := strings.Join(selection.Columns, ", ")
		for _, row := range selection.Rows {
			values := make([]string, len(row.Values))
			for i, value := range row.Values {
				values[i] = value.SQL()
			}
			if _, err := fmt.Fprintf(w, "INSERT INTO %s (%s) VALUES (%s);\n", name, columns, strings.Join(values, ", ")); err != nil {
				return err
			}
		}
	}
	return nil
}
