// Package config holds the settings shared by the MiniDB binaries. Fields are
// bound to command-line flags and MINIDB_* environment variables through kong
// struct tags; embed Config in a kong CLI struct to pick them up.
package config

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nickyhof/MiniDB/internal/logging"
	"github.com/nickyhof/MiniDB/ps"
)

// Storage selects the persistence backend.
type Storage struct {
	Backend string `name:"backend" help:"Storage backend (${enum})" enum:"file,git,memory,s3" default:"memory" env:"MINIDB_BACKEND"`
	DataDir string `name:"data-dir" help:"Data directory for the file and git backends" type:"path" env:"MINIDB_DATA_DIR"`

	AuthorName  string `name:"author-name" help:"Commit author name for the git backend" default:"MiniDB" env:"MINIDB_AUTHOR_NAME"`
	AuthorEmail string `name:"author-email" help:"Commit author email for the git backend" default:"minidb@localhost" env:"MINIDB_AUTHOR_EMAIL"`

	S3 S3 `embed:"" prefix:"s3-"`
}

// S3 configures the s3 backend. Unset fields fall back to the default AWS
// configuration chain.
type S3 struct {
	Bucket          string        `name:"bucket" help:"S3 bucket holding the table documents" env:"MINIDB_S3_BUCKET"`
	Prefix          string        `name:"prefix" help:"Key prefix inside the bucket" env:"MINIDB_S3_PREFIX"`
	Region          string        `name:"region" help:"AWS region" env:"MINIDB_S3_REGION"`
	Endpoint        string        `name:"endpoint" help:"Custom S3 endpoint, e.g. MinIO" env:"MINIDB_S3_ENDPOINT"`
	AccessKeyID     string        `name:"access-key-id" help:"Static access key" env:"MINIDB_S3_ACCESS_KEY_ID"`
	SecretAccessKey string        `name:"secret-access-key" help:"Static secret key" env:"MINIDB_S3_SECRET_ACCESS_KEY"`
	PathStyle       bool          `name:"path-style" help:"Use path-style bucket addressing" env:"MINIDB_S3_PATH_STYLE"`
	Timeout         time.Duration `name:"timeout" help:"Timeout of a single S3 request" default:"30s" env:"MINIDB_S3_TIMEOUT"`
}

// Log configures the process-wide logger.
type Log struct {
	Level  string `name:"log-level" help:"Log level (${enum})" enum:"debug,info,warn,warning,error" default:"info" env:"MINIDB_LOG_LEVEL"`
	Format string `name:"log-format" help:"Log format (${enum})" enum:"text,json" default:"text" env:"MINIDB_LOG_FORMAT"`
}

// Server configures cmd/server.
type Server struct {
	Listen       string        `name:"listen" help:"HTTP listen address" default:":8080" env:"MINIDB_LISTEN"`
	ReadTimeout  time.Duration `name:"read-timeout" help:"HTTP read timeout" default:"15s" env:"MINIDB_READ_TIMEOUT"`
	WriteTimeout time.Duration `name:"write-timeout" help:"HTTP write timeout" default:"15s" env:"MINIDB_WRITE_TIMEOUT"`

	JWTSecret   string `name:"jwt-secret" help:"HS256 secret; enables bearer auth on /api and /ws" env:"MINIDB_JWT_SECRET"`
	JWTIssuer   string `name:"jwt-issuer" help:"Required token issuer" env:"MINIDB_JWT_ISSUER"`
	JWTAudience string `name:"jwt-audience" help:"Required token audience" env:"MINIDB_JWT_AUDIENCE"`
}

// Config is the part shared by every binary.
type Config struct {
	Storage Storage `embed:""`
	Log     Log     `embed:""`
}

// Validate checks combinations kong cannot express in tags.
func (c *Config) Validate() error {
	switch ps.Backend(c.Storage.Backend) {
	case ps.FileBackend:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("--data-dir is required for the file backend")
		}
	case ps.S3Backend:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("--s3-bucket is required for the s3 backend")
		}
		if (c.Storage.S3.AccessKeyID == "") != (c.Storage.S3.SecretAccessKey == "") {
			return fmt.Errorf("--s3-access-key-id and --s3-secret-access-key must be set together")
		}
	case ps.GitBackend, ps.MemoryBackend:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return err
	}
	return nil
}

// StorageOptions maps the storage settings onto ps.Options.
func (c *Config) StorageOptions() ps.Options {
	return ps.Options{
		Backend: ps.Backend(c.Storage.Backend),
		Dir:     c.Storage.DataDir,
		Identity: ps.Identity{
			Name:  c.Storage.AuthorName,
			Email: c.Storage.AuthorEmail,
		},
		S3: ps.S3Options{
			Bucket:          c.Storage.S3.Bucket,
			Prefix:          c.Storage.S3.Prefix,
			Region:          c.Storage.S3.Region,
			Endpoint:        c.Storage.S3.Endpoint,
			AccessKeyID:     c.Storage.S3.AccessKeyID,
			SecretAccessKey: c.Storage.S3.SecretAccessKey,
			UsePathStyle:    c.Storage.S3.PathStyle,
			Timeout:         c.Storage.S3.Timeout,
		},
	}
}

// OpenStorage builds the configured backend.
func (c *Config) OpenStorage(ctx context.Context) (ps.Storage, error) {
	return ps.Open(ctx, c.StorageOptions())
}

// SetupLogging reinitializes the default logger from the log settings.
func (c *Config) SetupLogging(w io.Writer) error {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(c.Log.Format)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format, w)
	return nil
}

// Validate checks the server settings.
func (s *Server) Validate() error {
	if s.Listen == "" {
		return fmt.Errorf("--listen must not be empty")
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if s.JWTSecret == "" && (s.JWTIssuer != "" || s.JWTAudience != "") {
		return fmt.Errorf("--jwt-issuer and --jwt-audience require --jwt-secret")
	}
	return nil
}

// AuthEnabled reports whether bearer tokens are required.
func (s *Server) AuthEnabled() bool {
	return s.JWTSecret != ""
}
