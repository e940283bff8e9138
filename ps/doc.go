// Package ps provides the persistence layer for MiniDB.
//
// Every table is stored as a single JSON document holding its schema, its
// live rows and the next row identifier. Backends implement Storage and must
// replace a document atomically.
//
// # Memory Storage
//
// For testing or ephemeral databases:
//
//	storage := ps.NewMemoryStorage()
//
// # File Storage
//
// One <table>.json file per table. Writes go to a temp file that is synced
// and renamed over the previous version:
//
//	storage, err := ps.OpenFileStorage("/path/to/data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Git Storage
//
// Each persist is a commit, so the history of every table is kept:
//
//	storage, err := ps.OpenGitStorage("/path/to/repo", ps.DefaultIdentity)
//	history, err := storage.History("users")
//
// # S3 Storage
//
//	storage, err := ps.Open(ctx, ps.Options{
//	    Backend: ps.S3Backend,
//	    S3:      ps.S3Options{Bucket: "minidb", Prefix: "prod", Region: "eu-west-1"},
//	})
package ps
