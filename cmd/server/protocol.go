// Package main provides an HTTP SQL server for MiniDB.
package main

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/nickyhof/MiniDB/core"
	"github.com/nickyhof/MiniDB/db"
	"github.com/zeebo/blake3"
)

// maxRequestSize bounds request bodies and WebSocket messages.
const maxRequestSize = 1 << 20

// Request represents a SQL statement from the client.
type Request struct {
	Query string `json:"query"`
}

// TablesResponse lists the tables of the database.
type TablesResponse struct {
	Tables []string `json:"tables"`
}

// ErrorResponse reports a failure outside statement execution.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DecodeRequest parses a JSON request from a byte slice.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, err
	}
	if strings.TrimSpace(req.Query) == "" {
		return Request{}, errors.New("query must not be empty")
	}
	return req, nil
}

// statusFor maps an outcome to the HTTP status of its response.
func statusFor(outcome db.Outcome) int {
	if !outcome.Failed() {
		return http.StatusOK
	}

	switch outcome.ErrorKind {
	case core.SyntaxError, core.SchemaError, core.TypeMismatch:
		return http.StatusBadRequest
	case core.ConstraintViolation:
		return http.StatusConflict
	case core.StorageError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// etag is a strong validator over a response body.
func etag(body []byte) string {
	sum := blake3.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// writeJSON writes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
