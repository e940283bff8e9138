package logging

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// captureLogOutput points the global logger at a buffer while f runs.
func captureLogOutput(level Level, format Format, f func()) string {
	var buf bytes.Buffer
	InitLogger(level, format, &buf)
	defer InitLogger(LevelInfo, FormatText, os.Stderr)

	f()
	return buf.String()
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if (err != nil) != test.wantErr {
				t.Fatalf("Unexpected error state: %v", err)
			}
			if level != test.expected {
				t.Errorf("Expected %s, got %s", test.expected, level)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("Expected json format, got %v %v", f, err)
	}
	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("Expected text format, got %v %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("Expected error for xml")
	}
}

func TestInitLoggerLevel(t *testing.T) {
	output := captureLogOutput(LevelInfo, FormatJSON, func() {
		Statement("SELECT", time.Millisecond, "rows")
		Info("visible")
	})

	if strings.Contains(output, `"msg":"statement"`) {
		t.Error("Expected debug statement log to be filtered at info level")
	}
	if !strings.Contains(output, `"msg":"visible"`) {
		t.Errorf("Expected info message, got %q", output)
	}

	output = captureLogOutput(LevelDebug, FormatText, func() {
		Statement("INSERT", time.Millisecond, "count", "affected", 1)
	})
	if !strings.Contains(output, "statement=INSERT") || !strings.Contains(output, "affected=1") {
		t.Errorf("Expected statement fields, got %q", output)
	}
}

func TestLoggerFromContext(t *testing.T) {
	output := captureLogOutput(LevelInfo, FormatJSON, func() {
		ctx := WithRequestID(context.Background(), "abc")
		InfoContext(ctx, "hello")
	})
	if !strings.Contains(output, `"request_id":"abc"`) {
		t.Errorf("Expected request id in output, got %q", output)
	}
}

func TestCombinedMiddleware(t *testing.T) {
	var seen string
	handler := CombinedMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	output := captureLogOutput(LevelInfo, FormatJSON, func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if _, err := uuid.Parse(rec.Header().Get(RequestIDHeader)); err != nil {
			t.Errorf("Expected uuid request id, got %q", rec.Header().Get(RequestIDHeader))
		}
		if seen != rec.Header().Get(RequestIDHeader) {
			t.Errorf("Expected context id %q to match header", seen)
		}
	})

	if !strings.Contains(output, `"status_code":418`) {
		t.Errorf("Expected status code in request log, got %q", output)
	}

	// A valid incoming id is kept.
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get(RequestIDHeader) != id {
		t.Errorf("Expected %s to be kept, got %s", id, rec.Header().Get(RequestIDHeader))
	}
}
