package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLoggerRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, Options{Service: "wacgd", Env: "test"})
	logger.Info("started", slog.Int("port", 8080))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for _, key := range []string{"timestamp", "severity", "message", "service", "env"} {
		if _, ok := line[key]; !ok {
			t.Fatalf("missing %q in %v", key, line)
		}
	}
	if line["severity"] != "INFO" || line["message"] != "started" || line["service"] != "wacgd" {
		t.Fatalf("unexpected log line %v", line)
	}
}

func TestAuditMasksDetails(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, Options{Service: "wacgd"})
	Audit(context.Background(), logger, AuditEvent{
		Operation: "mint",
		Actor:     "0xabc",
		Result:    "denied",
		Details: map[string]string{
			"proof":     "deposit-17",
			"kind":      "Unauthorized",
			"recipient": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
			"ref":       "",
		},
	})

	var line struct {
		Audit    bool              `json:"audit"`
		Severity string            `json:"severity"`
		Details  map[string]string `json:"details"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode audit line: %v", err)
	}
	if !line.Audit || line.Severity != "WARN" {
		t.Fatalf("unexpected audit record %+v", line)
	}
	if line.Details["proof"] != RedactedValue {
		t.Fatalf("proof must be redacted, got %q", line.Details["proof"])
	}
	if line.Details["kind"] != "Unauthorized" {
		t.Fatalf("kind must pass through, got %q", line.Details["kind"])
	}
	if line.Details["recipient"] != "0x7099..79C8" {
		t.Fatalf("recipient must be abbreviated, got %q", line.Details["recipient"])
	}
	if v, ok := line.Details["ref"]; !ok || v != "" {
		t.Fatalf("empty ref must pass through, got %q", v)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug || ParseLevel("warning") != slog.LevelWarn || ParseLevel("") != slog.LevelInfo {
		t.Fatalf("unexpected level mapping")
	}
}
