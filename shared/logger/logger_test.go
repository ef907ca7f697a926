// Copyright 2025 Slidesmith
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"testing"
	"time"
)

func captureOutput(fn func()) string {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer log.SetOutput(nil)
	fn()
	return buf.String()
}

func TestNew(t *testing.T) {
	l := New("engine")
	if l.Component != "engine" {
		t.Errorf("Component = %q, want %q", l.Component, "engine")
	}
}

func TestLogProducesValidJSON(t *testing.T) {
	l := New("test-component")

	out := captureOutput(func() {
		l.Info("req-123", "hello", map[string]interface{}{"provider": "anthropic"})
	})

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, out)
	}

	if entry.Level != INFO {
		t.Errorf("Level = %q, want INFO", entry.Level)
	}
	if entry.Component != "test-component" {
		t.Errorf("Component = %q, want test-component", entry.Component)
	}
	if entry.RequestID != "req-123" {
		t.Errorf("RequestID = %q, want req-123", entry.RequestID)
	}
	if entry.Message != "hello" {
		t.Errorf("Message = %q, want hello", entry.Message)
	}
	if entry.Fields["provider"] != "anthropic" {
		t.Errorf("Fields[provider] = %v, want anthropic", entry.Fields["provider"])
	}

	if _, err := time.Parse(time.RFC3339Nano, entry.Timestamp); err != nil {
		t.Errorf("Timestamp %q is not RFC3339Nano: %v", entry.Timestamp, err)
	}
}

func TestLogLevels(t *testing.T) {
	l := New("engine")

	tests := []struct {
		name  string
		logFn func()
		want  LogLevel
	}{
		{"debug", func() { l.Debug("", "msg", nil) }, DEBUG},
		{"info", func() { l.Info("", "msg", nil) }, INFO},
		{"warn", func() { l.Warn("", "msg", nil) }, WARN},
		{"error", func() { l.Error("", "msg", nil) }, ERROR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureOutput(tt.logFn)

			var entry LogEntry
			if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if entry.Level != tt.want {
				t.Errorf("Level = %q, want %q", entry.Level, tt.want)
			}
		})
	}
}

func TestErrorWithErr(t *testing.T) {
	l := New("engine")

	out := captureOutput(func() {
		l.ErrorWithErr("req-1", "generation failed", errDummy, nil)
	})

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry.Fields["error"] != "dummy failure" {
		t.Errorf("Fields[error] = %v, want %q", entry.Fields["error"], "dummy failure")
	}
}

func TestInfoWithDuration(t *testing.T) {
	l := New("engine")

	out := captureOutput(func() {
		l.InfoWithDuration("req-1", "done", 42.5, nil)
	})

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry.Fields["duration_ms"] != 42.5 {
		t.Errorf("Fields[duration_ms] = %v, want 42.5", entry.Fields["duration_ms"])
	}
}

type dummyErr struct{}

func (dummyErr) Error() string { return "dummy failure" }

var errDummy = dummyErr{}
