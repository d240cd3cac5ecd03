package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestStructuredLogger(t *testing.T) {
	t.Run("TextFormat", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.Info("pool opened %d", 3)

		output := buf.String()
		if !strings.Contains(output, "INFO") || !strings.Contains(output, "pool opened 3") {
			t.Errorf("Unexpected text output: %s", output)
		}
	})

	t.Run("JSONFormat", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetFormat(LogFormatJSON)
		l.Warn("release %s", "rejected")

		var data map[string]any
		if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
			t.Fatalf("Failed to unmarshal JSON output: %v", err)
		}
		if data["level"] != "WARN" || data["msg"] != "release rejected" {
			t.Errorf("Unexpected JSON output: %v", data)
		}
		if _, ok := data["time"]; !ok {
			t.Errorf("Missing time field in JSON output")
		}
	})

	t.Run("WithFields", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetFormat(LogFormatJSON)
		l.WithFields(map[string]any{"lease": "abc"}).Info("acquired")

		var data map[string]any
		if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
			t.Fatalf("Failed to unmarshal JSON output: %v", err)
		}
		if data["lease"] != "abc" || data["msg"] != "acquired" {
			t.Errorf("Unexpected JSON output with fields: %v", data)
		}
	})

	t.Run("SQLJSON", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetFormat(LogFormatJSON)
		l.SQL("SELECT * FROM World", 10*time.Millisecond)

		var data map[string]any
		if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
			t.Fatalf("Failed to unmarshal JSON output: %v", err)
		}
		if data["level"] != "SQL" || data["sql"] != "SELECT * FROM World" {
			t.Errorf("Unexpected SQL JSON output: %v", data)
		}
		if data["duration"] != "10ms" {
			t.Errorf("Unexpected duration: %v", data["duration"])
		}
	})

	t.Run("LevelOutput", func(t *testing.T) {
		mainBuf := &bytes.Buffer{}
		errorBuf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(mainBuf)
		l.SetLevelOutput(LogLevelError, errorBuf)

		l.Info("this is info")
		l.Error("this is error")

		if !strings.Contains(mainBuf.String(), "this is info") || !strings.Contains(mainBuf.String(), "this is error") {
			t.Errorf("Main buffer missing entries: %s", mainBuf.String())
		}
		if strings.Contains(errorBuf.String(), "INFO") {
			t.Errorf("Error buffer should not contain INFO: %s", errorBuf.String())
		}
		if !strings.Contains(errorBuf.String(), "this is error") {
			t.Errorf("Error buffer missing ERROR: %s", errorBuf.String())
		}
	})

	t.Run("Silent", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetLevel(LogLevelSilent)
		l.Error("nothing")
		l.SQL("SELECT 1", time.Millisecond)
		if buf.Len() != 0 {
			t.Errorf("Silent logger wrote: %s", buf.String())
		}
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"error":   LogLevelError,
		"WARN":    LogLevelWarn,
		"info":    LogLevelInfo,
		"off":     LogLevelSilent,
		"unknown": LogLevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestZapLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewZapProduction(buf, LogLevelInfo)
	l.WithFields(map[string]any{"lease": "L1"}).SQL("UPDATE World SET value='x'", 2*time.Millisecond)

	var data map[string]any
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("Failed to unmarshal zap output %q: %v", buf.String(), err)
	}
	if data["msg"] != "sql" || data["sql"] != "UPDATE World SET value='x'" || data["lease"] != "L1" {
		t.Errorf("Unexpected zap output: %v", data)
	}

	buf.Reset()
	l.SetLevel(LogLevelError)
	l.Warn("dropped")
	if buf.Len() != 0 {
		t.Errorf("Expected warn to be filtered, got %s", buf.String())
	}
}
