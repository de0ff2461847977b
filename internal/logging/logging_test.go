package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestForTagsComponentField(t *testing.T) {
	log, err := New("debug", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var buf bytes.Buffer
	log.SetOutput(&buf)

	For(log, "admission").Info("tx accepted")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("log line was not valid JSON: %v (%q)", err, buf.String())
	}
	if decoded["component"] != "admission" {
		t.Fatalf("expected component=admission, got %v", decoded["component"])
	}
	if decoded["msg"] != "tx accepted" {
		t.Fatalf("expected msg field, got %v", decoded["msg"])
	}
}

func TestNewDefaultsInvalidLevelToInfo(t *testing.T) {
	log, err := New("not-a-level", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log.GetLevel().String() != "info" {
		t.Fatalf("expected info level default, got %s", log.GetLevel())
	}
}

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/agg.log"
	log, err := New("info", path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	For(log, "chain").Warn("reorg observed")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "reorg observed") {
		t.Fatalf("expected log file to contain the message, got %q", data)
	}
}
