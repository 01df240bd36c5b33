package logging

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	cleanup, err := Setup(path)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	Debugf("snapped %s at %d", "EN", 130)
	cleanup()
	log.SetOutput(os.Stderr)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "snapped EN at 130") {
		t.Fatalf("expected debug line in log, got %q", string(data))
	}
}

func TestSetupWithoutFileDiscards(t *testing.T) {
	cleanup, err := Setup("")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer cleanup()
	Debugf("ignored")
}
