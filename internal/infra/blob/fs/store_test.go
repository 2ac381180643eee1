package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nutrilog/internal/blob/core"
)

func TestSidecarLayout(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := s.Put(context.Background(), "a/b.json", strings.NewReader("{}"), core.PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a", "b.json")); err != nil {
		t.Fatalf("data file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a", "b.json"+metaSuffix)); err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "a"))
	if len(entries) != 2 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestReservedSuffixRejected(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := s.Put(context.Background(), "x"+metaSuffix, strings.NewReader(""), core.PutOptions{}); err == nil {
		t.Fatalf("expected reserved suffix to be rejected")
	}
}
