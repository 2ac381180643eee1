package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"nutrilog/internal/blob/core"
)

func TestGetReturnsIndependentCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	md := map[string]string{"k": "v"}
	if _, err := s.Put(ctx, "k", strings.NewReader("data"), core.PutOptions{Metadata: md}); err != nil {
		t.Fatalf("put: %v", err)
	}
	md["k"] = "changed"
	info, rc, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if string(b) != "data" || info.Metadata["k"] != "v" {
		t.Fatalf("stored object aliased caller state: %q %+v", b, info.Metadata)
	}
	info.Metadata["k"] = "mutated"
	head, _ := s.Head(ctx, "k")
	if head.Metadata["k"] != "v" {
		t.Fatalf("head aliased metadata")
	}
}
