package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"nutrilog/internal/blob/core"
)

func TestListPagesThroughResults(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("summaries/u1/2026-03-0%d.json", i+1)
		if _, err := s.Put(ctx, key, strings.NewReader("{}"), core.PutOptions{ContentType: "application/json"}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := s.List(ctx, "summaries/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 5 {
		t.Fatalf("expected 5 objects across pages, got %d", len(infos))
	}
	if infos[4].Key != "summaries/u1/2026-03-05.json" || infos[0].Size != 2 {
		t.Fatalf("unexpected listing %+v", infos)
	}
}

func TestPrefixIsHiddenFromKeys(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBucket{objects: map[string]fakeObject{}, pageSize: 10}
	s, err := New(ctx, Config{
		Bucket:          "b",
		Prefix:          "/tenant-a/",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIAMOCK",
		SecretAccessKey: "secret",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: fake},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	info, err := s.Put(ctx, "summaries/u1/d.json", strings.NewReader("abc"), core.PutOptions{Metadata: map[string]string{"user": "u1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "summaries/u1/d.json" {
		t.Fatalf("info key = %s", info.Key)
	}
	if _, ok := fake.objects["tenant-a/summaries/u1/d.json"]; !ok {
		t.Fatalf("object not stored under prefix: %v", fake.objects)
	}
	got, rc, err := s.Get(ctx, "summaries/u1/d.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "abc" || got.Metadata["user"] != "u1" {
		t.Fatalf("unexpected object %q %+v", body, got)
	}
	list, err := s.List(ctx, "summaries/")
	if err != nil || len(list) != 1 || list[0].Key != "summaries/u1/d.json" {
		t.Fatalf("list = %+v, %v", list, err)
	}
}

func TestMissingObjectsMapToNotFound(t *testing.T) {
	s := NewMockForTests()
	if _, err := s.Head(context.Background(), "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head: %v", err)
	}
	if _, _, err := s.Get(context.Background(), "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: %v", err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("NUTRILOG_BLOB_S3_BUCKET", "exports")
	t.Setenv("NUTRILOG_BLOB_S3_REGION", "eu-west-1")
	t.Setenv("NUTRILOG_BLOB_S3_PATH_STYLE", "TRUE")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Bucket != "exports" || cfg.Region != "eu-west-1" || !cfg.PathStyle {
		t.Fatalf("unexpected config %+v", cfg)
	}
	t.Setenv("NUTRILOG_BLOB_S3_BUCKET", "")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("expected error without bucket")
	}
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty bucket")
	}
}

func TestDecodeChunked(t *testing.T) {
	raw := "5;chunk-signature=abc\r\nhello\r\n3\r\n!!!\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"
	got, err := decodeChunked([]byte(raw))
	if err != nil || string(got) != "hello!!!" {
		t.Fatalf("decode = %q, %v", got, err)
	}
	if _, err := decodeChunked([]byte("zz\r\n")); err == nil {
		t.Fatalf("expected error for bad chunk size")
	}
}
