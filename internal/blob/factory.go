package blob

import (
	"context"
	"fmt"
	"os"

	"nutrilog/internal/infra/blob/fs"
	memorystore "nutrilog/internal/infra/blob/memory"
	infraS3 "nutrilog/internal/infra/blob/s3"
)

// S3Config configures the S3 backend.
type S3Config = infraS3.Config

// Open selects a Store using environment variables.
//
//	NUTRILOG_BLOB_DRIVER: fs|s3|memory (default fs)
//	NUTRILOG_BLOB_FS_ROOT: directory root when driver=fs (default ./nutrilog-blobs)
//	NUTRILOG_BLOB_S3_*: see infra/blob/s3
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("NUTRILOG_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("NUTRILOG_BLOB_FS_ROOT"))
	case DriverS3:
		return infraS3.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem returns a Store rooted at dir.
func NewFilesystem(dir string) (Store, error) { return fs.New(dir) }

// NewMemory returns a process-local Store.
func NewMemory() Store { return memorystore.New() }

// NewS3 returns an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return infraS3.New(ctx, cfg) }

// NewMockS3ForTests returns an S3 Store talking to an in-process fake.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
