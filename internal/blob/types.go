// Package blob is the only entry point to the blob backends; other packages
// depend on blob.Store rather than on a concrete driver.
package blob

import (
	"nutrilog/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// ErrNotFound is returned by Get and Head when the key is missing.
var ErrNotFound = core.ErrNotFound

// ValidateKey rejects keys that would escape a store and returns the
// cleaned form.
func ValidateKey(key string) (string, error) { return core.ValidateKey(key) }
