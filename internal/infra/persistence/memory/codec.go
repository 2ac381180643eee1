package memory

import (
	"encoding/json"
	"fmt"
)

// EncodeBucket marshals one snapshot section as JSON.
func EncodeBucket(snap *Snapshot, name string) ([]byte, error) {
	target, ok := snap.Bucket(name)
	if !ok {
		return nil, fmt.Errorf("unknown bucket %q", name)
	}
	data, err := json.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return data, nil
}

// DecodeBucket unmarshals payload into the named section. Unknown buckets
// are ignored so older binaries can read newer databases.
func DecodeBucket(snap *Snapshot, name string, payload []byte) error {
	target, ok := snap.Bucket(name)
	if !ok || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
