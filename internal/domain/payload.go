package domain

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// PayloadBody is the user-supplied payload document before it has been
// deduplicated and assigned an id.
type PayloadBody struct {
	Data map[string]any `json:"data"`
}

// Checksum returns the MD5 hex digest of the canonical JSON encoding of the
// body. encoding/json sorts map keys, so equal documents always hash equal.
func (b PayloadBody) Checksum() (string, error) {
	raw, err := json.Marshal(b.Data)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Payload is content-addressed opaque job input. Two payloads with equal
// canonical data share one row; the checksum column is unique.
type Payload struct {
	ID       int64          `json:"id"`
	Data     map[string]any `json:"data"`
	Checksum string         `json:"checksum"`
}
