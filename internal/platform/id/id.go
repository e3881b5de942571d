// Package id generates compact identifiers for aggregates and facts.
//
// IDs are UUIDv4 values encoded as lowercase unpadded base32 (26
// characters), which keeps them URL- and filename-safe while preserving
// 128 bits of randomness.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a new 26-character lowercase base32 identifier.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}
