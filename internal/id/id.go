// Package id generates identifiers: random NanoIDs for ephemeral things
// (stream subscribers, checkpoint writes) and stable hashes for catalog tracks.
package id

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes used across the player.
const (
	PrefixTrack      = "trk"
	PrefixSubscriber = "sub"
	PrefixCheckpoint = "ckpt"
)

// Generate creates a prefixed unique ID using NanoID
// Format: prefix-nanoid (e.g., "sub-V1StGXR8_Z5jdHi6B-myT")
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Stable derives a deterministic ID from key, so the same file always maps to
// the same track and saved progress keeps matching across rescans.
// Format: prefix-<16 hex digits of xxhash64(key)>.
func Stable(prefix, key string) string {
	return fmt.Sprintf("%s-%016x", prefix, xxhash.Sum64String(key))
}
