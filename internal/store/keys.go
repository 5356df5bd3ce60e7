package store

import "sync"

const progressPrefix = "progress:"

// keyPool provides reusable byte slices for building database keys.
var keyPool = sync.Pool{
	New: func() any {
		// "progress:" + user ID + ":" + track ID fits comfortably.
		return make([]byte, 0, 128)
	},
}

// buildProgressKey constructs "progress:<user>:<track>" using a pooled buffer.
// Callers MUST call releaseKey when done with the key.
//
// Usage:
//
//	key := buildProgressKey(userID, trackID)
//	defer releaseKey(key)
//	item, err := txn.Get(key)
func buildProgressKey(userID, trackID string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0] // Reset length, keep capacity
	buf = append(buf, progressPrefix...)
	buf = append(buf, userID...)
	buf = append(buf, ':')
	buf = append(buf, trackID...)
	return buf
}

// userPrefix is the scan prefix for all of a user's records.
func userPrefix(userID string) []byte {
	return []byte(progressPrefix + userID + ":")
}

// releaseKey returns a key buffer to the pool for reuse.
// After calling this, the key slice must not be used.
func releaseKey(key []byte) {
	// Only pool buffers that have reasonable capacity
	if cap(key) <= 512 {
		keyPool.Put(key[:0])
	}
}
