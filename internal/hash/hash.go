// Package hash computes the content hash used for change detection.
package hash

import (
	"encoding/hex"
	"os"

	"lukechampine.com/blake3"
)

// Sum returns the first 8 bytes of the BLAKE3 digest of data as 16
// lowercase hex characters. This is change detection, not integrity: a
// collision costs one missed re-index and self-heals on the next write.
func Sum(data []byte) string {
	digest := blake3.Sum256(data)
	return hex.EncodeToString(digest[:8])
}

// SumFile reads path and hashes its contents.
func SumFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Sum(data), nil
}
