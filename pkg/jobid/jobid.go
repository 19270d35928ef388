package jobid

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic deterministic fingerprinting only
	"fmt"
	"strings"
)

// ImageSetHash returns the hex-encoded SHA1 of the ordered image
// paths joined by "\n". Selection order must already be final —
// callers never reorder before hashing.
func ImageSetHash(orderedPaths []string) string {
	h := sha1.New() //nolint:gosec
	h.Write([]byte(strings.Join(orderedPaths, "\n")))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// JobID returns the first 12 hex characters of the SHA1 of
// "productID|variant|algo|imageSetHash". This is the stable public
// identifier used in paths and log lines.
func JobID(productID, variant, algo, imageSetHash string) string {
	h := sha1.New() //nolint:gosec
	h.Write([]byte(strings.Join([]string{productID, variant, algo, imageSetHash}, "|")))
	sum := fmt.Sprintf("%x", h.Sum(nil))
	return sum[:12]
}
