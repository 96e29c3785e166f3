package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// ChecksumKey is the metadata key holding the hex SHA-256 of the data section.
const ChecksumKey = "sha256"

// ComputeChecksum computes SHA-256 checksum of data.
func ComputeChecksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ComputeChecksumReader computes SHA-256 checksum from an io.Reader.
func ComputeChecksumReader(r io.Reader) ([32]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return [32]byte{}, err
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// ValidateChecksum compares a computed checksum against the hex string stored
// in the metadata. Returns ErrChecksumMismatch if they differ.
func ValidateChecksum(computed [32]byte, stored string) error {
	if hex.EncodeToString(computed[:]) != stored {
		return ErrChecksumMismatch
	}
	return nil
}
