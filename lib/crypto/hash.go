package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

const (
	HashSize       = sha256.Size
	HashStringSize = 2 * HashSize
)

/*
	Hash is a function that takes an input message and returns a fixed-size digest that is unique to the input.
	Blocks are identified on the wire by the lowercase hex form of this digest.
*/

// Hasher() returns the global hashing algorithm used
func Hasher() hash.Hash { return sha256.New() }

// Hash() executes the global hashing algorithm on input bytes
func Hash(msg []byte) []byte {
	h := sha256.Sum256(msg)
	return h[:]
}

// HashString() returns the hex byte version of a hash
func HashString(msg []byte) string { return hex.EncodeToString(Hash(msg)) }

// IsHashString() reports whether s is a lowercase hex encoded digest of the global hashing algorithm
func IsHashString(s string) bool {
	if len(s) != HashStringSize {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
