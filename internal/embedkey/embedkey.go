package embedkey

import (
	"errors"
	"regexp"
)

// Prefix is the fixed prefix of every embed key
const Prefix = "emb_"

// Keys are issued by the database (see database.CreateConstraints); this package only checks them.
var keyPattern = regexp.MustCompile(`^emb_[a-z0-9]{12}$`)

var (
	// ErrInvalidEmbedKey means the key does not have the embed key shape. Detected locally.
	ErrInvalidEmbedKey = errors.New("invalid embed key")
	// ErrEmbedKeyNotFound means a well-formed key is not bound to an active widget
	ErrEmbedKeyNotFound = errors.New("embed key not found")
)

// IsValid reports whether key has the embed key format
func IsValid(key string) bool {
	return keyPattern.MatchString(key)
}

// AssertValid returns ErrInvalidEmbedKey for malformed keys
func AssertValid(key string) error {
	if !IsValid(key) {
		return ErrInvalidEmbedKey
	}
	return nil
}
