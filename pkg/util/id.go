// Package util contains any functions used across the application that don't match
// any other package
package util

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	IDSize  = 16
)

// NewID returns a random identifier used as primary key for every table
func NewID() (string, error) {
	return gonanoid.Generate(charset, IDSize)
}

// IsID reports whether s has the shape of an identifier made by NewID
func IsID(s string) bool {
	if len(s) != IDSize {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}

	return true
}
