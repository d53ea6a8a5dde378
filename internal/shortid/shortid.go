// Package shortid generates the random identifiers used in short URLs.
package shortid

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// Alphabet is the set of symbols a short id is drawn from.
	Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// Length is the fixed length of a short id.
	Length = 7
)

// reserved are ids that collide with fixed routes of the service.
var reserved = map[string]struct{}{
	"metrics": {},
	"shorten": {},
	"swagger": {},
}

var random = func() (string, error) {
	return gonanoid.Generate(Alphabet, Length)
}

// Generate returns a new short id drawn uniformly at random from Alphabet, skipping reserved words.
// Uniqueness is only probabilistic; callers must rely on the store to reject duplicates.
func Generate() (string, error) {
	const op = "shortid.Generate"

	for {
		id, err := random()
		if err != nil {
			return "", fmt.Errorf("%s: failed to generate id: %w", op, err)
		}

		if _, ok := reserved[id]; !ok {
			return id, nil
		}
	}
}

// Valid reports whether s has the shape of a generated short id and is not reserved.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}

	if _, ok := reserved[s]; ok {
		return false
	}

	for _, r := range s {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}

	return true
}

// Generator produces short ids with Generate.
type Generator struct{}

// NewID returns a new short id.
func (Generator) NewID() (string, error) {
	return Generate()
}
