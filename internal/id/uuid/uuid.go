// Package uuid provides ID generation for crawl jobs.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUIDv7 strings. v7 IDs sort by creation time, which
// keeps job rows roughly in insertion order on disk.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUIDv7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// Sequence hands out a fixed list of IDs, then falls back to UUIDv7. It is
// meant for tests that assert on job IDs.
type Sequence struct {
	ids  []string
	next int
	gen  Generator
}

// NewSequence returns a Sequence over ids.
func NewSequence(ids ...string) *Sequence {
	return &Sequence{ids: ids}
}

// NewID returns the next scripted ID.
func (s *Sequence) NewID() (string, error) {
	if s.next < len(s.ids) {
		id := s.ids[s.next]
		s.next++
		return id, nil
	}
	return s.gen.NewID()
}
