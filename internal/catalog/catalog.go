// Package catalog holds the static exercise catalogue: named, ordered word
// lists loaded once at startup and never mutated afterwards. Reads are
// lock-free; the catalogue is immutable after construction.
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned when the requested exercise id is not in the
// catalogue.
var ErrNotFound = errors.New("catalog: exercise not found")

// Exercise is a named, ordered sequence of target words to be pronounced in
// order. The word list is non-empty and fixed for the process lifetime.
type Exercise struct {
	ID    string   `yaml:"id"`
	Words []string `yaml:"words"`
}

// Catalog is an immutable set of exercises keyed by id. It is safe for
// unsynchronised concurrent reads.
type Catalog struct {
	exercises map[string][]string
	ids       []string
}

// New builds a Catalog from the given exercises. Every exercise must have a
// non-empty id, at least one word, and no empty words; duplicate ids are
// rejected. Word slices are copied so later mutation of the input cannot
// leak into the catalogue.
func New(exercises []Exercise) (*Catalog, error) {
	c := &Catalog{exercises: make(map[string][]string, len(exercises))}

	for i, ex := range exercises {
		if ex.ID == "" {
			return nil, fmt.Errorf("catalog: exercise %d has an empty id", i)
		}
		if _, dup := c.exercises[ex.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate exercise id %q", ex.ID)
		}
		if len(ex.Words) == 0 {
			return nil, fmt.Errorf("catalog: exercise %q has no words", ex.ID)
		}
		words := make([]string, len(ex.Words))
		for j, w := range ex.Words {
			if w == "" {
				return nil, fmt.Errorf("catalog: exercise %q word %d is empty", ex.ID, j)
			}
			words[j] = w
		}
		c.exercises[ex.ID] = words
		c.ids = append(c.ids, ex.ID)
	}

	sort.Strings(c.ids)
	return c, nil
}

// Default returns a catalogue with the built-in starter exercises, used when
// no exercises file is configured.
func Default() *Catalog {
	c, err := New([]Exercise{
		{ID: "twinkle", Words: []string{"twinkle", "twinkle", "little", "star", "how", "I", "wonder", "what", "you", "are"}},
		{ID: "abc", Words: []string{"a", "b", "c", "d", "e", "f", "g"}},
		{ID: "row-boat", Words: []string{"row", "row", "row", "your", "boat", "gently", "down", "the", "stream"}},
	})
	if err != nil {
		// The built-in set is fixed; a failure here is a programming error.
		panic("catalog: invalid built-in exercises: " + err.Error())
	}
	return c
}

// Get returns the ordered word list for id. The returned slice must not be
// mutated by the caller. Returns [ErrNotFound] for unknown ids.
func (c *Catalog) Get(id string) ([]string, error) {
	words, ok := c.exercises[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return words, nil
}

// IDs returns all exercise ids in sorted order. The returned slice must not
// be mutated by the caller.
func (c *Catalog) IDs() []string {
	return c.ids
}

// Len returns the number of exercises in the catalogue.
func (c *Catalog) Len() int {
	return len(c.exercises)
}
