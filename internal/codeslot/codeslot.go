// Package codeslot holds the single piece of analysis code the server is
// currently working with.
//
// A [Slot] stores zero or one code string. Every successful write replaces the
// previous value; there is no delete, so a slot is emptied only by discarding
// it. The zero value is an empty, ready-to-use slot.
package codeslot

import (
	"sync"
	"unicode/utf8"
)

// Slot is a concurrency-safe holder for the most recently generated or saved
// code. It must not be copied after first use.
type Slot struct {
	mu   sync.RWMutex
	code string
	set  bool
}

// New returns an empty [Slot].
func New() *Slot {
	return &Slot{}
}

// Get returns the stored code and whether a value has ever been written.
// A slot holding the empty string reports ok == true.
func (s *Slot) Get() (code string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code, s.set
}

// Set replaces the stored code.
func (s *Slot) Set(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
	s.set = true
}

// Len returns the length of the stored code in characters (runes), or 0 when
// the slot is empty.
func (s *Slot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return utf8.RuneCountInString(s.code)
}
