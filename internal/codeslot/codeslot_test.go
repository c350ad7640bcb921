package codeslot

import (
	"fmt"
	"sync"
	"testing"
)

func TestSlot_StartsEmpty(t *testing.T) {
	t.Parallel()
	s := New()
	code, ok := s.Get()
	if ok || code != "" {
		t.Fatalf("Get() = %q, %v; want empty, false", code, ok)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestSlot_SetOverwrites(t *testing.T) {
	t.Parallel()
	var s Slot
	s.Set("print('a')")
	s.Set("print('b')")

	code, ok := s.Get()
	if !ok || code != "print('b')" {
		t.Fatalf("Get() = %q, %v; want newest write", code, ok)
	}
}

func TestSlot_EmptyStringIsAWrite(t *testing.T) {
	t.Parallel()
	var s Slot
	s.Set("")
	if _, ok := s.Get(); !ok {
		t.Fatal("Set(\"\") should mark the slot as written")
	}
}

func TestSlot_LenCountsRunes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code string
		want int
	}{
		{"", 0},
		{"print('hi')", 11},
		{"print('€')", 10},
		{"# 株価\n", 5},
	}
	for _, tt := range tests {
		var s Slot
		s.Set(tt.code)
		if got := s.Len(); got != tt.want {
			t.Errorf("Len(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestSlot_ConcurrentWriters(t *testing.T) {
	t.Parallel()
	s := New()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Set(fmt.Sprintf("print(%d)", i))
			_, _ = s.Get()
		}()
	}
	wg.Wait()

	code, ok := s.Get()
	if !ok {
		t.Fatal("slot should hold a value after concurrent writes")
	}
	var n int
	if _, err := fmt.Sscanf(code, "print(%d)", &n); err != nil {
		t.Fatalf("slot holds a torn value %q: %v", code, err)
	}
}
