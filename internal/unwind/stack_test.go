package unwind

import (
	"errors"
	"slices"
	"testing"
)

func TestStack_ReverseOrder(t *testing.T) {
	var s Stack
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		s.Push(name, func() error {
			order = append(order, name)
			return nil
		})
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}

	if err := s.Unwind(); err != nil {
		t.Fatalf("Unwind: %v", err)
	}
	if want := []string{"c", "b", "a"}; !slices.Equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
	if !slices.Equal(s.Released(), order) {
		t.Errorf("Released() = %v, want %v", s.Released(), order)
	}
	if s.Len() != 0 {
		t.Errorf("Len() after Unwind = %d, want 0", s.Len())
	}
}

func TestStack_ContinuesPastFailures(t *testing.T) {
	var s Stack
	errB := errors.New("b failed")
	errD := errors.New("d failed")
	ran := 0
	s.Push("a", func() error { ran++; return nil })
	s.Push("b", func() error { ran++; return errB })
	s.Push("c", func() error { ran++; return nil })
	s.Push("d", func() error { ran++; return errD })

	err := s.Unwind()
	if ran != 4 {
		t.Errorf("ran %d steps, want 4", ran)
	}
	if !errors.Is(err, errB) || !errors.Is(err, errD) {
		t.Errorf("Unwind error = %v, want both failures", err)
	}
	var re *ReleaseError
	if !errors.As(err, &re) {
		t.Fatalf("Unwind error %T is not a *ReleaseError", err)
	}
	if re.Step != "d" {
		t.Errorf("first ReleaseError step = %q, want %q", re.Step, "d")
	}
}

func TestStack_UnwindTwice(t *testing.T) {
	var s Stack
	calls := 0
	s.Push("x", func() error { calls++; return nil })
	_ = s.Unwind()
	_ = s.Unwind()
	if calls != 1 {
		t.Errorf("release ran %d times, want 1", calls)
	}
}
