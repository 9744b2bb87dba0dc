package model

import "testing"

func TestStatusTotalValid(t *testing.T) {
	cases := []struct {
		name string
		in   []int
		want int
	}{
		{"empty", nil, 0},
		{"all unused", []int{-1, -1}, 0},
		{"no unused", []int{1, 0, 0}, 3},
		{"trailing unused", []int{1, 0, -1, -1}, 2},
		{"inner unused", []int{0, -1, 1, -1}, 3},
		{"leading unused", []int{-1, -1, 0}, 3},
	}
	for _, c := range cases {
		if got := StatusFromInts(c.in).TotalValid(); got != c.want {
			t.Errorf("%s: expected %d got %d", c.name, c.want, got)
		}
	}
}

func TestStatusValidate(t *testing.T) {
	if err := StatusFromInts([]int{-1, 0, 1}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := StatusFromInts([]int{0, 2}).Validate(); err == nil {
		t.Fatalf("expected error for code 2")
	}
}

func TestStatusAtOutOfRange(t *testing.T) {
	s := StatusFromInts([]int{1})
	if s.At(3) != Unused || s.At(-1) != Unused {
		t.Fatalf("out of range should read as unused")
	}
	if s.At(0) != Occupied {
		t.Fatalf("expected occupied")
	}
}

func TestInstructionsRender(t *testing.T) {
	in := NewInstructions(3)
	in.Set(0, "101")
	in.Set(2, UnknownBus)
	in.Set(5, "999")
	if got, want := in.Render(), `"101":" ":" "`; got != want {
		t.Fatalf("expected %s got %s", want, got)
	}
}

func TestBusIDKnown(t *testing.T) {
	if UnknownBus.Known() || BusID("").Known() {
		t.Fatalf("sentinel ids must not be known")
	}
	if !NormalizeBusID(" 77 ").Known() || NormalizeBusID(" 77 ") != "77" {
		t.Fatalf("expected trimmed known id")
	}
}
