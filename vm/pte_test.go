package vm

import (
	"testing"

	"sv39vm/mem"
)

func TestMakePTERoundTrip(t *testing.T) {
	pa := mem.PA(0x123000)
	flags := FlagV | FlagR | FlagW | FlagU

	pte := MakePTE(pa, flags)

	if got := PTEPfn(pte); got != pa {
		t.Fatalf("expected PTEPfn to return %#x; got %#x", pa, got)
	}
	if got := PTEFlags(pte); got != flags {
		t.Fatalf("expected PTEFlags to return %v; got %v", flags, got)
	}
}

func TestIsValidAndIsLeaf(t *testing.T) {
	interior := MakePTE(0x1000, FlagV)
	if !IsValid(interior) {
		t.Fatal("expected interior entry to be valid")
	}
	if IsLeaf(interior) {
		t.Fatal("expected a V-only entry to be interior, not a leaf")
	}

	leaf := MakePTE(0x2000, FlagV|FlagR)
	if !IsLeaf(leaf) {
		t.Fatal("expected V|R entry to be a leaf")
	}

	var zero PTE
	if IsValid(zero) {
		t.Fatal("expected the zero PTE to be invalid")
	}
}

func TestPxLevels(t *testing.T) {
	// va picked so each 9-bit field holds a distinct, recognizable value.
	var va uintptr = (7 << 30) | (3 << 21) | (1 << 12)
	if got := Px(2, va); got != 7 {
		t.Errorf("expected Px(2, va) = 7; got %d", got)
	}
	if got := Px(1, va); got != 3 {
		t.Errorf("expected Px(1, va) = 3; got %d", got)
	}
	if got := Px(0, va); got != 1 {
		t.Errorf("expected Px(0, va) = 1; got %d", got)
	}
}

func TestMakePTEIgnoresReservedBits(t *testing.T) {
	pte := MakePTE(0x4000, Flag(0xfffffff))
	if got := PTEFlags(pte); got != flagMask {
		t.Fatalf("expected flags to be masked down to %v; got %v", flagMask, got)
	}
}
