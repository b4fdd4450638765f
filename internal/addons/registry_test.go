package addons

import (
	"testing"

	"scenerelay/internal/wire"
)

func TestNewAssignsIDsStartingAtOne(t *testing.T) {
	r := New([]wire.AddonDescriptor{
		{Identifier: "core", Version: "1.0"},
		{Identifier: "extra", Version: "2.0"},
	})
	all := r.All()
	if all[0].ID != 1 || all[1].ID != 2 {
		t.Fatalf("expected sequential ids starting at 1, got %+v", all)
	}
}

func TestNewPreservesExplicitIDAndContinuesAfterIt(t *testing.T) {
	r := New([]wire.AddonDescriptor{
		{Identifier: "core", Version: "1.0", ID: 5},
		{Identifier: "extra", Version: "2.0"},
	})
	all := r.All()
	if all[0].ID != 5 {
		t.Fatalf("expected explicit id 5 to be preserved, got %d", all[0].ID)
	}
	if all[1].ID != 6 {
		t.Fatalf("expected the next auto-assigned id to continue past the explicit one, got %d", all[1].ID)
	}
}

func TestLookupExactMatch(t *testing.T) {
	r := New([]wire.AddonDescriptor{{Identifier: "core", Version: "1.0"}})
	d, ok := r.Lookup("core", "1.0")
	if !ok || d.ID != 1 {
		t.Fatalf("expected a match with id 1, got %+v ok=%v", d, ok)
	}
	if _, ok := r.Lookup("core", "2.0"); ok {
		t.Fatalf("expected no match for a differing version")
	}
}

func TestLen(t *testing.T) {
	r := New([]wire.AddonDescriptor{{Identifier: "a", Version: "1"}, {Identifier: "b", Version: "1"}})
	if r.Len() != 2 {
		t.Fatalf("expected Len 2, got %d", r.Len())
	}
}

func TestAllReturnsACopyNotTheInternalSlice(t *testing.T) {
	r := New([]wire.AddonDescriptor{{Identifier: "core", Version: "1.0"}})
	all := r.All()
	all[0].Identifier = "mutated"
	again := r.All()
	if again[0].Identifier != "core" {
		t.Fatalf("expected All() to return a defensive copy, got mutated state %+v", again[0])
	}
}
