package idgen

import (
	"strings"
	"testing"
)

func TestNanoID_LengthAndAlphabet(t *testing.T) {
	id := NanoID(40)()
	if len(id) != 40 {
		t.Fatalf("length: got %d", len(id))
	}
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
			t.Fatalf("unexpected character %q in %q", c, id)
		}
	}
}

func TestUUIDv7_Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 200)
	for i := 0; i < 200; i++ {
		id := gen()
		if len(id) != 36 {
			t.Fatalf("length: got %d", len(id))
		}
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate at %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestRecordGenerators_Prefixes(t *testing.T) {
	// WHAT: Each record kind carries its own prefix.
	// WHY: Attempt and invite IDs show up in logs side by side.
	cases := map[string]Generator{
		"tgt_": Target,
		"att_": Attempt,
		"opt_": OptOut,
		"inv_": Invite,
	}
	for prefix, gen := range cases {
		if id := gen(); !strings.HasPrefix(id, prefix) {
			t.Errorf("got %q, want prefix %q", id, prefix)
		}
	}
	if got := len(Invite()); got != len("inv_")+12 {
		t.Errorf("invite token length: got %d", got)
	}
}
