package query

import "testing"

func TestFingerprint_WhitespaceInsensitive(t *testing.T) {
	a := Fingerprint("select id, name\nfrom users\nwhere id = 1;")
	b := Fingerprint("  select id,   name from users where id = 1  ")
	if a != b {
		t.Errorf("formatting variants should share a fingerprint:\n  %s\n  %s", a, b)
	}
}

func TestFingerprint_CasePreserved(t *testing.T) {
	// 'Alice' and 'alice' are different queries — string literals must
	// not be folded together.
	a := Fingerprint("select * from users where name = 'Alice'")
	b := Fingerprint("select * from users where name = 'alice'")
	if a == b {
		t.Error("statements differing in literal case should not share a fingerprint")
	}
}

func TestFingerprint_DistinctStatements(t *testing.T) {
	a := Fingerprint("select 1")
	b := Fingerprint("select 2")
	if a == b {
		t.Error("different statements should not collide")
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	first := Fingerprint("select count(*) from orders")
	for i := 0; i < 5; i++ {
		if got := Fingerprint("select count(*) from orders"); got != first {
			t.Fatalf("call %d produced %s, want %s", i, got, first)
		}
	}
}
