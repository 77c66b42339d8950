package cache_test

import (
	"strings"
	"testing"

	"github.com/igloolabs/igloo-mcp/internal/cache"
)

const stmtHash = "abc123"

// ─── ContextFromAny ─────────────────────────────────────────────────────────

func TestContextFromAny_StringsAndNulls(t *testing.T) {
	sctx, err := cache.ContextFromAny(map[string]any{
		"warehouse": "WH",
		"database":  nil,
	})
	if err != nil {
		t.Fatalf("ContextFromAny error: %v", err)
	}

	if !sctx["warehouse"].IsPresent() || sctx["warehouse"].Value() != "WH" {
		t.Errorf("warehouse = %+v, want Present(WH)", sctx["warehouse"])
	}
	if sctx["database"].IsPresent() {
		t.Errorf("database should be absent, got Present(%q)", sctx["database"].Value())
	}
}

func TestContextFromAny_RejectsUnsupportedTypes(t *testing.T) {
	cases := map[string]any{
		"int":   3,
		"bool":  true,
		"float": 1.5,
		"slice": []string{"a"},
	}
	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := cache.ContextFromAny(map[string]any{"warehouse": v})
			if err == nil {
				t.Fatalf("expected validation error for %T value", v)
			}
			if !strings.Contains(err.Error(), "warehouse") {
				t.Errorf("error should name the offending key, got: %v", err)
			}
		})
	}
}

// ─── DeriveKey ──────────────────────────────────────────────────────────────

func TestDeriveKey_NullAndAbsentAreEquivalent(t *testing.T) {
	withNull, err := cache.ContextFromAny(map[string]any{
		"warehouse": "WH",
		"database":  nil,
	})
	if err != nil {
		t.Fatal(err)
	}
	without, err := cache.ContextFromAny(map[string]any{
		"warehouse": "WH",
	})
	if err != nil {
		t.Fatal(err)
	}

	k1 := cache.DeriveKey(stmtHash, "prod", withNull)
	k2 := cache.DeriveKey(stmtHash, "prod", without)
	if k1 != k2 {
		t.Errorf("null and absent database produced different keys:\n  %s\n  %s", k1, k2)
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	sctx := cache.SessionContext{
		"warehouse": cache.Present("WH"),
		"schema":    cache.Present("PUBLIC"),
		"database":  cache.Present("ANALYTICS"),
	}

	first := cache.DeriveKey(stmtHash, "prod", sctx)
	for i := 0; i < 10; i++ {
		if got := cache.DeriveKey(stmtHash, "prod", sctx); got != first {
			t.Fatalf("call %d produced %s, want %s", i, got, first)
		}
	}
}

func TestDeriveKey_DistinguishesInputs(t *testing.T) {
	base := cache.SessionContext{"warehouse": cache.Present("WH")}

	baseKey := cache.DeriveKey(stmtHash, "prod", base)

	if k := cache.DeriveKey("other-hash", "prod", base); k == baseKey {
		t.Error("different statement hashes should produce different keys")
	}
	if k := cache.DeriveKey(stmtHash, "dev", base); k == baseKey {
		t.Error("different profiles should produce different keys")
	}
	other := cache.SessionContext{"warehouse": cache.Present("WH2")}
	if k := cache.DeriveKey(stmtHash, "prod", other); k == baseKey {
		t.Error("different warehouse values should produce different keys")
	}
}

func TestDeriveKey_EmptyContextEqualsAllAbsent(t *testing.T) {
	allAbsent := cache.SessionContext{
		"warehouse": cache.Absent(),
		"database":  cache.Absent(),
	}

	k1 := cache.DeriveKey(stmtHash, "prod", cache.SessionContext{})
	k2 := cache.DeriveKey(stmtHash, "prod", allAbsent)
	k3 := cache.DeriveKey(stmtHash, "prod", nil)
	if k1 != k2 || k1 != k3 {
		t.Errorf("empty, all-absent, and nil contexts should share a key: %s / %s / %s", k1, k2, k3)
	}
}

// ─── Normalized ─────────────────────────────────────────────────────────────

func TestNormalized_DropsAbsentEntries(t *testing.T) {
	sctx := cache.SessionContext{
		"warehouse": cache.Present("WH"),
		"database":  cache.Absent(),
		"role":      cache.Present(""),
	}

	got := sctx.Normalized()
	if len(got) != 2 {
		t.Fatalf("Normalized() = %v, want 2 entries", got)
	}
	if got["warehouse"] != "WH" {
		t.Errorf("warehouse = %q, want WH", got["warehouse"])
	}
	// Present("") is a set-but-empty value, distinct from absent.
	if v, ok := got["role"]; !ok || v != "" {
		t.Errorf("role should survive normalization as empty string, got %v", got)
	}
	if _, ok := got["database"]; ok {
		t.Error("absent database should be dropped by normalization")
	}
}
