// Package cache implements the query-result cache for igloo-mcp.
//
// Result sets are keyed by a deterministic SHA-256 fingerprint of
// (statement hash, profile, session context). The session context is
// normalized before hashing: a parameter that is explicitly null and a
// parameter that is entirely absent are the same thing, so both collapse
// to "absent" and never reach the serialized form. Without that rule the
// same query executed by the same profile produces different keys
// depending on how the caller spelled "no database" — a false miss that
// re-runs an expensive remote query.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ContextValue is a tagged session-parameter value: Present carries a
// string, Absent carries nothing. There is no null — explicit nulls in
// caller input become Absent at the boundary (see ContextFromAny).
type ContextValue struct {
	present bool
	value   string
}

// Present wraps a set session parameter.
func Present(v string) ContextValue { return ContextValue{present: true, value: v} }

// Absent is the unset session parameter.
func Absent() ContextValue { return ContextValue{} }

// IsPresent reports whether the value is set.
func (v ContextValue) IsPresent() bool { return v.present }

// Value returns the string value; empty when absent.
func (v ContextValue) Value() string { return v.value }

// SessionContext maps session parameter names (warehouse, database,
// schema, role) to tagged values.
type SessionContext map[string]ContextValue

// ContextFromAny builds a SessionContext from a loosely-typed mapping
// as it arrives from callers (JSON tool arguments, config overlays).
// Nil values become Absent; strings become Present. Anything else is a
// validation error — coercing, say, an int to "3" could collide with a
// genuine string value, so unsupported types fail fast before a key is
// ever derived.
func ContextFromAny(raw map[string]any) (SessionContext, error) {
	sctx := make(SessionContext, len(raw))
	for name, v := range raw {
		switch val := v.(type) {
		case nil:
			sctx[name] = Absent()
		case string:
			sctx[name] = Present(val)
		default:
			return nil, fmt.Errorf("cache: context value for %q has unsupported type %T (want string or null)", name, v)
		}
	}
	return sctx, nil
}

// Normalized returns the context with every absent entry removed.
// This is the only view of the context that participates in hashing
// and persistence.
func (sc SessionContext) Normalized() map[string]string {
	out := make(map[string]string, len(sc))
	for name, v := range sc {
		if v.present {
			out[name] = v.value
		}
	}
	return out
}

// keyPayload is the canonical serialized form fed to the hash.
// encoding/json writes map keys in sorted order, which makes the
// serialization deterministic regardless of insertion order.
type keyPayload struct {
	Statement string            `json:"statement"`
	Profile   string            `json:"profile"`
	Context   map[string]string `json:"context"`
}

// DeriveKey computes the cache key for (statement fingerprint, profile,
// session context). It is pure: identical logical inputs always produce
// the identical digest, and contexts that differ only in null-vs-absent
// entries are identical logical inputs.
func DeriveKey(statementHash, profile string, sctx SessionContext) string {
	payload, _ := json.Marshal(keyPayload{
		Statement: statementHash,
		Profile:   profile,
		Context:   sctx.Normalized(),
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
