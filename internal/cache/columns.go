package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Row is a single result row: column name → value.
type Row map[string]any

// DeriveColumns returns the ordered column list for a result set.
//
// When explicit metadata is supplied (non-empty) it is authoritative and
// returned verbatim. Otherwise the columns are derived as the union of
// keys across every row — never just the first. Sparse results routinely
// omit null columns from early rows, and deriving from row one alone
// silently drops any column that first appears later. Derived columns
// are sorted so repeated derivation over the same data yields the same
// ordering, which tabular serialization depends on.
//
// The second return reports a ragged schema: at least two rows with
// differing key sets. Heterogeneous rows are expected (nullable/sparse
// columns) and never an error; the flag is a data-quality signal for the
// caller to surface.
func DeriveColumns(rows []Row, explicit []string) ([]string, bool) {
	union := make(map[string]struct{})
	for _, r := range rows {
		for name := range r {
			union[name] = struct{}{}
		}
	}

	ragged := false
	for _, r := range rows {
		if len(r) != len(union) {
			ragged = true
			break
		}
	}

	if len(explicit) > 0 {
		return explicit, ragged
	}

	columns := make([]string, 0, len(union))
	for name := range union {
		columns = append(columns, name)
	}
	sort.Strings(columns)
	return columns, ragged
}

// CheckColumns verifies that columns is a superset of every key present
// in every row. A column list that would drop a row's field corrupts the
// cached representation relative to the original result set, so the
// violation is reported as an error instead of truncating silently.
func CheckColumns(columns []string, rows []Row) error {
	known := make(map[string]struct{}, len(columns))
	for _, name := range columns {
		known[name] = struct{}{}
	}

	var missing []string
	seen := make(map[string]struct{})
	for _, r := range rows {
		for name := range r {
			if _, ok := known[name]; ok {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	sort.Strings(missing)
	return fmt.Errorf("cache: column list drops row fields: %s", strings.Join(missing, ", "))
}
