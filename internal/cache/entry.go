package cache

// Entry is one cached result set, keyed by its derived cache key.
type Entry struct {
	Key           string            `json:"key"`
	StatementHash string            `json:"statement_hash"`
	Profile       string            `json:"profile"`
	Context       map[string]string `json:"context,omitempty"`
	Columns       []string          `json:"columns"`
	Rows          []Row             `json:"rows,omitempty"`
	RowCount      int               `json:"row_count"`
	ByteSize      int64             `json:"byte_size"`
	HitCount      int               `json:"hit_count"`
	ExecutionID   string            `json:"execution_id,omitempty"`
	CreatedAt     string            `json:"created_at"`
	LastHitAt     *string           `json:"last_hit_at,omitempty"`
	ExpiresAt     *string           `json:"expires_at,omitempty"`
}

// Stats holds aggregate cache statistics.
type Stats struct {
	Entries    int      `json:"entries"`
	TotalRows  int      `json:"total_rows"`
	TotalBytes int64    `json:"total_bytes"`
	TotalHits  int      `json:"total_hits"`
	Profiles   []string `json:"profiles"`
}
