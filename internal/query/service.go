package query

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/igloolabs/igloo-mcp/internal/cache"
	"github.com/igloolabs/igloo-mcp/internal/config"
)

// Request describes one execution through the cache-aware service.
type Request struct {
	// Statement is the SQL text to execute.
	Statement string
	// Profile names the profile to execute under. Empty uses the
	// configured default.
	Profile string
	// Overrides are per-request session settings layered over the
	// profile's own. Values are string or nil; an explicit nil removes
	// the profile's setting for this request.
	Overrides map[string]any
	// Refresh bypasses the cache lookup and overwrites the stored
	// entry with a fresh execution.
	Refresh bool
}

// Response is the outcome of a cache-aware execution.
type Response struct {
	Profile      string
	CacheKey     string
	CacheHit     bool
	Cached       bool
	RaggedSchema bool
	Columns      []string
	Rows         []cache.Row
	RowCount     int
	ExecutionID  string
}

// Service executes statements through the result cache: derive the key,
// look up, and on a miss run remotely, derive columns, and store. A nil
// store means caching is disabled and every request executes remotely.
type Service struct {
	runner Runner
	store  *cache.Store
	cfg    config.Config
}

// NewService wires a runner, an optional store, and configuration.
func NewService(runner Runner, store *cache.Store, cfg config.Config) *Service {
	return &Service{runner: runner, store: store, cfg: cfg}
}

// CacheEnabled reports whether a result cache is attached.
func (s *Service) CacheEnabled() bool { return s.store != nil }

// Execute runs one request. Cache read/write failures degrade to
// uncached execution with a logged warning — a broken cache must never
// fail a query that the warehouse can answer.
func (s *Service) Execute(ctx context.Context, req Request) (*Response, error) {
	statement := strings.TrimSpace(req.Statement)
	if statement == "" {
		return nil, fmt.Errorf("query: empty statement")
	}

	profile, profileName, err := s.cfg.Profile(req.Profile)
	if err != nil {
		return nil, err
	}

	// Effective session context: profile settings overlaid with the
	// request's overrides. Validation happens before key derivation so
	// a malformed context can never produce (or store under) a key.
	raw := profile.SessionContext()
	for k, v := range req.Overrides {
		raw[k] = v
	}
	sctx, err := cache.ContextFromAny(raw)
	if err != nil {
		return nil, err
	}

	fingerprint := Fingerprint(statement)
	key := cache.DeriveKey(fingerprint, profileName, sctx)

	if s.store != nil && !req.Refresh {
		entry, ok, err := s.store.Get(key)
		if err != nil {
			log.Printf("WARNING: cache lookup failed, executing remotely: %v", err)
		} else if ok {
			return &Response{
				Profile:     profileName,
				CacheKey:    key,
				CacheHit:    true,
				Cached:      true,
				Columns:     entry.Columns,
				Rows:        entry.Rows,
				RowCount:    entry.RowCount,
				ExecutionID: entry.ExecutionID,
			}, nil
		}
	}

	result, err := s.runner.Execute(ctx, profile, statement, sctx.Normalized())
	if err != nil {
		return nil, err
	}

	columns, ragged := cache.DeriveColumns(result.Rows, result.Columns)
	if ragged {
		log.Printf("WARNING: result rows for key %.12s have differing column sets; caching the union", key)
	}

	resp := &Response{
		Profile:      profileName,
		CacheKey:     key,
		RaggedSchema: ragged,
		Columns:      columns,
		Rows:         result.Rows,
		RowCount:     len(result.Rows),
		ExecutionID:  result.ExecutionID,
	}

	if s.store != nil {
		entry := &cache.Entry{
			Key:           key,
			StatementHash: fingerprint,
			Profile:       profileName,
			Context:       sctx.Normalized(),
			Columns:       columns,
			Rows:          result.Rows,
			ExecutionID:   result.ExecutionID,
		}
		if err := s.store.Put(entry); err != nil {
			log.Printf("WARNING: caching result failed: %v", err)
		} else {
			resp.Cached = true
		}
	}

	return resp, nil
}
