// Filename: store/cache.go
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/xkilldash9x/lancet-sast/internal/analysis/static/javascript"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const cacheSchema = `
CREATE TABLE IF NOT EXISTS analyses (
	unit_id      TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	payload      TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	PRIMARY KEY (unit_id, content_hash)
)`

// SummaryCache persists completed unit analyses in a local SQLite file keyed
// by unit id and source content hash, so repeated runs over unchanged units
// skip analysis outright. It implements the resolver's Cache interface.
//
// A single connection serves all callers; SQLite connections are not safe
// for concurrent use, so operations serialize on a mutex. Cache traffic is
// small relative to analysis work.
type SummaryCache struct {
	mu   sync.Mutex
	conn *sqlite.Conn
}

// OpenSummaryCache opens or creates the cache database at path.
func OpenSummaryCache(path string) (*SummaryCache, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("open summary cache: %w", err)
	}

	if err := sqlitex.ExecuteTransient(conn, "PRAGMA synchronous = NORMAL", nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA temp_store = MEMORY", nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := sqlitex.ExecuteTransient(conn, cacheSchema, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create summary cache schema: %w", err)
	}
	return &SummaryCache{conn: conn}, nil
}

// Get loads the analysis derived from the given unit content, if present.
func (c *SummaryCache) Get(_ context.Context, unitID, contentHash string) (*javascript.Analysis, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var payload string
	found := false
	err := sqlitex.Execute(c.conn,
		`SELECT payload FROM analyses WHERE unit_id = ? AND content_hash = ?`,
		&sqlitex.ExecOptions{
			Args: []any{unitID, contentHash},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				payload = stmt.ColumnText(0)
				found = true
				return nil
			},
		})
	if err != nil {
		return nil, false, fmt.Errorf("read summary cache: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	var analysis javascript.Analysis
	if err := json.Unmarshal([]byte(payload), &analysis); err != nil {
		// A corrupt row behaves like a miss; the unit is re-analyzed and
		// the row overwritten.
		return nil, false, nil
	}
	return &analysis, true, nil
}

// Put stores or replaces the analysis for a unit's content hash.
func (c *SummaryCache) Put(_ context.Context, unitID, contentHash string, a *javascript.Analysis) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = sqlitex.Execute(c.conn,
		`INSERT OR REPLACE INTO analyses (unit_id, content_hash, payload, created_at) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{unitID, contentHash, string(payload), time.Now().Unix()},
		})
	if err != nil {
		return fmt.Errorf("write summary cache: %w", err)
	}
	return nil
}

// Len reports the number of cached analyses.
func (c *SummaryCache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	err := sqlitex.Execute(c.conn, `SELECT COUNT(*) FROM analyses`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	return count, err
}

// Close releases the underlying connection.
func (c *SummaryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
