// Filename: store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
)

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store persists analysis runs and their issues to PostgreSQL. Persistence
// is optional: runs without a configured database never construct one.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY,
	execution_time_ms  BIGINT NOT NULL,
	total_variables    INTEGER NOT NULL,
	inferred           INTEGER NOT NULL,
	unknown_count      INTEGER NOT NULL,
	issue_count        INTEGER NOT NULL,
	warning_count      INTEGER NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS issues (
	id          TEXT NOT NULL,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	unit        TEXT NOT NULL,
	type        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	file        TEXT NOT NULL,
	line        INTEGER NOT NULL,
	col         INTEGER NOT NULL,
	description TEXT NOT NULL,
	taint_path  JSONB,
	evidence    JSONB,
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (id, run_id)
)`

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun persists one analysis run and all of its issues in a single
// transaction.
func (s *Store) SaveRun(ctx context.Context, runID string, result *schemas.AnalysisResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit returns pgx.ErrTxClosed; that
		// is the normal path, not an error.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, execution_time_ms, total_variables, inferred, unknown_count, issue_count, warning_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		runID, result.ExecutionTimeMs,
		result.Statistics.TotalVariables, result.Statistics.AutomaticallyInferred, result.Statistics.UnknownCount,
		len(result.Issues), len(result.Warnings), now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if len(result.Issues) > 0 {
		if err := s.copyIssues(ctx, tx, runID, result.Issues, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Persisted analysis run",
		zap.String("run_id", runID),
		zap.Int("issues", len(result.Issues)),
	)
	return nil
}

func (s *Store) copyIssues(ctx context.Context, tx pgx.Tx, runID string, issues []schemas.SecurityIssue, now time.Time) error {
	rows := make([][]interface{}, len(issues))
	for i, issue := range issues {
		evidence := issue.Evidence
		if len(evidence) == 0 || string(evidence) == "null" {
			evidence = []byte("{}")
		}
		taintPath, err := json.Marshal(issue.TaintPath)
		if err != nil {
			return fmt.Errorf("failed to encode taint path: %w", err)
		}

		rows[i] = []interface{}{
			issue.ID, runID, issue.Unit,
			issue.Type, string(issue.Severity),
			issue.Location.File, issue.Location.Line, issue.Location.Column,
			issue.Description, taintPath, []byte(evidence), now,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"issues"},
		[]string{"id", "run_id", "unit", "type", "severity", "file", "line", "col", "description", "taint_path", "evidence", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy issues: %w", err)
	}
	if int(copyCount) != len(issues) {
		return fmt.Errorf("mismatch in copied issue count: expected %d, got %d", len(issues), copyCount)
	}
	return nil
}

// IssuesForRun loads the persisted issues of one run, ordered the same way
// the verifier emits them.
func (s *Store) IssuesForRun(ctx context.Context, runID string) ([]schemas.SecurityIssue, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, unit, type, severity, file, line, col, description, evidence
		 FROM issues WHERE run_id = $1 ORDER BY file, line, col, id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	var issues []schemas.SecurityIssue
	for rows.Next() {
		var issue schemas.SecurityIssue
		var severity string
		if err := rows.Scan(
			&issue.ID, &issue.Unit, &issue.Type, &severity,
			&issue.Location.File, &issue.Location.Line, &issue.Location.Column,
			&issue.Description, &issue.Evidence,
		); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issue.Severity = schemas.Severity(severity)
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read issues: %w", err)
	}
	return issues, nil
}
