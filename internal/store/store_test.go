// Filename: store/store_test.go
package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
)

var issueColumns = []string{"id", "run_id", "unit", "type", "severity", "file", "line", "col", "description", "taint_path", "evidence", "created_at"}

func sampleResult() *schemas.AnalysisResult {
	return &schemas.AnalysisResult{
		Issues: []schemas.SecurityIssue{
			{
				ID:          "issue-1",
				Type:        "sql-injection",
				Severity:    schemas.SeverityCritical,
				Location:    schemas.Location{File: "app.js", Line: 2},
				Description: "DEFINITELY_TAINTED data reaches db.query argument 0",
				Unit:        "handler",
			},
		},
		TaintLevels: map[string]string{"handler.q": "DEFINITELY_TAINTED"},
		Statistics: schemas.Statistics{
			TotalVariables:        1,
			AutomaticallyInferred: 1,
		},
		ExecutionTimeMs: 12,
	}
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSaveRun(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist a run and its issues without rollback errors", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		observedLogger := zap.New(observedZapCore)

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(ctx, mockPool, observedLogger)
		require.NoError(t, err)

		runID := uuid.NewString()
		result := sampleResult()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(`INSERT INTO runs`).
			WithArgs(runID, int64(12), 1, 1, 0, 1, 0, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"issues"}, issueColumns).
			WillReturnResult(1)

		// Expect Commit AND the subsequent Rollback (which returns ErrTxClosed).
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.SaveRun(ctx, runID, result))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, observedLogs.All(), "Expected no errors logged on successful commit")
	})

	t.Run("should skip the copy when there are no issues", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		runID := uuid.NewString()
		result := sampleResult()
		result.Issues = nil

		mockPool.ExpectBegin()
		mockPool.ExpectExec(`INSERT INTO runs`).
			WithArgs(runID, int64(12), 1, 1, 0, 0, 0, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.SaveRun(ctx, runID, result))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should roll back when the copy fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		runID := uuid.NewString()
		copyErr := errors.New("copy failed")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(`INSERT INTO runs`).
			WithArgs(runID, int64(12), 1, 1, 0, 1, 0, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"issues"}, issueColumns).
			WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err = store.SaveRun(ctx, runID, sampleResult())
		require.Error(t, err)
		assert.ErrorIs(t, err, copyErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEnsureSchema(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(nil)
	store, err := New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)

	mockPool.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestIssuesForRun(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(nil)
	store, err := New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)

	runID := uuid.NewString()
	rows := pgxmock.NewRows([]string{"id", "unit", "type", "severity", "file", "line", "col", "description", "evidence"}).
		AddRow("issue-1", "handler", "sql-injection", "critical", "app.js", 2, 0, "desc", []byte(`{}`))

	mockPool.ExpectQuery(`SELECT id, unit, type, severity`).
		WithArgs(runID).
		WillReturnRows(rows)

	issues, err := store.IssuesForRun(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "sql-injection", issues[0].Type)
	assert.Equal(t, schemas.SeverityCritical, issues[0].Severity)
	assert.Equal(t, 2, issues[0].Location.Line)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
