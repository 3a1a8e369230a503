package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewPostgresStore(sqlxDB), mock, func() { db.Close() }
}

func workflowRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "nodes", "edges", "status", "created_at", "updated_at"})
}

func TestCreateWorkflow(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO workflows").
		WillReturnRows(workflowRows().AddRow("wf-1", "demo", []byte(`[]`), []byte(`[]`), "active", now, now))

	wf, err := store.CreateWorkflow(context.Background(), CreateWorkflowInput{
		Name:  "demo",
		Nodes: []byte(`[]`),
		Edges: []byte(`[]`),
	})
	require.NoError(t, err)
	assert.Equal(t, "wf-1", wf.ID)
	assert.Equal(t, WorkflowStatusActive, wf.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNextPending_Empty(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("UPDATE workflow_executions").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.ClaimNextPending(context.Background())
	assert.ErrorIs(t, err, ErrNoPendingExecution)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNextPending_Found(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("UPDATE workflow_executions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("exec-1"))

	id, err := store.ClaimNextPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "exec-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidTransition(t *testing.T) {
	assert.True(t, validTransition(ExecutionStatusPending, ExecutionStatusRunning))
	assert.True(t, validTransition(ExecutionStatusRunning, ExecutionStatusCompleted))
	assert.True(t, validTransition(ExecutionStatusRunning, ExecutionStatusFailed))
	assert.False(t, validTransition(ExecutionStatusPending, ExecutionStatusCompleted))
	assert.False(t, validTransition(ExecutionStatusCompleted, ExecutionStatusRunning))
	assert.False(t, validTransition(ExecutionStatusFailed, ExecutionStatusRunning))
}
