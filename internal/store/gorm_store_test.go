package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return NewGormStore(gdb), mock
}

func TestGormStore_CreateJob(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "jobs"`)).
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}).AddRow(42))
	mock.ExpectCommit()

	id, err := s.CreateJob(context.Background(), NewFields{Title: "t", Domain: "mfg"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_GetJob_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "jobs"`)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetJob(context.Background(), 1)
	assert.Error(t, err)
}

func TestGormStore_GetJob_DecodesMetadata(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now()
	cols := []string{"job_id", "title", "domain", "division", "proposal_content", "segments", "hitl_stages", "status", "human_decision", "llm_decision", "metadata", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "jobs"`)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			7, "t", "mfg", "memory", "content", "[]", "[2]", "pending", "pending", "pending",
			`{"agent_results":{"BP_Scouter":"v1"}}`, now, now,
		))

	job, err := s.GetJob(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), job.JobID)
	assert.Equal(t, []int{2}, job.HITLStages)
	assert.Equal(t, "v1", job.Metadata.AgentResults["BP_Scouter"])
}
