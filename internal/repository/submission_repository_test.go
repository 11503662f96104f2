package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/club-collab-api/internal/models"
)

func TestSubmissionRepositoryCreateDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectQuery("INSERT INTO submission").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	sub := &models.Submission{TeamID: 7, TaskID: 2, Code: "x = 1"}
	require.NoError(t, repo.Create(context.Background(), sub))
	assert.Equal(t, int64(11), sub.ID)
	assert.Equal(t, models.SubmissionNew, sub.Status)
}

func TestSubmissionRepositoryUpdateStatusMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec("UPDATE submission SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), 99, models.SubmissionOK, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSubmissionRepositoryUpdateStatusWithCompletion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec("UPDATE submission SET status").
		WithArgs(int64(11), string(models.SubmissionFailed), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	completion := 90 * time.Second
	require.NoError(t, repo.UpdateStatus(context.Background(), 11, models.SubmissionFailed, &completion))
}
