package repository

import (
	"context"
	"errors"
	"testing"

	"ads-api/pkg/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSchema(t *testing.T) {
	for dialect, statements := range schemaStatements {
		t.Run(string(dialect), func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectExec(`CREATE TABLE IF NOT EXISTS advertisements`).WillReturnResult(sqlmock.NewResult(0, 0))
			for range statements[1:] {
				mock.ExpectExec(`CREATE INDEX`).WillReturnResult(sqlmock.NewResult(0, 0))
			}

			require.NoError(t, EnsureSchema(context.Background(), db, dialect))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEnsureSchema_Errors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.Error(t, EnsureSchema(context.Background(), db, database.Dialect("oracle")))

	mock.ExpectExec(`CREATE TABLE`).WillReturnError(errors.New("permission denied"))
	err = EnsureSchema(context.Background(), db, database.Postgres)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}
