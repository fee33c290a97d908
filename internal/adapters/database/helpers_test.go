package database_test

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/persianhub/backend/internal/infrastructure/clients/postgres"
	"github.com/stretchr/testify/require"
)

func newMockClient(t *testing.T) (*postgres.Client, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	return postgres.NewClientFromDB(db), mock
}
