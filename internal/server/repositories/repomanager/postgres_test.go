package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	return db, mock
}

func stubGoose(t *testing.T, fn func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error) {
	t.Helper()
	orig := gooseUpContext
	gooseUpContext = fn
	t.Cleanup(func() { gooseUpContext = orig })
}

func TestPostgresManager_AccountsUsesPool(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT .* FROM accounts").
		WithArgs("3c9a7e52-1d4b-4f6a-8e0c-b2d5f7a91c64").
		WillReturnError(sql.ErrNoRows)

	var m RepositoryManager = NewPostgresRepositoryManager(db)
	_, err := m.Accounts().FindByID(context.Background(), "3c9a7e52-1d4b-4f6a-8e0c-b2d5f7a91c64")
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresManager_RunMigrations(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	var gotDir string
	stubGoose(t, func(_ context.Context, _ *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		assert.Empty(t, opts)
		return nil
	})

	require.NoError(t, NewPostgresRepositoryManager(db).RunMigrations(context.Background()))
	assert.Equal(t, ".", gotDir)
}

func TestPostgresManager_RunMigrationsError(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	boom := errors.New("relation already exists")
	stubGoose(t, func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom })

	err := NewPostgresRepositoryManager(db).RunMigrations(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestPostgresManager_PingAndClose(t *testing.T) {
	db, mock := newDB(t)

	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	m := NewPostgresRepositoryManager(db)
	ctx := context.Background()

	assert.NoError(t, m.Ping(ctx))
	assert.Error(t, m.Ping(ctx))
	assert.NoError(t, m.Close(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}
