package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/vivekverma239/superfast-ai/internal/database"
)

func newSQLiteStore(t *testing.T, clock *fakeClock) *SQLStore {
	t.Helper()
	s, err := OpenSQLStore(context.Background(), database.Config{
		Driver: database.DriverSQLite,
		DSN:    ":memory:",
	}, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T, clock *fakeClock) Store {
		return newSQLiteStore(t, clock)
	})
}

func TestSQLStore_MigrateIsRepeatable(t *testing.T) {
	s := newSQLiteStore(t, newFakeClock())
	require.NoError(t, s.Migrate(context.Background()))
	assert.True(t, s.pool.DB().Migrator().HasTable("records"))
}

func newMockSQLStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	pool, err := database.NewPoolManager(gormDB, database.PoolConfig{}, zap.NewNop())
	require.NoError(t, err)
	return NewSQLStore(pool), mock
}

func TestSQLStore_QueryFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset by peer")

	t.Run("get", func(t *testing.T) {
		s, mock := newMockSQLStore(t)
		mock.ExpectQuery(`SELECT \* FROM "records"`).WillReturnError(boom)

		_, err := s.Get(ctx, Key{Collection: "memory", UserID: "u1", ID: "u1"})
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get not found", func(t *testing.T) {
		s, mock := newMockSQLStore(t)
		mock.ExpectQuery(`SELECT \* FROM "records"`).
			WillReturnRows(sqlmock.NewRows([]string{"collection", "user_id", "thread_id", "id", "data"}))

		_, err := s.Get(ctx, Key{Collection: "memory", UserID: "u1", ID: "u1"})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list", func(t *testing.T) {
		s, mock := newMockSQLStore(t)
		mock.ExpectQuery(`SELECT \* FROM "records" WHERE .* ORDER BY created_at ASC, seq ASC`).WillReturnError(boom)

		_, err := s.List(ctx, Query{Collection: "message", UserID: "u1", ThreadID: "t1"})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("put rolls back", func(t *testing.T) {
		s, mock := newMockSQLStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "records"`).WillReturnError(boom)
		mock.ExpectRollback()

		err := s.Put(ctx, rec("memory", "u1", "", "u1", `[]`))
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
