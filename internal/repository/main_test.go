package repository

import (
	"testing"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/database"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupMockDB returns a postgres-dialect GORM handle backed by sqlmock.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

// setupSQLiteDB returns a migrated in-memory database private to the test.
func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func seedPost(t *testing.T, db *gorm.DB, p models.Post) *models.Post {
	t.Helper()
	if p.OwnerID == 0 {
		p.OwnerID = 1
	}
	if p.Content == "" {
		p.Content = "hello"
	}
	if p.ScheduledAt.IsZero() {
		p.ScheduledAt = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	}
	if p.Status == "" {
		p.Status = models.PostStatusScheduled
		p.IsApproved = true
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}
