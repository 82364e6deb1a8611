package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/config"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}

	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections, "sqlite is limited to one connection")
}

func TestEmbeddedMigrations(t *testing.T) {
	all := GetMigrations()
	require.NotEmpty(t, all)

	for i, m := range all {
		assert.NotEmpty(t, m.UpScript, m.String())
		assert.NotEmpty(t, m.DownScript, m.String())
		if i > 0 {
			assert.Greater(t, m.Version, all[i-1].Version)
		}
	}

	m := GetMigrationByVersion(1)
	require.NotNil(t, m)
	assert.Equal(t, "000001_create_posts", m.String())
	assert.Nil(t, GetMigrationByVersion(9999))
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		env     string
		mode    string
		want    SchemaPlan
		wantErr bool
	}{
		{name: "hybrid dev", driver: "postgres", env: "development", want: SchemaPlan{Mode: "hybrid", RunSQL: true, AutoMigrate: true}},
		{name: "hybrid prod", driver: "postgres", env: "production", mode: "hybrid", want: SchemaPlan{Mode: "hybrid", RunSQL: true}},
		{name: "hybrid staging", driver: "postgres", env: "staging", mode: "hybrid", want: SchemaPlan{Mode: "hybrid", RunSQL: true}},
		{name: "sql only", driver: "postgres", env: "development", mode: "sql", want: SchemaPlan{Mode: "sql", RunSQL: true}},
		{name: "auto dev", driver: "postgres", env: "development", mode: "auto", want: SchemaPlan{Mode: "auto", AutoMigrate: true}},
		{name: "auto prod refused", driver: "postgres", env: "production", mode: "auto", wantErr: true},
		{name: "unknown mode", driver: "postgres", env: "development", mode: "magic", wantErr: true},
		{name: "unknown mode on sqlite", driver: "sqlite", env: "test", mode: "magic", wantErr: true},
		{name: "sqlite always auto", driver: "sqlite", env: "production", mode: "sql", want: SchemaPlan{Mode: "sql", AutoMigrate: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{DBDriver: tt.driver, Env: tt.env, DBSchemaMode: tt.mode}
			plan, err := PlanSchema(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan)
		})
	}
}

func TestApplySchemaSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{DBDriver: "sqlite", Env: "test"}
	require.NoError(t, configurePool(db, cfg))

	status, err := GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"posts", "follower_snapshots", "time_slot_configs", "platform_credentials"}, status.MissingTables)
	assert.False(t, status.Current())

	require.NoError(t, ApplySchema(context.Background(), db, cfg))

	for _, model := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(model), fmt.Sprintf("%T", model))
	}
	assert.True(t, db.Migrator().HasIndex(&models.FollowerSnapshot{}, "idx_follower_snapshots_owner_recorded"))

	status, err = GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.False(t, status.RunSQL)
	assert.Equal(t, "sqlite", status.Driver)
	assert.Empty(t, status.MissingTables)
	assert.True(t, status.Current())
}

func TestVerifySchema_NamesMissingTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, configurePool(db, &config.Config{DBDriver: "sqlite"}))
	require.NoError(t, db.AutoMigrate(&models.Post{}, &models.TimeSlotConfig{}))

	err = VerifySchema(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "follower_snapshots")
	assert.Contains(t, err.Error(), "platform_credentials")
	assert.NotContains(t, err.Error(), "time_slot_configs")

	require.NoError(t, db.AutoMigrate(&models.FollowerSnapshot{}, &models.PlatformCredential{}))
	assert.NoError(t, VerifySchema(context.Background(), db))
}

type fakeMigrationStore struct {
	applied []int
	failOn  int
}

func (f *fakeMigrationStore) GetAppliedMigrations(context.Context) ([]int, error) {
	return f.applied, nil
}

func (f *fakeMigrationStore) ApplyMigration(_ context.Context, version int, _, _ string) error {
	if version == f.failOn {
		return errors.New("syntax error")
	}
	f.applied = append(f.applied, version)
	return nil
}

func (f *fakeMigrationStore) RemoveMigration(context.Context, int) error { return nil }

func TestApplyPending(t *testing.T) {
	registered := []Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}

	store := &fakeMigrationStore{applied: []int{1}}
	require.NoError(t, applyPending(context.Background(), store, []int{1}, registered))
	assert.Equal(t, []int{1, 2, 3}, store.applied)

	store = &fakeMigrationStore{failOn: 2}
	err := applyPending(context.Background(), store, nil, registered)
	require.Error(t, err)
	assert.Equal(t, []int{1}, store.applied, "stops at the first failing migration")

	err = applyPending(context.Background(), &fakeMigrationStore{}, []int{1, 7}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000007")
}

func TestIsMissingTableError(t *testing.T) {
	assert.True(t, isMissingTableError(fmt.Errorf("query: %w", &pgconn.PgError{Code: pgUndefinedTable})))
	assert.False(t, isMissingTableError(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isMissingTableError(errors.New("no such table: migration_logs")))
	assert.False(t, isMissingTableError(errors.New("connection refused")))
}
