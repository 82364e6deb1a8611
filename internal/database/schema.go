package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/config"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/middleware"

	"gorm.io/gorm"
)

const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan is what ApplySchema does for one configuration.
type SchemaPlan struct {
	Mode        string
	RunSQL      bool
	AutoMigrate bool
}

// SchemaStatus reports how far the database is from the schema the pipeline needs.
type SchemaStatus struct {
	SchemaPlan
	Environment       string
	Driver            string
	AppliedVersions   []int
	PendingMigrations []Migration
	// MissingTables names pipeline tables (posts, follower snapshots, slot
	// configs, credentials) that do not exist yet.
	MissingTables []string
}

// Current reports whether nothing is pending and every table exists.
func (s *SchemaStatus) Current() bool {
	return len(s.PendingMigrations) == 0 && len(s.MissingTables) == 0
}

// PlanSchema decides which schema mechanisms run. The embedded SQL is written
// for PostgreSQL, so sqlite databases are always auto-migrated. AutoMigrate
// never runs against production or staging postgres.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		mode = SchemaModeHybrid
	}
	switch mode {
	case SchemaModeHybrid, SchemaModeSQL, SchemaModeAuto:
	default:
		return SchemaPlan{}, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}

	plan := SchemaPlan{Mode: mode}
	if cfg.DBDriver == "sqlite" {
		plan.AutoMigrate = true
		return plan, nil
	}

	shared := cfg.IsProduction() || cfg.Env == "staging"
	switch mode {
	case SchemaModeSQL:
		plan.RunSQL = true
	case SchemaModeAuto:
		if shared {
			return SchemaPlan{}, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q", cfg.Env)
		}
		plan.AutoMigrate = true
	case SchemaModeHybrid:
		plan.RunSQL = true
		plan.AutoMigrate = !shared
	}
	return plan, nil
}

// ApplySchema runs the planned migrations and then checks that every
// pipeline table exists.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.RunSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if plan.AutoMigrate {
		middleware.Logger.InfoContext(ctx, "auto-migrating pipeline models",
			slog.String("mode", plan.Mode),
			slog.String("env", cfg.Env),
			slog.Int("models", len(PersistentModels())),
		)
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	return VerifySchema(ctx, db)
}

// VerifySchema fails when any pipeline table is missing. Processes that do
// not apply the schema themselves call it at startup.
func VerifySchema(ctx context.Context, db *gorm.DB) error {
	missing, err := missingTables(db.WithContext(ctx))
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("schema incomplete, missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func missingTables(db *gorm.DB) ([]string, error) {
	var missing []string
	for _, model := range PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parse model %T: %w", model, err)
		}
		if !db.Migrator().HasTable(stmt.Schema.Table) {
			missing = append(missing, stmt.Schema.Table)
		}
	}
	return missing, nil
}

// GetSchemaStatus reports the plan for cfg, migrations not yet applied and
// tables not yet created.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		SchemaPlan:  plan,
		Environment: cfg.Env,
		Driver:      db.Dialector.Name(),
	}
	if status.MissingTables, err = missingTables(db.WithContext(ctx)); err != nil {
		return nil, err
	}
	if !plan.RunSQL {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied

	appliedSet := make(map[int]bool, len(applied))
	for _, version := range applied {
		appliedSet[version] = true
	}
	for _, m := range GetMigrations() {
		if !appliedSet[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
