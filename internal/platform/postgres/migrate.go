package postgres

import (
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"proxy-store-backend/internal/common/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Migrate applies all pending embedded goose migrations.
func (c *Client) Migrate() error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(c.db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersion(c.db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	logger.Info().Int64("version", version).Msg("Database migrations applied")
	return nil
}
