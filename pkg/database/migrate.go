package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
)

//go:embed schema/*.sql
var schemaFS embed.FS

func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	name := "schema/sqlite.sql"
	if driver == DriverPostgres {
		name = "schema/postgres.sql"
	}

	b, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	if _, err := db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
