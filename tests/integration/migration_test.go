//go:build integration

package integration_test

import (
	"context"
	"testing"

	"github.com/Strob0t/TestForge/internal/adapter/postgres"
)

// totalMigrations must match the number of files in
// internal/adapter/postgres/migrations.
const totalMigrations = 1

func TestMigrationUpDown(t *testing.T) {
	ctx := context.Background()

	// Up is idempotent; TestMain already applied the schema.
	if err := postgres.RunMigrations(ctx, testDSN); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	version, err := postgres.MigrationVersion(ctx, testDSN)
	if err != nil {
		t.Fatalf("migration version: %v", err)
	}
	if version != totalMigrations {
		t.Fatalf("expected version %d after up, got %d", totalMigrations, version)
	}

	if err := postgres.RollbackMigrations(ctx, testDSN, totalMigrations); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	version, err = postgres.MigrationVersion(ctx, testDSN)
	if err != nil {
		t.Fatalf("migration version after rollback: %v", err)
	}
	if version != 0 {
		t.Fatalf("expected version 0 after full rollback, got %d", version)
	}

	// Re-apply so the remaining tests still have a schema to run against.
	if err := postgres.RunMigrations(ctx, testDSN); err != nil {
		t.Fatalf("re-apply migrations: %v", err)
	}
	version, err = postgres.MigrationVersion(ctx, testDSN)
	if err != nil {
		t.Fatalf("migration version after re-apply: %v", err)
	}
	if version != totalMigrations {
		t.Fatalf("expected version %d after re-apply, got %d", totalMigrations, version)
	}
}
