package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sandgallery/sandgallery-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestAccountsMigrationGuardsBalance(t *testing.T) {
	content := readMigration(t, "create_accounts")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS accounts",
		"CHECK (credits >= 0)",
		"CHECK (storage_used_bytes >= 0)",
		"REFERENCES accounts(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS accounts",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreationsMigrationIndexesHistory(t *testing.T) {
	content := readMigration(t, "create_creations")

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS creations",
		"creations_user_created_idx",
		"CREATE TABLE IF NOT EXISTS video_analyses",
		"DROP TABLE IF EXISTS video_analyses",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Creation Tags!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_creation_tags.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestCreateSQLMigrationRefusesExistingName(t *testing.T) {
	dir := t.TempDir()
	if _, err := migrate.CreateSQLMigration(dir, "create creations"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := migrate.CreateSQLMigration(dir, "Create-Creations")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatal("expected error for a name with no usable characters")
	}
}
