package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func TestValidateDirRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"bad name":     "-- +goose Up\n-- +goose Down\n",
		"missing down": "-- +goose Up\nSELECT 1;\n",
		"unbalanced":   "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n",
		"down first":   "-- +goose Down\n-- +goose Up\n",
	}
	for label, body := range cases {
		t.Run(label, func(t *testing.T) {
			dir := t.TempDir()
			name := "20240101000000_case.sql"
			if label == "bad name" {
				name = "case.sql"
			}
			if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := ValidateDir(dir); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidateDirRejectsEmptyDir(t *testing.T) {
	if err := ValidateDir(t.TempDir()); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Invoice Notes!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_invoice_notes.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	embedded, err := fs.Sub(Embedded, embeddedDir)
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if err := ValidateFS(embedded); err != nil {
		t.Fatalf("embedded migrations: %v", err)
	}
}

func TestValidateFSRejectsDuplicateVersions(t *testing.T) {
	body := []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	fsys := fstest.MapFS{
		"20240101000000_invoices.sql": {Data: body},
		"20240101000000_orders.sql":   {Data: body},
		"README.md":                   {Data: []byte("ignored")},
	}
	if err := ValidateFS(fsys); err == nil || !strings.Contains(err.Error(), "duplicate migration version") {
		t.Fatalf("expected duplicate version error, got %v", err)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Add Invoice Notes!":     "add_invoice_notes",
		"  orders -- courier  ":  "orders_courier",
		"2024 plan_price update": "2024_plan_price_update",
		"!!!":                    "",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Fatalf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
