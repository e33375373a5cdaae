package migrate

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

const versionLayout = "20060102150405"

var sqlTemplate = template.Must(template.New("migration").Parse(`-- +goose Up
-- +goose StatementBegin
-- {{.Slug}}
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert {{.Slug}}
-- +goose StatementEnd
`))

type migrationFile struct {
	Version string
	Slug    string
}

// slugify lowercases name and folds every run of characters outside
// [a-z0-9] into a single underscore.
func slugify(name string) string {
	var b strings.Builder
	gap := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if gap && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			gap = false
			continue
		}
		gap = true
	}
	return b.String()
}

// CreateSQLMigration writes an empty goose migration named
// <dir>/<YYYYMMDDHHMMSS>_<slug>.sql and returns its path. The file passes
// ValidateDir as written.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	file := migrationFile{Version: time.Now().UTC().Format(versionLayout), Slug: slugify(name)}
	if file.Slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}

	var body bytes.Buffer
	if err := sqlTemplate.Execute(&body, file); err != nil {
		return "", fmt.Errorf("render migration: %w", err)
	}
	filename := file.Version + "_" + file.Slug + ".sql"
	if err := validateContent(filename, body.String()); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, filename)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	if _, err := f.Write(body.Bytes()); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}
