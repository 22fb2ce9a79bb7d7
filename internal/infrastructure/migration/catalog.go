package migration

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4/source"
)

const versionWidth = 6

// Entry is one migration of a directory, identified by its up file
type Entry struct {
	Version uint
	Name    string
	// HasDown is false when the rollback file is missing
	HasDown bool
}

func (e Entry) String() string {
	return fmt.Sprintf("%0*d_%s", versionWidth, e.Version, e.Name)
}

// Catalog reads the migrations in files in version order, with the same file
// name rules golang-migrate applies. A missing directory is empty; a .sql
// file golang-migrate cannot parse, or two up files sharing a version, is an
// error.
func Catalog(files fs.FS) ([]Entry, error) {
	dirEntries, err := fs.ReadDir(files, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := map[uint]*Entry{}
	downs := map[uint]bool{}
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".sql") {
			continue
		}
		m, err := source.Parse(de.Name())
		if err != nil {
			return nil, fmt.Errorf("migration file %q: %w", de.Name(), err)
		}
		if m.Direction == source.Down {
			downs[m.Version] = true
			continue
		}
		if prev, dup := byVersion[m.Version]; dup {
			return nil, fmt.Errorf("migration version %d used by %s and %s", m.Version, prev.Name, m.Identifier)
		}
		byVersion[m.Version] = &Entry{Version: m.Version, Name: m.Identifier}
	}

	catalog := make([]Entry, 0, len(byVersion))
	for v, e := range byVersion {
		e.HasDown = downs[v]
		catalog = append(catalog, *e)
	}
	slices.SortFunc(catalog, func(a, b Entry) int { return cmp.Compare(a.Version, b.Version) })
	return catalog, nil
}

// Pair is a freshly written up/down migration
type Pair struct {
	Entry
	UpPath   string
	DownPath string
}

// Create writes the next migration pair into dir, numbered one past the
// highest version already there. Existing files are never overwritten.
func Create(dir, name, description string, now time.Time) (*Pair, error) {
	slug := slugify(name)
	if slug == "" {
		return nil, errors.New("migration name must contain letters or digits")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create migrations directory: %w", err)
	}
	catalog, err := Catalog(os.DirFS(dir))
	if err != nil {
		return nil, err
	}

	var next uint = 1
	if n := len(catalog); n > 0 {
		next = catalog[n-1].Version + 1
	}
	p := &Pair{Entry: Entry{Version: next, Name: slug, HasDown: true}}
	p.UpPath = filepath.Join(dir, p.String()+".up.sql")
	p.DownPath = filepath.Join(dir, p.String()+".down.sql")

	header := fmt.Sprintf("-- %s\n-- Created: %s\n", name, now.UTC().Format(time.RFC3339))
	if description != "" {
		header += "-- " + description + "\n"
	}
	up := header + "-- Amounts are BIGINT minor units.\n\n"
	down := header + "-- Rollback\n\n"

	if err := writeNew(p.UpPath, up); err != nil {
		return nil, err
	}
	if err := writeNew(p.DownPath, down); err != nil {
		_ = os.Remove(p.UpPath)
		return nil, err
	}
	return p, nil
}

func writeNew(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// slugify lowercases name and joins its ASCII letter and digit runs with "_"
func slugify(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
	return strings.Join(words, "_")
}
