package engine

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// CoreSchema is the schema key every tenant carries; module schemas are
// conditional on entitlements.
const CoreSchema = "core"

// Migration is one declared, ordered unit of schema change. The id is the
// migration file's name without extension; lexicographic file order is the
// declared order.
type Migration struct {
	ID  string
	SQL string
}

// Catalog holds the declared migrations per schema key, loaded once from the
// embedded migrations tree.
type Catalog struct {
	declared map[string][]Migration
	modules  []string
}

// LoadCatalog reads the migrations tree rooted at root. Each directory is a
// schema key containing .sql files; a core directory is mandatory.
func LoadCatalog(fsys fs.FS, root string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations root: %w", err)
	}

	declared := make(map[string][]Migration)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		schema := entry.Name()

		files, err := fs.ReadDir(fsys, path.Join(root, schema))
		if err != nil {
			return nil, fmt.Errorf("read migrations for %s: %w", schema, err)
		}

		var migrations []Migration
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
				continue
			}
			contents, err := fs.ReadFile(fsys, path.Join(root, schema, file.Name()))
			if err != nil {
				return nil, fmt.Errorf("read migration %s/%s: %w", schema, file.Name(), err)
			}
			migrations = append(migrations, Migration{
				ID:  strings.TrimSuffix(file.Name(), ".sql"),
				SQL: string(contents),
			})
		}
		if len(migrations) == 0 {
			continue
		}

		// fs.ReadDir returns entries sorted by name, which is the declared order.
		declared[schema] = migrations
	}

	if _, ok := declared[CoreSchema]; !ok {
		return nil, fmt.Errorf("migrations tree %s declares no core migrations", root)
	}

	var modules []string
	for schema := range declared {
		if schema != CoreSchema {
			modules = append(modules, schema)
		}
	}
	sort.Strings(modules)

	return &Catalog{declared: declared, modules: modules}, nil
}

// Declared returns the ordered migrations for a schema key.
func (c *Catalog) Declared(schema string) []Migration {
	migrations := c.declared[schema]
	out := make([]Migration, len(migrations))
	copy(out, migrations)
	return out
}

// Modules lists the optional module schema keys in stable order.
func (c *Catalog) Modules() []string {
	out := make([]string, len(c.modules))
	copy(out, c.modules)
	return out
}

// HasSchema reports whether the catalog declares migrations for the schema key.
func (c *Catalog) HasSchema(schema string) bool {
	_, ok := c.declared[schema]
	return ok
}
