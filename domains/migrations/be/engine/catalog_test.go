package engine

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	sqlassets "github.com/zenGate-Global/palmyra-fleet-migrator/database"
)

func TestLoadCatalogOrdersMigrationsByFilename(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/core/0002_documents.sql": {Data: []byte("CREATE TABLE documents (id INT)")},
		"migrations/core/0001_users.sql":     {Data: []byte("CREATE TABLE users (id INT)")},
		"migrations/core/0010_indexes.sql":   {Data: []byte("CREATE INDEX ON users (id)")},
		"migrations/crm/0001_contacts.sql":   {Data: []byte("CREATE TABLE contacts (id INT)")},
	}

	catalog, err := LoadCatalog(fsys, "migrations")
	require.NoError(t, err)

	core := catalog.Declared(CoreSchema)
	require.Len(t, core, 3)
	require.Equal(t, "0001_users", core[0].ID)
	require.Equal(t, "0002_documents", core[1].ID)
	require.Equal(t, "0010_indexes", core[2].ID)
	require.Equal(t, "CREATE TABLE users (id INT)", core[0].SQL)

	require.Equal(t, []string{"crm"}, catalog.Modules())
	require.True(t, catalog.HasSchema("crm"))
	require.False(t, catalog.HasSchema("billing"))
}

func TestLoadCatalogRequiresCoreSchema(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/crm/0001_contacts.sql": {Data: []byte("CREATE TABLE contacts (id INT)")},
	}

	_, err := LoadCatalog(fsys, "migrations")
	require.Error(t, err)
}

func TestLoadCatalogIgnoresNonSQLFiles(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/core/0001_users.sql": {Data: []byte("CREATE TABLE users (id INT)")},
		"migrations/core/README.md":      {Data: []byte("notes")},
	}

	catalog, err := LoadCatalog(fsys, "migrations")
	require.NoError(t, err)
	require.Len(t, catalog.Declared(CoreSchema), 1)
}

func TestLoadCatalogEmbeddedTree(t *testing.T) {
	t.Parallel()

	catalog, err := LoadCatalog(sqlassets.MigrationsFS, "migrations")
	require.NoError(t, err)

	require.True(t, catalog.HasSchema(CoreSchema))
	require.NotEmpty(t, catalog.Declared(CoreSchema))
	require.Contains(t, catalog.Modules(), "crm")
}

func TestDeclaredReturnsACopy(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/core/0001_users.sql": {Data: []byte("CREATE TABLE users (id INT)")},
	}

	catalog, err := LoadCatalog(fsys, "migrations")
	require.NoError(t, err)

	first := catalog.Declared(CoreSchema)
	first[0].SQL = "mutated"

	require.Equal(t, "CREATE TABLE users (id INT)", catalog.Declared(CoreSchema)[0].SQL)
}
