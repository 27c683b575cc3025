package sqlassets

import "embed"

//go:embed schema/platform/tenants.sql
var TenantsSQL string

//go:embed schema/platform/module_entitlements.sql
var ModuleEntitlementsSQL string

// MigrationsFS holds the declared per-schema migrations. Each top-level
// directory is a schema key ("core" plus one directory per optional module);
// files apply in lexicographic order.
//
//go:embed migrations
var MigrationsFS embed.FS
