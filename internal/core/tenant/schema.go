package tenant

import _ "embed"

// Schema is the DDL of the registry database. It is idempotent.
//
//go:embed schema.sql
var Schema string
