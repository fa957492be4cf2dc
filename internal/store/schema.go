package store

// SQL schema for the fingerprint store.

const schemaFingerprints = `
CREATE TABLE IF NOT EXISTS fingerprints (
    item_key       TEXT PRIMARY KEY,
    content_hash   TEXT NOT NULL,
    schema_version INTEGER NOT NULL,
    output_paths   TEXT NOT NULL DEFAULT '[]'
);
`

const schemaMigrations = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// allSchemas is the ordered list of schema DDL statements that form the
// initial (version-1) database layout.
var allSchemas = []string{
	schemaFingerprints,
	schemaMigrations,
}
