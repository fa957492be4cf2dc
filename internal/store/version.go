package store

// CurrentSchemaVersion is the fingerprint-row schema version this build of
// kiln writes and expects. The orchestrator folds render.EngineSchemaVersion
// into the value it passes to Open/Upsert so that upgrading the bundled
// template or Markdown engine forces a full rebuild even though the
// on-disk table layout (schema.go, migrations.go) hasn't changed.
const CurrentSchemaVersion = 1
