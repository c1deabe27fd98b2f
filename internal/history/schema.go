package history

// SQL schema for the history database. Both store implementations keep
// the same two-table layout: schema_versions holds full serialized
// signatures, evolutions records applied batch labels.

const createVersionsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_versions (
    version INTEGER PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    signature BLOB NOT NULL,
    created_at INTEGER NOT NULL
)`

const createEvolutionsTableSQL = `
CREATE TABLE IF NOT EXISTS evolutions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    app TEXT NOT NULL,
    label TEXT NOT NULL,
    version INTEGER NOT NULL,
    applied_at INTEGER NOT NULL,
    UNIQUE (app, label)
)`

const createEvolutionsIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_evolutions_app ON evolutions(app)`

func allSchemaSQL() []string {
	return []string{
		createVersionsTableSQL,
		createEvolutionsTableSQL,
		createEvolutionsIndexSQL,
	}
}
