package database

const schema = `
CREATE TABLE anime_status (
	mal_id INTEGER PRIMARY KEY,
	key TEXT NOT NULL,
	completed BOOLEAN NOT NULL DEFAULT 0,
	episode_amount INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX idx_anime_status_key ON anime_status(key);

CREATE TABLE json_reference (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	name TEXT NOT NULL,
	info TEXT NOT NULL,
	reference_date TIMESTAMP NOT NULL
);

CREATE INDEX idx_json_reference_name ON json_reference(name);
CREATE INDEX idx_json_reference_run_id ON json_reference(run_id);
`

// migrations contains incremental schema changes applied in order based on
// the current user_version. migrations[0] is empty because version 0 uses the
// base schema.
var migrations = []string{
	"",
}
