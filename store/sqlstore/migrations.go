package sqlstore

type migration struct {
	version int
	sql     string
}

// migrations run in order; versions are sequential from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sources (
	path     TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	id           TEXT PRIMARY KEY,
	source_path  TEXT NOT NULL REFERENCES sources(path) ON DELETE CASCADE,
	last_name    TEXT NOT NULL DEFAULT '',
	first_name   TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS emails (
	id         TEXT PRIMARY KEY,
	contact_id TEXT NOT NULL REFERENCES contacts(id) ON UPDATE CASCADE ON DELETE CASCADE,
	address    TEXT NOT NULL,
	position   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_source ON contacts(source_path);
CREATE INDEX IF NOT EXISTS idx_emails_contact ON emails(contact_id, position);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
