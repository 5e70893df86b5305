package sqlitestore

const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	id   TEXT PRIMARY KEY,
	data BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS trees (
	id         TEXT PRIMARY KEY,
	entry_name TEXT NOT NULL,
	blob_id    TEXT NOT NULL,
	mode       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS commits (
	id               TEXT PRIMARY KEY,
	tree_id          TEXT NOT NULL,
	parents          TEXT NOT NULL DEFAULT '',
	author_name      TEXT NOT NULL,
	author_email     TEXT NOT NULL,
	author_when      TEXT NOT NULL,
	committer_name   TEXT NOT NULL,
	committer_email  TEXT NOT NULL,
	committer_when   TEXT NOT NULL,
	message          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS refs (
	name      TEXT PRIMARY KEY,
	commit_id TEXT NOT NULL
);
`
