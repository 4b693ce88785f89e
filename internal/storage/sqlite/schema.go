package sqlite

// Schema is the complete database schema. Every statement is idempotent
// (IF NOT EXISTS) so the schema can be re-applied on startup.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
	id          TEXT PRIMARY KEY,
	content     TEXT NOT NULL,
	memory_type TEXT NOT NULL,
	metadata    TEXT,
	embedding   BLOB NOT NULL,
	dimension   INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(memory_type);
CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at);

CREATE TABLE IF NOT EXISTS reminders (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	remind_at  TIMESTAMP NOT NULL,
	session_id TEXT,
	fired      INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reminders_remind_at ON reminders(remind_at);

CREATE TABLE IF NOT EXISTS expenses (
	id          TEXT PRIMARY KEY,
	amount      REAL NOT NULL,
	currency    TEXT NOT NULL,
	category    TEXT,
	description TEXT,
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS habits (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	logged_at  TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS journal_entries (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	sentiment  TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS status_updates (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	source     TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS commits (
	id           TEXT PRIMARY KEY,
	sha          TEXT NOT NULL UNIQUE,
	repo         TEXT NOT NULL,
	branch       TEXT,
	author       TEXT,
	message      TEXT,
	title        TEXT,
	summary      TEXT,
	diff_snippet TEXT,
	created_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS completion_logs (
	id             TEXT PRIMARY KEY,
	function_name  TEXT NOT NULL,
	model          TEXT,
	input_messages TEXT,
	input_schema   TEXT,
	output_raw     TEXT,
	duration_ms    INTEGER,
	error          TEXT,
	created_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_completion_logs_fn ON completion_logs(function_name);
`
