package postgres

import "fmt"

// schema returns the base DDL. Every statement is idempotent so the schema
// can be re-applied on startup. The memories.embedding column dimension is
// fixed at store construction time.
func schema(dimension int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS memories (
	id          TEXT PRIMARY KEY,
	content     TEXT NOT NULL,
	memory_type TEXT NOT NULL,
	metadata    JSONB,
	embedding   vector(%d) NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(memory_type);
CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at);

CREATE TABLE IF NOT EXISTS reminders (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	remind_at  TIMESTAMPTZ NOT NULL,
	session_id TEXT,
	fired      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_reminders_remind_at ON reminders(remind_at);

CREATE TABLE IF NOT EXISTS expenses (
	id          TEXT PRIMARY KEY,
	amount      DOUBLE PRECISION NOT NULL,
	currency    TEXT NOT NULL,
	category    TEXT,
	description TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS habits (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	logged_at  TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS journal_entries (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	sentiment  TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS status_updates (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	source     TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS commits (
	id           TEXT PRIMARY KEY,
	sha          TEXT NOT NULL UNIQUE,
	repo         TEXT NOT NULL,
	branch       TEXT,
	author       TEXT,
	message      TEXT,
	title        TEXT,
	summary      JSONB,
	diff_snippet TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS completion_logs (
	id             TEXT PRIMARY KEY,
	function_name  TEXT NOT NULL,
	model          TEXT,
	input_messages JSONB,
	input_schema   JSONB,
	output_raw     TEXT,
	duration_ms    BIGINT,
	error          TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_completion_logs_fn ON completion_logs(function_name);
`, dimension)
}

// vectorIndex is the ivfflat cosine index for similarity search. Applied
// separately because index creation on an empty table is cheap but optional.
const vectorIndex = `
CREATE INDEX IF NOT EXISTS idx_memories_embedding
ON memories USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`
