package sqlite

// Schema for the tracefit store. Process hierarchy nodes are flat rows
// keyed by id with explicit parent_id/level, so propagation can touch
// disjoint subtrees independently. Entity and link rows stand in for the
// collaborator stores the engine reads.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS process_nodes (
	id                 TEXT PRIMARY KEY,
	project_id         TEXT NOT NULL,
	parent_id          TEXT NOT NULL DEFAULT '',
	level              INTEGER NOT NULL CHECK (level BETWEEN 1 AND 4),
	code               TEXT NOT NULL,
	title              TEXT NOT NULL DEFAULT '',
	scope_status       TEXT NOT NULL DEFAULT 'in_scope',
	fit_judgment       TEXT NOT NULL DEFAULT '',
	sign_off_state     TEXT NOT NULL DEFAULT 'pending',
	confirmation_state TEXT NOT NULL DEFAULT 'notReady',
	readiness_pct      REAL NOT NULL DEFAULT 0,
	confirmation_note  TEXT NOT NULL DEFAULT '',
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL,
	UNIQUE (project_id, code)
);

CREATE INDEX IF NOT EXISTS idx_process_nodes_parent ON process_nodes(parent_id);
CREATE INDEX IF NOT EXISTS idx_process_nodes_project_level ON process_nodes(project_id, level);

CREATE TABLE IF NOT EXISTS consolidation_records (
	node_id            TEXT PRIMARY KEY REFERENCES process_nodes(id),
	calculated_status  TEXT NOT NULL DEFAULT 'pending',
	effective_status   TEXT NOT NULL DEFAULT '',
	is_override        INTEGER NOT NULL DEFAULT 0,
	override_rationale TEXT NOT NULL DEFAULT '',
	decided_by         TEXT NOT NULL DEFAULT '',
	decided_at         TEXT,
	stale              INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS entities (
	entity_type TEXT NOT NULL,
	id          TEXT NOT NULL,
	project_id  TEXT NOT NULL DEFAULT '',
	code        TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT '',
	priority    INTEGER NOT NULL DEFAULT 2,
	PRIMARY KEY (entity_type, id)
);

CREATE TABLE IF NOT EXISTS entity_links (
	from_type TEXT NOT NULL,
	from_id   TEXT NOT NULL,
	to_type   TEXT NOT NULL,
	to_id     TEXT NOT NULL,
	relation  TEXT NOT NULL,
	PRIMARY KEY (from_type, from_id, to_type, to_id, relation)
);

CREATE INDEX IF NOT EXISTS idx_entity_links_reverse ON entity_links(to_type, to_id, relation);

CREATE TABLE IF NOT EXISTS sequence_counters (
	project_id TEXT NOT NULL,
	prefix     TEXT NOT NULL,
	next_value INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (project_id, prefix)
);

CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	node_id    TEXT NOT NULL,
	event_type TEXT NOT NULL,
	actor      TEXT NOT NULL DEFAULT '',
	old_value  TEXT,
	new_value  TEXT,
	comment    TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_node ON events(node_id, id);

CREATE TABLE IF NOT EXISTS workshop_sessions (
	id           TEXT PRIMARY KEY,
	workshop_id  TEXT NOT NULL,
	number       INTEGER NOT NULL,
	status       TEXT NOT NULL DEFAULT 'open',
	started_at   TEXT NOT NULL,
	closed_at    TEXT,
	carried_from TEXT NOT NULL DEFAULT '',
	UNIQUE (workshop_id, number)
);

CREATE TABLE IF NOT EXISTS session_steps (
	session_id   TEXT NOT NULL,
	node_id      TEXT NOT NULL,
	carried_over INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, node_id)
);
`
