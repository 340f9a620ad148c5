package database

const Schema = `
CREATE TABLE IF NOT EXISTS catalog_snapshots (
	run_id          UUID PRIMARY KEY,
	start_url       TEXT        NOT NULL,
	page_limit      INTEGER     NOT NULL,
	pages_visited   INTEGER     NOT NULL,
	outcome         TEXT        NOT NULL,
	abort_reason    TEXT,
	artifact_path   TEXT        NOT NULL,
	parts_count     INTEGER     NOT NULL,
	images_acquired INTEGER     NOT NULL,
	failures_count  INTEGER     NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS catalog_parts (
	run_id      UUID    NOT NULL REFERENCES catalog_snapshots (run_id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	part_number TEXT    NOT NULL,
	part_name   TEXT    NOT NULL,
	mrp         TEXT    NOT NULL,
	image_url   TEXT    NOT NULL,
	page        INTEGER NOT NULL,
	local_path  TEXT,
	image_error TEXT,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_catalog_parts_part_number ON catalog_parts (part_number);
`
