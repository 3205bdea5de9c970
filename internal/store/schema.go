package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    session_id           TEXT PRIMARY KEY,
    model                TEXT NOT NULL,
    project              TEXT,
    label                TEXT,
    status               TEXT NOT NULL,
    end_reason           TEXT,
    start_time           TEXT NOT NULL,
    end_time             TEXT,
    duration_ms          INTEGER NOT NULL,
    elapsed_ms           INTEGER NOT NULL,
    input_tokens         INTEGER NOT NULL DEFAULT 0,
    output_tokens        INTEGER NOT NULL DEFAULT 0,
    cache_creation       INTEGER NOT NULL DEFAULT 0,
    cache_read_tokens    INTEGER NOT NULL DEFAULT 0,
    estimated_cost       TEXT NOT NULL DEFAULT '0',
    tool_calls           INTEGER NOT NULL DEFAULT 0,
    messages             INTEGER NOT NULL DEFAULT 0,
    objectives           INTEGER NOT NULL DEFAULT 0,
    archived_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS file_tracker (
    file_path            TEXT PRIMARY KEY,
    offset_bytes         INTEGER NOT NULL,
    mtime_ns             INTEGER NOT NULL,
    updated_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions(start_time);
CREATE INDEX IF NOT EXISTS idx_sessions_model ON sessions(model);
`
