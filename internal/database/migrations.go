package database

const schema = `
CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    thread_id TEXT,
    from_addr TEXT NOT NULL,
    from_name TEXT,
    subject TEXT,
    body_text TEXT,
    body_html TEXT,
    received_at DATETIME,
    analyzed BOOLEAN DEFAULT false,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS formations (
    id TEXT PRIMARY KEY,
    natural_key TEXT NOT NULL UNIQUE,
    extended_code TEXT NOT NULL,
    start_date TEXT NOT NULL,
    status TEXT NOT NULL,
    data TEXT NOT NULL,
    created_at DATETIME,
    updated_at DATETIME
);

CREATE TABLE IF NOT EXISTS analysis_cache (
    email_id TEXT PRIMARY KEY,
    classification TEXT,
    extraction TEXT,
    model_version TEXT NOT NULL,
    cached_at DATETIME
);

CREATE TABLE IF NOT EXISTS geocache (
    normalized_address TEXT PRIMARY KEY,
    lat REAL,
    lng REAL,
    provider TEXT,
    cached_at DATETIME
);

CREATE TABLE IF NOT EXISTS imap_state (
    account TEXT PRIMARY KEY,
    last_uid INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_messages_analyzed ON messages(analyzed);
CREATE INDEX IF NOT EXISTS idx_formations_status ON formations(status);
CREATE INDEX IF NOT EXISTS idx_cache_version ON analysis_cache(model_version);
`
