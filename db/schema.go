package db

// Schema for battle persistence. Safe to apply repeatedly; every statement
// uses IF NOT EXISTS.
const schema = `
CREATE TABLE IF NOT EXISTS battles (
    id TEXT PRIMARY KEY,
    config JSONB NOT NULL,
    messages JSONB NOT NULL DEFAULT '[]',
    status TEXT NOT NULL,
    current_round INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS votes (
    id TEXT PRIMARY KEY,
    battle_id TEXT NOT NULL REFERENCES battles(id),
    provider TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_votes_battle_id ON votes(battle_id);
`
