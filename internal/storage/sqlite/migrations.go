package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// payment_history is append-only: the triggers reject UPDATE and DELETE.
const schema = `
CREATE TABLE IF NOT EXISTS identities (
    id TEXT PRIMARY KEY,
    wallet_address TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS splits (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    recipient_address TEXT NOT NULL,
    total_amount REAL NOT NULL,
    currency TEXT NOT NULL CHECK (currency IN ('SOL', 'USDC')),
    due_date TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'completed', 'cancelled')),
    created_by TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    completed_at INTEGER,
    release_signature TEXT
);

CREATE TABLE IF NOT EXISTS participants (
    id TEXT PRIMARY KEY,
    split_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    wallet_address TEXT NOT NULL,
    amount REAL NOT NULL CHECK (amount > 0),
    paid INTEGER NOT NULL DEFAULT 0,
    transaction_signature TEXT UNIQUE,
    paid_at INTEGER,
    CHECK ((paid = 1) = (transaction_signature IS NOT NULL)),
    UNIQUE (split_id, wallet_address),
    FOREIGN KEY (split_id) REFERENCES splits(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS payment_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    split_id TEXT NOT NULL,
    participant_id TEXT NOT NULL,
    wallet_address TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    transaction_signature TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL,
    split_completed INTEGER NOT NULL,
    recorded_at INTEGER NOT NULL,
    prev_digest BLOB,
    digest BLOB NOT NULL,
    FOREIGN KEY (split_id) REFERENCES splits(id),
    FOREIGN KEY (participant_id) REFERENCES participants(id)
);

CREATE TRIGGER IF NOT EXISTS payment_history_no_update
BEFORE UPDATE ON payment_history
BEGIN
    SELECT RAISE(ABORT, 'payment_history is append-only');
END;

CREATE TRIGGER IF NOT EXISTS payment_history_no_delete
BEFORE DELETE ON payment_history
BEGIN
    SELECT RAISE(ABORT, 'payment_history is append-only');
END;

CREATE INDEX IF NOT EXISTS idx_participants_split_id ON participants(split_id);
CREATE INDEX IF NOT EXISTS idx_participants_wallet ON participants(wallet_address);
CREATE INDEX IF NOT EXISTS idx_splits_status_created ON splits(status, created_at);
CREATE INDEX IF NOT EXISTS idx_splits_created_by ON splits(created_by);
CREATE INDEX IF NOT EXISTS idx_payment_history_split_id ON payment_history(split_id, id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
