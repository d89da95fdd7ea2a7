package db

import (
	"database/sql"

	"github.com/pkg/errors"
)

// Store wraps the SQL database connection
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY,
	username TEXT,
	first_name TEXT,
	created_at TIMESTAMP,
	updated_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS sessions (
	user_id INTEGER PRIMARY KEY,
	step TEXT NOT NULL,
	tx_type TEXT,
	coin TEXT,
	symbol TEXT,
	contract_address TEXT,
	amount TEXT,
	focus_kind TEXT,
	focus_order_id TEXT,
	updated_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS staff (
	id INTEGER PRIMARY KEY,
	name TEXT,
	display_name TEXT,
	role TEXT NOT NULL,
	added_by INTEGER,
	added_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	type TEXT NOT NULL,
	coin TEXT,
	symbol TEXT,
	amount TEXT,
	contract_address TEXT,
	status TEXT NOT NULL,
	assigned_staff INTEGER,
	payment_address TEXT,
	receiving_address TEXT,
	customer_tx_hash TEXT,
	sent_tx_hash TEXT,
	created_at TIMESTAMP,
	updated_at TIMESTAMP,
	completed_at TIMESTAMP,
	cancelled_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
CREATE TABLE IF NOT EXISTS chat_sessions (
	order_id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	staff_id INTEGER,
	status TEXT NOT NULL,
	created_at TIMESTAMP,
	updated_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id TEXT NOT NULL,
	sender_id INTEGER NOT NULL,
	sender_type TEXT NOT NULL,
	body TEXT,
	created_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_order ON messages(order_id);
`

// NewStore opens the database at path and ensures the schema exists.
func NewStore(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if _, err := conn.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}

	return &Store{db: conn}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
