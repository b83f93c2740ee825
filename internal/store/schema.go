package store

// schemaStatements is executed once at Open, each wrapped in
// "IF NOT EXISTS" so repeated startups against an existing file are
// idempotent (spec.md §4.5).
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT,
		metadata_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL REFERENCES conversations(id),
		role TEXT NOT NULL CHECK (role IN ('system','user','assistant','tool')),
		content TEXT NOT NULL,
		created_at TEXT NOT NULL,
		seq INTEGER NOT NULL,
		request_id INTEGER,
		UNIQUE(conversation_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL REFERENCES conversations(id),
		message_id INTEGER NOT NULL REFERENCES messages(id),
		model TEXT NOT NULL,
		params_json TEXT NOT NULL,
		input_hash TEXT NOT NULL,
		provider_response_id TEXT,
		status TEXT NOT NULL CHECK (status IN ('queued','in_progress','completed','failed','cancelled','expired')),
		error_json TEXT,
		tries INTEGER NOT NULL DEFAULT 0,
		started_at TEXT,
		completed_at TEXT,
		output_text TEXT,
		raw_json TEXT,
		usage_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(conversation_id, input_hash)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation_seq ON messages(conversation_id, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_conversation_status ON requests(conversation_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_provider_response_id ON requests(provider_response_id)`,
}
