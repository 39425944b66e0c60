package database

// Migration represents a database migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// migrations contains all database migrations in order
var migrations = []Migration{
	{
		Version: "001_init",
		Up: `
-- Console users
CREATE TABLE users (
    id TEXT PRIMARY KEY,
    username TEXT UNIQUE NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'member',
    is_active BOOLEAN DEFAULT 1,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_users_username ON users(username);

-- Cloud restore job journal. Jobs run upstream; this table only remembers
-- which ones the console dispatched so progress polling survives a restart.
CREATE TABLE cloud_jobs (
    restore_id TEXT PRIMARY KEY,
    snapshot_id TEXT NOT NULL,
    target_type TEXT NOT NULL,
    status TEXT NOT NULL,
    submitted_by TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_cloud_jobs_status ON cloud_jobs(status);
CREATE INDEX idx_cloud_jobs_snapshot ON cloud_jobs(snapshot_id);

-- Audit trail of console actions
CREATE TABLE activity_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp DATETIME NOT NULL,
    snapshot_id TEXT NOT NULL DEFAULT '',
    user_id TEXT,
    activity_type TEXT NOT NULL,
    description TEXT NOT NULL,
    metadata TEXT,
    success BOOLEAN NOT NULL,
    error_message TEXT NOT NULL DEFAULT ''
);

CREATE INDEX idx_activity_log_timestamp ON activity_log(timestamp);
CREATE INDEX idx_activity_log_snapshot ON activity_log(snapshot_id);
CREATE INDEX idx_activity_log_type ON activity_log(activity_type);
`,
		Down: `
DROP TABLE activity_log;
DROP TABLE cloud_jobs;
DROP TABLE users;
`,
	},
}
