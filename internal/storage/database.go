package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"reportchat/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured database for the given driver.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			dbCfg.Params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS purchases (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL,
				plan TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				stripe_customer TEXT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS reports (
				id TEXT PRIMARY KEY,
				purchase_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				payload TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				UNIQUE(purchase_id, kind),
				FOREIGN KEY(purchase_id) REFERENCES purchases(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				purchase_id TEXT NOT NULL,
				report_kind TEXT NOT NULL,
				assistant_id TEXT NOT NULL,
				title TEXT NOT NULL,
				active INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY(purchase_id) REFERENCES purchases(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS messages (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL,
				thread_id TEXT NOT NULL,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				ordinal INTEGER NOT NULL,
				meta TEXT NOT NULL DEFAULT '{}',
				created_at DATETIME NOT NULL,
				UNIQUE(session_id, ordinal),
				FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS access_tokens (
				token TEXT PRIMARY KEY,
				purchase_id TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				FOREIGN KEY(purchase_id) REFERENCES purchases(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS billing_events (
				id TEXT PRIMARY KEY,
				event_type TEXT NOT NULL,
				payload TEXT NOT NULL,
				received_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_purchase ON sessions(purchase_id, report_kind)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, ordinal)`,
			`CREATE INDEX IF NOT EXISTS idx_access_tokens_purchase ON access_tokens(purchase_id)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS purchases (
				id VARCHAR(64) NOT NULL,
				email VARCHAR(255) NOT NULL,
				plan VARCHAR(100) NOT NULL,
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				stripe_customer VARCHAR(255),
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS reports (
				id VARCHAR(64) NOT NULL,
				purchase_id VARCHAR(64) NOT NULL,
				kind VARCHAR(50) NOT NULL,
				payload MEDIUMTEXT NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				UNIQUE KEY uniq_purchase_kind (purchase_id, kind),
				CONSTRAINT fk_reports_purchase FOREIGN KEY (purchase_id) REFERENCES purchases(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS sessions (
				id VARCHAR(64) NOT NULL,
				purchase_id VARCHAR(64) NOT NULL,
				report_kind VARCHAR(50) NOT NULL,
				assistant_id VARCHAR(255) NOT NULL,
				title VARCHAR(255) NOT NULL,
				active TINYINT(1) NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_sessions_purchase (purchase_id, report_kind),
				INDEX idx_sessions_updated_at (updated_at),
				CONSTRAINT fk_sessions_purchase FOREIGN KEY (purchase_id) REFERENCES purchases(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS messages (
				id VARCHAR(64) NOT NULL,
				session_id VARCHAR(64) NOT NULL,
				thread_id VARCHAR(255) NOT NULL,
				role VARCHAR(50) NOT NULL,
				content MEDIUMTEXT NOT NULL,
				ordinal BIGINT NOT NULL,
				meta TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				UNIQUE KEY uniq_session_ordinal (session_id, ordinal),
				INDEX idx_messages_session (session_id),
				CONSTRAINT fk_messages_session FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS access_tokens (
				token VARCHAR(255) NOT NULL,
				purchase_id VARCHAR(64) NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				PRIMARY KEY (token),
				INDEX idx_access_tokens_purchase (purchase_id),
				CONSTRAINT fk_access_tokens_purchase FOREIGN KEY (purchase_id) REFERENCES purchases(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS billing_events (
				id VARCHAR(255) NOT NULL,
				event_type VARCHAR(255) NOT NULL,
				payload MEDIUMTEXT NOT NULL,
				received_at DATETIME NOT NULL,
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
