package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            username TEXT NOT NULL,
            email TEXT NOT NULL,
            password_hash TEXT NOT NULL,
            avatar TEXT NOT NULL DEFAULT '',
            role TEXT NOT NULL DEFAULT 'user',
            status TEXT NOT NULL DEFAULT 'offline',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (username);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (email);`,
		`CREATE INDEX IF NOT EXISTS users_role_idx ON users (role);`,
		`CREATE INDEX IF NOT EXISTS users_status_idx ON users (status);`,
		`CREATE TABLE IF NOT EXISTS groups (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            is_private BOOLEAN NOT NULL DEFAULT FALSE,
            invite_code TEXT,
            created_by INT NOT NULL REFERENCES users(id),
            settings JSONB NOT NULL DEFAULT '{}',
            members JSONB NOT NULL DEFAULT '[]',
            version INT NOT NULL DEFAULT 1,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS groups_invite_code_key ON groups (invite_code) WHERE invite_code IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS groups_name_idx ON groups (name);`,
		`CREATE INDEX IF NOT EXISTS groups_members_gin_idx ON groups USING GIN (members jsonb_path_ops);`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            content TEXT NOT NULL,
            sender_id INT NOT NULL REFERENCES users(id),
            group_id INT REFERENCES groups(id) ON DELETE CASCADE,
            recipient_id INT REFERENCES users(id),
            is_private BOOLEAN NOT NULL DEFAULT FALSE,
            reply_to INT REFERENCES messages(id),
            attachments JSONB NOT NULL DEFAULT '[]',
            reactions JSONB NOT NULL DEFAULT '[]',
            read_by JSONB NOT NULL DEFAULT '[]',
            is_edited BOOLEAN NOT NULL DEFAULT FALSE,
            edited_at TIMESTAMPTZ,
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            deleted_at TIMESTAMPTZ,
            deleted_by INT,
            version INT NOT NULL DEFAULT 1,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK ((group_id IS NULL) <> (recipient_id IS NULL))
        );`,
		`CREATE INDEX IF NOT EXISTS messages_group_created_idx ON messages (group_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS messages_dm_created_idx ON messages (sender_id, recipient_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS messages_is_deleted_idx ON messages (is_deleted);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
