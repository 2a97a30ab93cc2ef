package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// pgSchema is the PostgreSQL schema for the chat gateway. The users, groups
// and group_members tables are owned by the CRUD backend; they are created
// here with IF NOT EXISTS so the gateway can run standalone in development.
const pgSchema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS groups (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name TEXT NOT NULL,
	is_private BOOLEAN NOT NULL DEFAULT FALSE,
	owner_id UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id UUID NOT NULL,
	user_id UUID NOT NULL,
	role TEXT NOT NULL DEFAULT 'member',
	joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	room_id UUID NOT NULL,
	author_id UUID NOT NULL,
	content TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'text',
	reply_to TEXT,
	ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room_ts ON messages (room_id, ts DESC);

CREATE TABLE IF NOT EXISTS reactions (
	message_id TEXT NOT NULL,
	user_id UUID NOT NULL,
	emoji TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (message_id, user_id, emoji)
);
`

// RunMigrations applies the schema to the PostgreSQL database.
func RunMigrations(databaseURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, pgSchema)
	return err
}
