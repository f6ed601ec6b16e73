package store

import "fmt"

func sqliteSchema() []string {
	return []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            external_id TEXT UNIQUE NOT NULL,
            email TEXT NOT NULL DEFAULT '',
            full_name TEXT NOT NULL DEFAULT '',
            raw TEXT,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS documents (
            id TEXT PRIMARY KEY,
            owner_id TEXT NOT NULL,
            file_path TEXT NOT NULL,
            file_name TEXT NOT NULL,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS doc_chunks (
            id TEXT PRIMARY KEY,
            document_id TEXT NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
            chunk_index INTEGER NOT NULL,
            text TEXT NOT NULL,
            metadata TEXT,
            embedding_json TEXT NOT NULL, -- JSON array of float32
            created_at DATETIME NOT NULL,
            UNIQUE (document_id, chunk_index)
        )`,
		`CREATE TABLE IF NOT EXISTS chats (
            id TEXT PRIMARY KEY,
            owner_id TEXT NOT NULL,
            document_id TEXT NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
            title TEXT NOT NULL,
            last_message_content TEXT,
            last_message_kind TEXT,
            last_message_created_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            chat_id TEXT NOT NULL REFERENCES chats (id) ON DELETE CASCADE,
            kind TEXT NOT NULL CHECK (kind IN ('user', 'ai')),
            content TEXT NOT NULL,
            metadata TEXT,
            created_at DATETIME NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_doc_chunks_document ON doc_chunks (document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chats_owner ON chats (owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages (chat_id, created_at)`,
	}
}

func postgresSchema(dimensions int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            external_id TEXT UNIQUE NOT NULL,
            email TEXT NOT NULL DEFAULT '',
            full_name TEXT NOT NULL DEFAULT '',
            raw TEXT,
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS documents (
            id TEXT PRIMARY KEY,
            owner_id TEXT NOT NULL,
            file_path TEXT NOT NULL,
            file_name TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS doc_chunks (
            id TEXT PRIMARY KEY,
            document_id TEXT NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
            chunk_index INTEGER NOT NULL,
            text TEXT NOT NULL,
            metadata TEXT,
            embedding vector(%d) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE (document_id, chunk_index)
        )`, dimensions),
		`CREATE TABLE IF NOT EXISTS chats (
            id TEXT PRIMARY KEY,
            owner_id TEXT NOT NULL,
            document_id TEXT NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
            title TEXT NOT NULL,
            last_message_content TEXT,
            last_message_kind TEXT,
            last_message_created_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            chat_id TEXT NOT NULL REFERENCES chats (id) ON DELETE CASCADE,
            kind TEXT NOT NULL CHECK (kind IN ('user', 'ai')),
            content TEXT NOT NULL,
            metadata TEXT,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_doc_chunks_document ON doc_chunks (document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chats_owner ON chats (owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages (chat_id, created_at)`,
	}
}
