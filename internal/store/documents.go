package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func (s *Store) CreateDocument(ctx context.Context, doc *Document) error {
	doc.ID = uuid.NewString()
	doc.CreatedAt = time.Now().UTC()

	_, err := s.exec(ctx, s.db, "INSERT INTO documents (id, owner_id, file_path, file_name, created_at) VALUES (?, ?, ?, ?, ?)",
		doc.ID, doc.OwnerID, doc.FilePath, doc.FileName, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	err := s.queryRow(ctx, "SELECT id, owner_id, file_path, file_name, created_at FROM documents WHERE id = ?", id).
		Scan(&doc.ID, &doc.OwnerID, &doc.FilePath, &doc.FileName, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}
