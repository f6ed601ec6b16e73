package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpsertUser inserts the user or refreshes the profile of an existing user with the
// same external id, and returns the stored row.
func (s *Store) UpsertUser(ctx context.Context, u *User) (*User, error) {
	if u.ExternalID == "" {
		return nil, errors.New("external id is required")
	}
	raw, err := encodeJSONMap(u.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw claims: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.exec(ctx, s.db, `
        INSERT INTO users (id, external_id, email, full_name, raw, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (external_id) DO UPDATE SET
            email = excluded.email,
            full_name = excluded.full_name,
            raw = excluded.raw,
            updated_at = excluded.updated_at`,
		uuid.NewString(), u.ExternalID, u.Email, u.FullName, raw, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return s.GetUserByExternalID(ctx, u.ExternalID)
}

func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	var user User
	var raw sql.NullString
	err := s.queryRow(ctx, "SELECT id, external_id, email, full_name, raw, created_at, updated_at FROM users WHERE external_id = ?", externalID).
		Scan(&user.ID, &user.ExternalID, &user.Email, &user.FullName, &raw, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", externalID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if user.Raw, err = decodeJSONMap(raw); err != nil {
		return nil, fmt.Errorf("failed to decode raw claims: %w", err)
	}
	return &user, nil
}
