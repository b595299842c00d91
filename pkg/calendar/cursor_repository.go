package calendar

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CursorRepository stores the provider sync token of every user and calendar pair.
type CursorRepository interface {
	GetCursor(ctx context.Context, userId int, calendarId string) (string, error)
	StoreCursor(ctx context.Context, userId int, calendarId string, cursor string) error
	DeleteCursor(ctx context.Context, userId int, calendarId string) error
}

type CursorRepositoryImpl struct {
	db *pgxpool.Pool
}

func NewCursorRepository(db *pgxpool.Pool) *CursorRepositoryImpl {
	return &CursorRepositoryImpl{db: db}
}

// GetCursor returns an empty string when nothing was stored yet.
func (r *CursorRepositoryImpl) GetCursor(ctx context.Context, userId int, calendarId string) (string, error) {
	var cursor string
	err := r.db.QueryRow(ctx,
		"SELECT sync_token FROM calendar_sync_cursor WHERE user_id = $1 AND calendar_id = $2",
		userId, calendarId,
	).Scan(&cursor)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read sync cursor: %w", err)
	}
	return cursor, nil
}

func (r *CursorRepositoryImpl) StoreCursor(ctx context.Context, userId int, calendarId string, cursor string) error {
	const upsert = `
		INSERT INTO calendar_sync_cursor (user_id, calendar_id, sync_token, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, calendar_id)
		DO UPDATE SET sync_token = EXCLUDED.sync_token, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.Exec(ctx, upsert, userId, calendarId, cursor); err != nil {
		return fmt.Errorf("failed to store sync cursor: %w", err)
	}
	return nil
}

func (r *CursorRepositoryImpl) DeleteCursor(ctx context.Context, userId int, calendarId string) error {
	_, err := r.db.Exec(ctx,
		"DELETE FROM calendar_sync_cursor WHERE user_id = $1 AND calendar_id = $2",
		userId, calendarId,
	)
	if err != nil {
		return fmt.Errorf("failed to delete sync cursor: %w", err)
	}
	return nil
}
