package contacts

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recentAttendeesLimit = 200

type RecentAttendeesRepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRecentAttendeesRepository(db *pgxpool.Pool) *RecentAttendeesRepositoryImpl {
	return &RecentAttendeesRepositoryImpl{db: db}
}

// AddAttendees upserts all addresses in one batch, so concurrent requests never lose entries.
func (r *RecentAttendeesRepositoryImpl) AddAttendees(ctx context.Context, userId int, emails []string, usedAt time.Time) error {
	const upsert = `
		INSERT INTO recent_attendee (user_id, email, last_used_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, email)
		DO UPDATE SET last_used_at = GREATEST(recent_attendee.last_used_at, EXCLUDED.last_used_at)`

	batch := &pgx.Batch{}
	for _, email := range emails {
		batch.Queue(upsert, userId, email, usedAt)
	}
	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to store recent attendees: %w", err)
	}
	return nil
}

func (r *RecentAttendeesRepositoryImpl) ListAttendees(ctx context.Context, userId int) ([]string, error) {
	rows, err := r.db.Query(ctx,
		"SELECT email FROM recent_attendee WHERE user_id = $1 ORDER BY last_used_at DESC, email LIMIT $2",
		userId, recentAttendeesLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent attendees: %w", err)
	}
	emails, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list recent attendees: %w", err)
	}
	return emails, nil
}
