package test_utils

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// InsertUser creates a bare users row so tables referencing users(id) can be exercised.
func InsertUser(t *testing.T, ctx context.Context, db *pgxpool.Pool, username string) int {
	t.Helper()
	var id int
	err := db.QueryRow(ctx,
		"INSERT INTO users (uid, username, display_name, timezone) VALUES ($1, $2, $3, $4) RETURNING id",
		uuid.NewString(), username, username, "Europe/Warsaw",
	).Scan(&id)
	require.NoError(t, err)
	return id
}
