package user

import (
	"context"
	"os"
	"testing"

	"github.com/crmdesk/crmdesk/internal/test_utils"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var pgContainer *postgres.PostgresContainer
var openDb func() *pgxpool.Pool

func TestMain(m *testing.M) {
	pgContainer, openDb = test_utils.TestWithDB()
	code := m.Run()
	if err := testcontainers.TerminateContainer(pgContainer); err != nil {
		log.Errorf("failed to terminate container: %s", err)
	}
	os.Exit(code)
}

func setupTestRepository(t *testing.T) (context.Context, *RepoImpl) {
	ctx := context.Background()
	db := openDb()
	t.Cleanup(func() {
		db.Close()
		err := pgContainer.Restore(ctx)
		require.NoError(t, err)
	})
	return ctx, NewUserRepo(db)
}

func TestRepoImpl(t *testing.T) {
	t.Run("should create and read user without calendar", func(t *testing.T) {
		// given
		ctx, repo := setupTestRepository(t)
		u := User{Uid: "uid-1", Username: "jane", DisplayName: "Jane", Settings: Settings{Timezone: "UTC"}}

		// when
		id, err := repo.CreateUser(ctx, u)

		// then
		require.NoError(t, err)
		stored, err := repo.GetUser(ctx, id)
		require.NoError(t, err)
		u.Id = id
		assert.Equal(t, u, stored)
		byUid, err := repo.GetUserByUid(ctx, "uid-1")
		require.NoError(t, err)
		assert.Equal(t, id, byUid.Id)
	})

	t.Run("should update settings", func(t *testing.T) {
		// given
		ctx, repo := setupTestRepository(t)
		id, err := repo.CreateUser(ctx, User{Uid: "uid-2", Username: "joe", Settings: Settings{Timezone: "UTC"}})
		require.NoError(t, err)

		// when
		_, err = repo.UpdateUser(ctx, User{
			Id:          id,
			DisplayName: "Joe",
			Settings: Settings{
				Timezone:       "Europe/Warsaw",
				GoogleCalendar: GoogleCalendarSettings{CalendarId: "sales@group.calendar.google.com"},
			},
		})

		// then
		require.NoError(t, err)
		stored, err := repo.GetUser(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Joe", stored.DisplayName)
		assert.Equal(t, "Europe/Warsaw", stored.Settings.Timezone)
		assert.Equal(t, "sales@group.calendar.google.com", stored.Settings.GoogleCalendar.CalendarId)
	})

	t.Run("should report missing user", func(t *testing.T) {
		ctx, repo := setupTestRepository(t)

		_, err := repo.GetUser(ctx, 4242)
		assert.ErrorIs(t, err, ErrUserNotFound)

		_, err = repo.UpdateUser(ctx, User{Id: 4242})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
