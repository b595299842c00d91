package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type Repo interface {
	CreateUser(ctx context.Context, user User) (int, error)
	GetUser(ctx context.Context, id int) (User, error)
	GetUserByUid(ctx context.Context, uid string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
}

type RepoImpl struct {
	db *pgxpool.Pool
}

func NewUserRepo(db *pgxpool.Pool) *RepoImpl {
	return &RepoImpl{db: db}
}

const selectUser = `SELECT id, uid, username, display_name, timezone, google_calendar_id FROM users`

func (r *RepoImpl) CreateUser(ctx context.Context, u User) (int, error) {
	query := `INSERT INTO users (uid, username, display_name, timezone, google_calendar_id)
				VALUES ($1, $2, $3, $4, $5) RETURNING id`
	var id int
	err := r.db.QueryRow(ctx, query,
		u.Uid,
		u.Username,
		u.DisplayName,
		u.Settings.Timezone,
		nullIfEmpty(u.Settings.GoogleCalendar.CalendarId),
	).Scan(&id)
	if err != nil {
		log.Errorf("failed to create user: %v", err)
		return 0, err
	}
	return id, nil
}

func (r *RepoImpl) GetUser(ctx context.Context, id int) (User, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectUser+" WHERE id = $1", id))
}

func (r *RepoImpl) GetUserByUid(ctx context.Context, uid string) (User, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectUser+" WHERE uid = $1", uid))
}

func (r *RepoImpl) UpdateUser(ctx context.Context, u User) (User, error) {
	query := `UPDATE users SET display_name = $1, timezone = $2, google_calendar_id = $3 WHERE id = $4`
	result, err := r.db.Exec(ctx, query,
		u.DisplayName,
		u.Settings.Timezone,
		nullIfEmpty(u.Settings.GoogleCalendar.CalendarId),
		u.Id,
	)
	if err != nil {
		return User{}, err
	}
	if result.RowsAffected() == 0 {
		log.Infof("no rows affected updating user %d", u.Id)
		return User{}, fmt.Errorf("user %d: %w", u.Id, ErrUserNotFound)
	}
	return u, nil
}

func (r *RepoImpl) scanOne(row pgx.Row) (User, error) {
	var u User
	var googleCalendarId sql.NullString
	err := row.Scan(&u.Id, &u.Uid, &u.Username, &u.DisplayName, &u.Settings.Timezone, &googleCalendarId)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	} else if err != nil {
		log.Errorf("failed to get user: %v", err)
		return User{}, err
	}
	if googleCalendarId.Valid {
		u.Settings.GoogleCalendar.CalendarId = googleCalendarId.String
	}
	return u, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
