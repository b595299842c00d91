package google

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
)

var ErrUnknownNonce = errors.New("unknown authorization nonce")

type TokenStore interface {
	// StartAuthorization records the nonce of a pending login. A token already held is kept until
	// the login completes.
	StartAuthorization(ctx context.Context, userId int, nonce string) error
	CompleteAuthorization(ctx context.Context, nonce string, token *oauth2.Token) error
	// GetToken returns nil when the user has no granted token.
	GetToken(ctx context.Context, userId int) (*oauth2.Token, error)
	SaveToken(ctx context.Context, userId int, token *oauth2.Token) error
	DeleteToken(ctx context.Context, userId int) error
}

type TokenStoreImpl struct {
	db *pgxpool.Pool
}

func NewTokenStore(db *pgxpool.Pool) *TokenStoreImpl {
	return &TokenStoreImpl{db: db}
}

func (s *TokenStoreImpl) StartAuthorization(ctx context.Context, userId int, nonce string) error {
	query := `INSERT INTO google_calendar_auth (user_id, nonce) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET nonce = EXCLUDED.nonce`
	_, err := s.db.Exec(ctx, query, userId, nonce)
	if err != nil {
		return fmt.Errorf("failed to store Google auth nonce for user %d: %w", userId, err)
	}
	return nil
}

func (s *TokenStoreImpl) CompleteAuthorization(ctx context.Context, nonce string, token *oauth2.Token) error {
	// a silent re-login does not return a refresh token, the previous one stays valid
	query := `UPDATE google_calendar_auth
		SET access_token = $1, refresh_token = COALESCE(NULLIF($2, ''), refresh_token), token_type = $3, expiry = $4
		WHERE nonce = $5`
	tag, err := s.db.Exec(ctx, query, token.AccessToken, token.RefreshToken, token.TokenType, expiryTimestamp(token), nonce)
	if err != nil {
		return fmt.Errorf("unable to store Google auth token for nonce: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownNonce
	}
	return nil
}

func (s *TokenStoreImpl) GetToken(ctx context.Context, userId int) (*oauth2.Token, error) {
	var accessToken, refreshToken, tokenType sql.NullString
	var expiry sql.NullInt64
	err := s.db.QueryRow(ctx,
		"SELECT access_token, refresh_token, token_type, expiry FROM google_calendar_auth WHERE user_id = $1", userId).
		Scan(&accessToken, &refreshToken, &tokenType, &expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Google auth token: %w", err)
	}
	// pending login without a completed exchange
	if !accessToken.Valid {
		return nil, nil
	}

	token := &oauth2.Token{
		AccessToken:  accessToken.String,
		RefreshToken: refreshToken.String,
		TokenType:    tokenType.String,
	}
	if expiry.Valid {
		token.Expiry = time.Unix(expiry.Int64, 0)
	}
	return token, nil
}

func (s *TokenStoreImpl) SaveToken(ctx context.Context, userId int, token *oauth2.Token) error {
	query := `UPDATE google_calendar_auth
		SET access_token = $1, refresh_token = COALESCE(NULLIF($2, ''), refresh_token), token_type = $3, expiry = $4
		WHERE user_id = $5`
	_, err := s.db.Exec(ctx, query, token.AccessToken, token.RefreshToken, token.TokenType, expiryTimestamp(token), userId)
	if err != nil {
		return fmt.Errorf("unable to update Google auth token for user %d: %w", userId, err)
	}
	return nil
}

func (s *TokenStoreImpl) DeleteToken(ctx context.Context, userId int) error {
	_, err := s.db.Exec(ctx, "DELETE FROM google_calendar_auth WHERE user_id = $1", userId)
	if err != nil {
		return fmt.Errorf("failed to delete Google auth row for user %d: %w", userId, err)
	}
	return nil
}

func expiryTimestamp(token *oauth2.Token) *int64 {
	if token.Expiry.IsZero() {
		return nil
	}
	timestamp := token.Expiry.Unix()
	return &timestamp
}
