package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/crmdesk/crmdesk/internal/utils"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const invalidGrant = "invalid_grant"

// TokenClient hands out valid access tokens for a user, refreshing and persisting them when they expire.
type TokenClient struct {
	bootstrap *Bootstrap
	store     TokenStore
	locks     *utils.KeyedMutex
}

func NewTokenClient(bootstrap *Bootstrap, store TokenStore) *TokenClient {
	return &TokenClient{
		bootstrap: bootstrap,
		store:     store,
		locks:     utils.NewKeyedMutex(),
	}
}

// Authenticate returns a non-expired token for the user. Concurrent calls for one user perform at
// most one refresh.
func (c *TokenClient) Authenticate(ctx context.Context, userId int) (*oauth2.Token, error) {
	oauthConfig, err := c.bootstrap.OAuthConfig(ctx)
	if err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(strconv.Itoa(userId))
	defer unlock()

	stored, err := c.store.GetToken(ctx, userId)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		log.Debugf("no Google token for user %d, consent required", userId)
		return nil, &AuthenticationError{ConsentRequired: true, Err: ErrUnauthenticated}
	}

	token, err := oauthConfig.TokenSource(ctx, stored).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			log.Warnf("Google rejected token refresh for user %d: %s", userId, retrieveErr.ErrorCode)
			if retrieveErr.ErrorCode != invalidGrant {
				return nil, &AuthenticationError{Err: err}
			}
			// a revoked grant can only be replaced through a fresh consent
			if err := c.store.DeleteToken(ctx, userId); err != nil {
				return nil, err
			}
			return nil, &AuthenticationError{ConsentRequired: true, Err: err}
		}
		return nil, fmt.Errorf("unable to refresh Google token: %w", err)
	}

	if token.AccessToken != stored.AccessToken || !token.Expiry.Equal(stored.Expiry) {
		log.Debugf("Google token refreshed for user %d", userId)
		if err := c.store.SaveToken(ctx, userId, token); err != nil {
			return nil, err
		}
	}
	return token, nil
}

// Client returns an HTTP client authorized as the user.
func (c *TokenClient) Client(ctx context.Context, userId int) (*http.Client, error) {
	token, err := c.Authenticate(ctx, userId)
	if err != nil {
		return nil, err
	}
	oauthConfig, err := c.bootstrap.OAuthConfig(ctx)
	if err != nil {
		return nil, err
	}
	return oauthConfig.Client(ctx, token), nil
}

// LoginURL starts an authorization for the user. Consent is forced only when no token is held yet,
// otherwise the provider may grant silently.
func (c *TokenClient) LoginURL(ctx context.Context, userId int, finalUrl string) (string, error) {
	oauthConfig, err := c.bootstrap.OAuthConfig(ctx)
	if err != nil {
		return "", err
	}
	held, err := c.store.GetToken(ctx, userId)
	if err != nil {
		return "", err
	}

	nonce := uuid.New().String()
	if err := c.store.StartAuthorization(ctx, userId, nonce); err != nil {
		return "", err
	}

	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline}
	if held == nil {
		opts = append(opts, oauth2.ApprovalForce)
	}
	log.Tracef("Redirecting to Google auth URL with nonce: %s", nonce)
	return oauthConfig.AuthCodeURL(finalUrl+"|"+nonce, opts...), nil
}

// CompleteLogin exchanges the authorization code and stores the token under the login's nonce.
func (c *TokenClient) CompleteLogin(ctx context.Context, nonce string, code string) error {
	oauthConfig, err := c.bootstrap.OAuthConfig(ctx)
	if err != nil {
		return err
	}
	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("unable to exchange code for token: %w", err)
	}
	return c.store.CompleteAuthorization(ctx, nonce, token)
}

func (c *TokenClient) Logout(ctx context.Context, userId int) error {
	return c.store.DeleteToken(ctx, userId)
}
