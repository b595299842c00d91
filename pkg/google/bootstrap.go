package google

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/crmdesk/crmdesk/internal/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/people/v1"
)

const (
	callbackPath            = "/api/integrations/google/auth/callback"
	defaultBootstrapTimeout = 30 * time.Second
)

var DefaultDiscoveryUrls = []string{
	"https://www.googleapis.com/discovery/v1/apis/calendar/v3/rest",
	"https://people.googleapis.com/$discovery/rest?version=v1",
}

var scopes = []string{
	gcal.CalendarScope,
	gcal.CalendarEventsScope,
	people.ContactsReadonlyScope,
	people.DirectoryReadonlyScope,
	people.ContactsOtherReadonlyScope,
}

// Bootstrap validates the Google credentials, loads the API discovery documents and prepares the
// OAuth configuration. It runs at most once successfully per process.
type Bootstrap struct {
	cfg           config.Google
	host          string
	loader        DiscoveryLoader
	discoveryUrls []string
	endpoint      oauth2.Endpoint
	timeout       time.Duration

	group singleflight.Group

	mu          sync.Mutex
	initialized bool
	loaded      map[string]bool
	oauthConfig *oauth2.Config
}

func NewBootstrap(cfg config.Google, host string, loader DiscoveryLoader) *Bootstrap {
	discoveryUrls := cfg.DiscoveryUrls
	if len(discoveryUrls) == 0 {
		discoveryUrls = DefaultDiscoveryUrls
	}
	timeout := cfg.BootstrapTimeout
	if timeout <= 0 {
		timeout = defaultBootstrapTimeout
	}
	return &Bootstrap{
		cfg:           cfg,
		timeout:       timeout,
		host:          host,
		loader:        loader,
		discoveryUrls: discoveryUrls,
		endpoint:      google.Endpoint,
		loaded:        map[string]bool{},
	}
}

// Initialize is safe for concurrent use; callers arriving while a run is in flight share its result.
// A run outlives the caller that started it but never the bootstrap timeout. A failed run leaves
// nothing cached, so the next call starts over.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	if b.isInitialized() {
		return nil
	}
	result := b.group.DoChan("initialize", func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		defer cancel()
		return nil, b.run(runCtx)
	})
	select {
	case r := <-result:
		return r.Err
	case <-ctx.Done():
		return fmt.Errorf("waiting for Google bootstrap: %w", ctx.Err())
	}
}

// OAuthConfig initializes if needed and returns the OAuth client configuration.
func (b *Bootstrap) OAuthConfig(ctx context.Context) (*oauth2.Config, error) {
	if err := b.Initialize(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.oauthConfig, nil
}

func (b *Bootstrap) isInitialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

func (b *Bootstrap) run(ctx context.Context) (err error) {
	if b.isInitialized() {
		return nil
	}
	defer func() {
		if err != nil {
			log.Errorf("Google bootstrap failed: %v", err)
			b.reset()
		}
	}()

	if err := b.validateConfig(); err != nil {
		return &InitializationError{Stage: StageConfig, Err: err}
	}

	for _, u := range b.discoveryUrls {
		if b.isLoaded(u) {
			continue
		}
		if err := b.loader.Load(ctx, u); err != nil {
			return &InitializationError{Stage: StageDiscovery, Err: fmt.Errorf("%s: %w", u, err)}
		}
		b.markLoaded(u)
	}

	oauthConfig, err := b.newOAuthConfig()
	if err != nil {
		return &InitializationError{Stage: StageTokenClient, Err: err}
	}

	b.mu.Lock()
	b.oauthConfig = oauthConfig
	b.initialized = true
	b.mu.Unlock()
	log.Info("Google integration initialized")
	return nil
}

func (b *Bootstrap) validateConfig() error {
	if b.cfg.ClientId == "" {
		return &ConfigurationError{Key: "google.clientid"}
	}
	if b.cfg.ApiKey == "" {
		return &ConfigurationError{Key: "google.apikey"}
	}
	return nil
}

func (b *Bootstrap) newOAuthConfig() (*oauth2.Config, error) {
	hostUrl, err := url.Parse(b.host)
	if err != nil {
		return nil, fmt.Errorf("invalid host: %w", err)
	}
	if hostUrl.Scheme == "" || hostUrl.Host == "" {
		return nil, errors.New("host must be an absolute URL")
	}
	return &oauth2.Config{
		ClientID:     b.cfg.ClientId,
		ClientSecret: b.cfg.ClientSecret,
		Endpoint:     b.endpoint,
		RedirectURL:  hostUrl.JoinPath(callbackPath).String(),
		Scopes:       scopes,
	}, nil
}

func (b *Bootstrap) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = false
	b.oauthConfig = nil
}

// Loaded documents stay registered across resets, like a script tag that is already on the page.
func (b *Bootstrap) isLoaded(u string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded[u]
}

func (b *Bootstrap) markLoaded(u string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded[u] = true
}
