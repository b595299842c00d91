package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/discovery/v1"
)

const defaultDiscoveryTimeout = 10 * time.Second

// DiscoveryLoader fetches one API discovery document and fails if it is unusable.
type DiscoveryLoader interface {
	Load(ctx context.Context, url string) error
}

type HTTPDiscoveryLoader struct {
	client *http.Client
}

func NewHTTPDiscoveryLoader(client *http.Client) *HTTPDiscoveryLoader {
	if client == nil {
		client = &http.Client{Timeout: defaultDiscoveryTimeout}
	}
	return &HTTPDiscoveryLoader{client: client}
}

func (l *HTTPDiscoveryLoader) Load(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var doc discovery.RestDescription
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("invalid discovery document: %w", err)
	}
	if doc.Name == "" || doc.Version == "" {
		return fmt.Errorf("discovery document without name or version")
	}
	log.Debugf("Loaded discovery document %s %s", doc.Name, doc.Version)
	return nil
}
