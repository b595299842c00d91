package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPDiscoveryLoader_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/calendar":
			_, _ = w.Write([]byte(`{"kind":"discovery#restDescription","name":"calendar","version":"v3"}`))
		case "/empty":
			_, _ = w.Write([]byte(`{}`))
		case "/broken":
			_, _ = w.Write([]byte(`{"name":`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	loader := NewHTTPDiscoveryLoader(srv.Client())
	ctx := context.Background()

	t.Run("should accept a valid document", func(t *testing.T) {
		assert.NoError(t, loader.Load(ctx, srv.URL+"/calendar"))
	})

	t.Run("should reject a document without name", func(t *testing.T) {
		assert.Error(t, loader.Load(ctx, srv.URL+"/empty"))
	})

	t.Run("should reject malformed json", func(t *testing.T) {
		assert.Error(t, loader.Load(ctx, srv.URL+"/broken"))
	})

	t.Run("should reject error status", func(t *testing.T) {
		err := loader.Load(ctx, srv.URL+"/missing")
		assert.ErrorContains(t, err, "404")
	})
}
