package inventory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_Profile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/v1/inventory/abc123":
			_, _ = w.Write([]byte(` {"items":["hat","cape"]} `))
		case "/v1/inventory/scalar":
			_, _ = w.Write([]byte(`42`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL + "/v1/inventory/", Token: "secret"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()

	doc, err := c.Profile(ctx, "abc123")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if string(doc) != `{"items":["hat","cape"]}` {
		t.Fatalf("unexpected doc %s", doc)
	}
	if _, err := c.Profile(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.Profile(ctx, "scalar"); err == nil {
		t.Fatalf("scalar body should be rejected")
	}
}

func TestClient_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Profile(ctx, "abc123"); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestNewClient_EmptyBase(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "  "}); err == nil {
		t.Fatalf("expected error")
	}
}
