package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"renthub/internal/app/policies"
)

func TestGetProperty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/properties/prop-1" {
			t.Errorf("path = %q, want /properties/prop-1", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"prop-1","owner_id":"owner-1","title":"Loft","status":"Available"}`))
	}))
	defer server.Close()

	client := &Client{HTTP: server.Client(), BaseURL: server.URL}
	property, err := client.GetProperty(context.Background(), "prop-1")
	if err != nil {
		t.Fatalf("get property: %v", err)
	}
	if property.OwnerID != "owner-1" || property.Title != "Loft" {
		t.Errorf("property = %+v", property)
	}
	if property.Status != policies.PropertyAvailable {
		t.Errorf("status = %q, want normalized available", property.Status)
	}
}

func TestGetPropertyNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := &Client{HTTP: server.Client(), BaseURL: server.URL}
	_, err := client.GetProperty(context.Background(), "ghost")
	if !errors.Is(err, policies.ErrPropertyNotFound) {
		t.Errorf("err = %v, want ErrPropertyNotFound", err)
	}
}

func TestGetPropertyServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := &Client{HTTP: server.Client(), BaseURL: server.URL}
	_, err := client.GetProperty(context.Background(), "prop-1")
	if err == nil || errors.Is(err, policies.ErrPropertyNotFound) {
		t.Errorf("err = %v, want generic failure", err)
	}
}

func TestGetPropertyEscapesID(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := &Client{HTTP: server.Client(), BaseURL: server.URL + "/"}
	_, _ = client.GetProperty(context.Background(), "a/b")
	if gotPath != "/properties/a%2Fb" {
		t.Errorf("path = %q, want escaped id", gotPath)
	}
}

func TestClientMisconfigured(t *testing.T) {
	var nilClient *Client
	if _, err := nilClient.GetProperty(context.Background(), "prop-1"); err == nil {
		t.Error("nil client must error")
	}
	c := &Client{HTTP: http.DefaultClient}
	if _, err := c.GetProperty(context.Background(), "prop-1"); err == nil {
		t.Error("missing base url must error")
	}
}
