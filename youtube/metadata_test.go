package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/api/option"
)

func newMetadataServer(t *testing.T, body string) *MetadataClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtube/v3/videos" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("id"); got != "abc123" {
			t.Errorf("id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client, err := NewMetadataClient(context.Background(), "test-key",
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewMetadataClient: %v", err)
	}
	return client
}

func TestMetadataClientVideoTitle(t *testing.T) {
	client := newMetadataServer(t, `{"items":[{"id":"abc123","snippet":{"title":"Never Gonna Give You Up"}}]}`)

	title, err := client.VideoTitle(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("VideoTitle: %v", err)
	}
	if title != "Never Gonna Give You Up" {
		t.Errorf("title = %q", title)
	}
}

func TestMetadataClientUnknownVideo(t *testing.T) {
	client := newMetadataServer(t, `{"items":[]}`)

	_, err := client.VideoTitle(context.Background(), "abc123")
	if !errors.Is(err, ErrVideoUnavailable) {
		t.Errorf("error = %v, want ErrVideoUnavailable", err)
	}
}

func TestNewMetadataClientRequiresKey(t *testing.T) {
	if _, err := NewMetadataClient(context.Background(), ""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("error = %v, want ErrNoAPIKey", err)
	}
}
