package youtube

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"
)

// ErrNoAPIKey is returned when a MetadataClient is created without a key.
var ErrNoAPIKey = errors.New("youtube: api key required")

// MetadataClient looks up video titles with the YouTube Data API v3.
type MetadataClient struct {
	service *ytapi.Service
}

// NewMetadataClient creates a client authenticated with apiKey. Extra
// options are passed to the API client.
func NewMetadataClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*MetadataClient, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := ytapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube: create data api service: %w", err)
	}
	return &MetadataClient{service: service}, nil
}

// VideoTitle returns the title of id.
func (m *MetadataClient) VideoTitle(ctx context.Context, id VideoID) (string, error) {
	resp, err := m.service.Videos.List([]string{"snippet"}).Id(string(id)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("youtube: videos.list %s: %w", id, err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return "", fmt.Errorf("%w: %s", ErrVideoUnavailable, id)
	}
	return resp.Items[0].Snippet.Title, nil
}
