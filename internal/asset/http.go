package asset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MaxAssetSize caps a single download.
const MaxAssetSize = 64 << 20

// HTTPSource downloads assets from an asset service:
// GET {base}/assets/v3/{key} with the asset token in the Asset-Token header.
type HTTPSource struct {
	baseURL   string
	authToken string
	client    *http.Client
}

func NewHTTPSource(baseURL, authToken string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		client:    &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Download(ctx context.Context, key, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/assets/v3/"+url.PathEscape(key), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	if token != "" {
		req.Header.Set("Asset-Token", token)
	}
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request %s: %v", ErrUnavailable, key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: asset %s: status %d", ErrUnavailable, key, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxAssetSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, key, err)
	}
	if len(data) > MaxAssetSize {
		return nil, fmt.Errorf("%w: asset %s exceeds %d bytes", ErrUnavailable, key, MaxAssetSize)
	}
	return data, nil
}
