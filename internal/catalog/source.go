package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Source loads the static configuration the engine reads: the catalog, the
// initial framework set and the initial user set.
type Source interface {
	LoadCatalog(ctx context.Context) (*Catalog, error)
	LoadFrameworks(ctx context.Context) ([]Framework, error)
	LoadUsers(ctx context.Context) ([]User, error)
}

// FileSource reads configuration from local files. Empty framework or user
// paths yield empty sets.
type FileSource struct {
	CatalogPath    string
	FrameworksPath string
	UsersPath      string
}

func (s FileSource) LoadCatalog(_ context.Context) (*Catalog, error) {
	data, err := os.ReadFile(s.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data, FormatFromPath(s.CatalogPath))
}

func (s FileSource) LoadFrameworks(_ context.Context) ([]Framework, error) {
	if s.FrameworksPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.FrameworksPath)
	if err != nil {
		return nil, fmt.Errorf("read frameworks: %w", err)
	}
	return ParseFrameworks(data, FormatFromPath(s.FrameworksPath))
}

func (s FileSource) LoadUsers(_ context.Context) ([]User, error) {
	if s.UsersPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.UsersPath)
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}
	return ParseUsers(data, FormatFromPath(s.UsersPath))
}

// HTTPSource fetches the same documents as JSON from a static file server.
type HTTPSource struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPSource(baseURL, token string) *HTTPSource {
	return &HTTPSource{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSource) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("catalog GET %s: %d %s", path, resp.StatusCode, string(body))
	}
	return body, nil
}

func (s *HTTPSource) LoadCatalog(ctx context.Context) (*Catalog, error) {
	data, err := s.get(ctx, "/catalog.json")
	if err != nil {
		return nil, err
	}
	return Parse(data, FormatJSON)
}

func (s *HTTPSource) LoadFrameworks(ctx context.Context) ([]Framework, error) {
	data, err := s.get(ctx, "/frameworks.json")
	if err != nil {
		return nil, err
	}
	return ParseFrameworks(data, FormatJSON)
}

func (s *HTTPSource) LoadUsers(ctx context.Context) ([]User, error) {
	data, err := s.get(ctx, "/users.json")
	if err != nil {
		return nil, err
	}
	return ParseUsers(data, FormatJSON)
}
