package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
)

const contentType = "application/vnd.schemaregistry.v1+json"

// Schema is a schema definition as stored in the registry.
type Schema struct {
	ID      int    `json:"id"`
	Subject string `json:"subject,omitempty"`
	Version int    `json:"version,omitempty"`
	Schema  string `json:"schema"`
	Type    string `json:"schemaType,omitempty"`
}

type Registry interface {
	// Register stores schema under subject and returns its global id.
	// Registering an identical schema again returns the existing id.
	Register(ctx context.Context, subject, schema string) (int, error)
	GetByID(ctx context.Context, id int) (*Schema, error)
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var _ Registry = (*ConfluentRegistry)(nil)

// ConfluentRegistry talks to a Confluent compatible schema registry over
// its REST API. Both lookups and registrations are cached for the lifetime
// of the client since schema ids are immutable.
type ConfluentRegistry struct {
	baseURL string
	client  HTTPClient

	mu         sync.RWMutex
	byID       map[int]*Schema
	registered map[string]int
}

type RegistryOption func(*ConfluentRegistry)

func WithHTTPClient(c HTTPClient) RegistryOption {
	return func(r *ConfluentRegistry) { r.client = c }
}

func NewConfluentRegistry(baseURL string, opts ...RegistryOption) (*ConfluentRegistry, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("schema registry base URL is required")
	}

	r := &ConfluentRegistry{
		baseURL:    baseURL,
		client:     http.DefaultClient,
		byID:       make(map[int]*Schema),
		registered: make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *ConfluentRegistry) Register(ctx context.Context, subject, schema string) (int, error) {
	cacheKey := subject + "\x00" + schema

	r.mu.RLock()
	id, ok := r.registered[cacheKey]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	body, err := json.Marshal(map[string]string{"schema": schema})
	if err != nil {
		return 0, fmt.Errorf("encode register request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/subjects/%s/versions", r.baseURL, url.PathEscape(subject))
	var resp struct {
		ID int `json:"id"`
	}
	if err := r.do(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return 0, fmt.Errorf("register schema for %s: %w", subject, err)
	}

	r.mu.Lock()
	r.registered[cacheKey] = resp.ID
	r.byID[resp.ID] = &Schema{ID: resp.ID, Subject: subject, Schema: schema}
	r.mu.Unlock()

	return resp.ID, nil
}

func (r *ConfluentRegistry) GetByID(ctx context.Context, id int) (*Schema, error) {
	r.mu.RLock()
	cached, ok := r.byID[id]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	endpoint := fmt.Sprintf("%s/schemas/ids/%d", r.baseURL, id)
	var s Schema
	if err := r.do(ctx, http.MethodGet, endpoint, nil, &s); err != nil {
		return nil, fmt.Errorf("get schema by id %d: %w", id, err)
	}
	s.ID = id

	r.mu.Lock()
	r.byID[id] = &s
	r.mu.Unlock()

	return &s, nil
}

func (r *ConfluentRegistry) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", contentType)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("registry returned %d: %s", resp.StatusCode, string(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
