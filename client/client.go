// Package client is the Go SDK for the RateBench permission API. It wraps
// the HTTP surface: session management, permission checks, and directory
// lookups.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUnauthorized indicates missing or rejected credentials.
	ErrUnauthorized = errors.New("client: unauthorized")
	// ErrForbidden indicates the permission check on the management surface failed.
	ErrForbidden = errors.New("client: forbidden")
	// ErrBadRequest indicates a malformed request, such as an invalid permission key.
	ErrBadRequest = errors.New("client: bad request")
)

// Client talks to a RateBench API server. It is safe for concurrent use once
// configured; SetToken swaps the bearer credential atomically per request.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithToken preloads a bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New constructs a Client for the given base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("client: base URL is required")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetToken replaces the bearer token used on subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string { return c.baseURL }

// TokenPair mirrors the server's token response.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Entity identifies a concrete record for entity-scoped checks.
type Entity struct {
	Type                string `json:"type"`
	ID                  string `json:"id"`
	OwnerOrganizationID string `json:"owner_organization_id,omitempty"`
}

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed bool     `json:"allowed"`
	Key     string   `json:"key,omitempty"`
	Keys    []string `json:"keys,omitempty"`
}

// Login exchanges credentials for a token pair and stores the access token on
// the client.
func (c *Client) Login(ctx context.Context, email, password string) (TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &pair)
	if err != nil {
		return TokenPair{}, err
	}
	c.SetToken(pair.AccessToken)
	return pair, nil
}

// Refresh rotates the refresh token and stores the new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/v1/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	}, &pair)
	if err != nil {
		return TokenPair{}, err
	}
	c.SetToken(pair.AccessToken)
	return pair, nil
}

// Logout revokes the session's refresh tokens.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/logout", struct{}{}, nil)
}

// Check resolves a single permission key. A nil entity checks the
// organization scope.
func (c *Client) Check(ctx context.Context, key string, entity *Entity) (Decision, error) {
	var dec Decision
	err := c.do(ctx, http.MethodPost, "/v1/permissions/check", map[string]any{
		"key":    key,
		"entity": entity,
	}, &dec)
	return dec, err
}

// CheckAny reports whether any of the keys is allowed.
func (c *Client) CheckAny(ctx context.Context, keys []string, entity *Entity) (Decision, error) {
	return c.batchCheck(ctx, "/v1/permissions/check-any", keys, entity)
}

// CheckAll reports whether every key is allowed.
func (c *Client) CheckAll(ctx context.Context, keys []string, entity *Entity) (Decision, error) {
	return c.batchCheck(ctx, "/v1/permissions/check-all", keys, entity)
}

func (c *Client) batchCheck(ctx context.Context, path string, keys []string, entity *Entity) (Decision, error) {
	var dec Decision
	err := c.do(ctx, http.MethodPost, path, map[string]any{
		"keys":   keys,
		"entity": entity,
	}, &dec)
	return dec, err
}

// Organization mirrors the server's organization resource.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Actor mirrors the server's actor resource.
type Actor struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	Status         string `json:"status"`
}

// CreateOrganization onboards an organization. Requires the manage grant.
func (c *Client) CreateOrganization(ctx context.Context, name, kind string) (Organization, error) {
	var org Organization
	err := c.do(ctx, http.MethodPost, "/v1/organizations", map[string]any{
		"name": name,
		"kind": kind,
	}, &org)
	return org, err
}

// CreateActor creates an actor inside the organization. Requires the manage grant.
func (c *Client) CreateActor(ctx context.Context, orgID, email, password, role string) (Actor, error) {
	var actor Actor
	err := c.do(ctx, http.MethodPost, "/v1/organizations/"+orgID+"/actors", map[string]any{
		"email":    email,
		"password": password,
		"role":     role,
	}, &actor)
	return actor, err
}

// EffectivePermissions fetches the sorted permission keys of an actor.
func (c *Client) EffectivePermissions(ctx context.Context, actorID string) ([]string, error) {
	var payload struct {
		Permissions []string `json:"permissions"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/actors/"+actorID+"/permissions", nil, &payload)
	return payload.Permissions, err
}

// Healthz probes liveness.
func (c *Client) Healthz(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var payload struct {
		Error     string `json:"error"`
		RequestID string `json:"request_id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	msg := payload.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	var base error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		base = ErrUnauthorized
	case http.StatusForbidden:
		base = ErrForbidden
	case http.StatusBadRequest:
		base = ErrBadRequest
	default:
		return fmt.Errorf("client: server returned %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: %s", base, msg)
}
