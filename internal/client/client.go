// Package client talks to the player API and keeps a local mirror of the player's state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"

	"wildsats-api/internal/catalog"
	"wildsats-api/internal/identity"
	"wildsats-api/internal/model"
)

// Client is an HTTP client for the player API.
type Client struct {
	baseURL    string
	signer     identity.EventSigner
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithSigner signs mutating requests with NIP-98 headers.
func WithSigner(s identity.EventSigner) Option {
	return func(c *Client) { c.signer = s }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// NewClient creates a new API client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is an error response from the API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Extra   any    `json:"extra,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Code, e.Status)
}

// Unwrap maps API error codes onto the domain sentinels so callers can use errors.Is.
// ROUTE_NOT_FOUND maps to nothing: a wrong base URL is not a missing user.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "NOT_FOUND":
		return model.ErrUserNotFound
	case "VALIDATION_ERROR":
		return model.ErrInvalidInput
	case "MALFORMED_IDENTITY":
		return model.ErrMalformedIdentity
	case "UNKNOWN_CHARACTER":
		return model.ErrUnknownCharacter
	case "UNAUTHORIZED":
		return identity.ErrInvalidAuth
	case "INTERNAL_ERROR", "SERVICE_UNAVAILABLE":
		return model.ErrStorageFailure
	}
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

// Do performs a request and decodes the envelope's data into result.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	target := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return oops.Code("CLIENT_ENCODE").In("client").Wrapf(err, "failed to marshal request")
		}
		payload = data
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return oops.Code("CLIENT_REQUEST").In("client").With("url", target).Wrapf(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.signer != nil && method != http.MethodGet {
		auth, err := identity.AuthorizationHeader(ctx, c.signer, method, target, payload)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return oops.Code("CLIENT_TRANSPORT").In("client").With("method", method).With("url", target).Wrapf(err, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return oops.Code("CLIENT_TRANSPORT").In("client").Wrapf(err, "failed to read response")
	}

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode >= 400 {
		if decodeErr == nil && env.Error != nil && env.Error.Code != "" {
			env.Error.Status = resp.StatusCode
			return env.Error
		}
		return &APIError{Status: resp.StatusCode, Code: "HTTP_ERROR", Message: strings.TrimSpace(string(respBody))}
	}

	if decodeErr != nil {
		return oops.Code("CLIENT_DECODE").In("client").Wrapf(decodeErr, "failed to parse response")
	}
	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return oops.Code("CLIENT_DECODE").In("client").Wrapf(err, "failed to parse response data")
		}
	}
	return nil
}

func userPath(identity string, rest ...string) string {
	p := "/api/users/" + url.PathEscape(identity)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// Login upserts the player record.
func (c *Client) Login(ctx context.Context, identity, displayName string) (*model.PlayerRecord, error) {
	var record model.PlayerRecord
	req := map[string]string{"identity": identity, "displayName": displayName}
	if err := c.Do(ctx, http.MethodPost, "/api/users", req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetPlayer fetches the full record.
func (c *Client) GetPlayer(ctx context.Context, identity string) (*model.PlayerRecord, error) {
	var record model.PlayerRecord
	if err := c.Do(ctx, http.MethodGet, userPath(identity), nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetCharacters lists owned characters.
func (c *Client) GetCharacters(ctx context.Context, identity string) ([]string, error) {
	var out struct {
		Characters []string `json:"characters"`
	}
	if err := c.Do(ctx, http.MethodGet, userPath(identity, "characters"), nil, &out); err != nil {
		return nil, err
	}
	return out.Characters, nil
}

// AddCharacter grants a character and returns the updated list.
func (c *Client) AddCharacter(ctx context.Context, identity, name string) ([]string, error) {
	var out struct {
		Characters []string `json:"characters"`
	}
	req := map[string]string{"character": name}
	if err := c.Do(ctx, http.MethodPost, userPath(identity, "characters"), req, &out); err != nil {
		return nil, err
	}
	return out.Characters, nil
}

// AddInventoryItem appends an item and returns the updated inventory.
func (c *Client) AddInventoryItem(ctx context.Context, identity, item string) ([]string, error) {
	var out struct {
		Inventory []string `json:"inventory"`
	}
	req := map[string]string{"item": item}
	if err := c.Do(ctx, http.MethodPost, userPath(identity, "inventory"), req, &out); err != nil {
		return nil, err
	}
	return out.Inventory, nil
}

// BuyAnimal purchases a catalog animal.
func (c *Client) BuyAnimal(ctx context.Context, identity, animal string) (*model.PurchaseResult, error) {
	var out model.PurchaseResult
	req := map[string]string{"animal": animal}
	if err := c.Do(ctx, http.MethodPost, userPath(identity, "buy-animal"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Catalog lists the purchasable animals.
func (c *Client) Catalog(ctx context.Context) ([]catalog.Animal, error) {
	var out struct {
		Animals []catalog.Animal `json:"animals"`
	}
	if err := c.Do(ctx, http.MethodGet, "/api/catalog", nil, &out); err != nil {
		return nil, err
	}
	return out.Animals, nil
}
