// Package vault is a typed client for a KV v2 secret store. It exposes
// the five operations the credential manager needs (get, put, list,
// soft-delete, destroy) plus a non-throwing path classifier, behind the
// KV interface so higher layers can be tested against an in-memory
// implementation.
package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultTimeout = 10 * time.Second

// KV is the contract every higher layer consumes. *Client implements it
// against a live store; vault/mock implements it in memory.
type KV interface {
	Get(ctx context.Context, path string) (map[string]interface{}, int, error)
	Put(ctx context.Context, path string, data map[string]interface{}) (int, error)
	PutCAS(ctx context.Context, path string, data map[string]interface{}, cas int) (int, error)
	List(ctx context.Context, prefix string) ([]string, error)
	SoftDelete(ctx context.Context, path string, version int) error
	Destroy(ctx context.Context, path string) error
	Classify(ctx context.Context, path string) Classification
	Health(ctx context.Context) error
}

// Config holds everything needed to construct a Client. There is no
// package-level client state; callers pass the constructed client into
// each component that needs it.
type Config struct {
	Addr    string
	Token   string
	Mount   string
	Timeout time.Duration

	// HTTPClient overrides the default transport, used in tests.
	HTTPClient *http.Client
}

// Client speaks the KV v2 HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	mount      string
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("vault: address is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("vault: token is required")
	}
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(cfg.Addr, "/"),
		token:      cfg.Token,
		mount:      cfg.Mount,
	}, nil
}

type secretData struct {
	Data     map[string]interface{} `json:"data"`
	Metadata struct {
		Version      int    `json:"version"`
		DeletionTime string `json:"deletion_time"`
		Destroyed    bool   `json:"destroyed"`
	} `json:"metadata"`
}

// Get reads the current version of the secret at path. Returns the
// payload and the version number the store reported for it.
func (c *Client) Get(ctx context.Context, path string) (map[string]interface{}, int, error) {
	body, err := c.do(ctx, http.MethodGet, c.dataURL(path), nil)
	if err != nil {
		return nil, 0, err
	}
	var resp struct {
		Data secretData `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, errors.Wrapf(ErrTransport, "could not decode secret at %s: %v", path, err)
	}
	if resp.Data.Data == nil {
		// Current version exists but was soft-deleted.
		return nil, 0, errors.Wrapf(ErrNotFound, "no readable data at %s", path)
	}
	return resp.Data.Data, resp.Data.Metadata.Version, nil
}

// Put writes data as a new version of the secret at path.
func (c *Client) Put(ctx context.Context, path string, data map[string]interface{}) (int, error) {
	return c.put(ctx, path, data, -1)
}

// PutCAS writes data only if the current version equals cas. A cas of 0
// requires the path to be empty. Version conflicts surface as
// ErrCheckAndSet.
func (c *Client) PutCAS(ctx context.Context, path string, data map[string]interface{}, cas int) (int, error) {
	return c.put(ctx, path, data, cas)
}

func (c *Client) put(ctx context.Context, path string, data map[string]interface{}, cas int) (int, error) {
	payload := map[string]interface{}{"data": data}
	if cas >= 0 {
		payload["options"] = map[string]interface{}{"cas": cas}
	}
	body, err := c.do(ctx, http.MethodPost, c.dataURL(path), payload)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Data struct {
			Version int `json:"version"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, errors.Wrapf(ErrTransport, "could not decode write response for %s: %v", path, err)
	}
	return resp.Data.Version, nil
}

// List returns the child names under prefix. A missing prefix is an
// empty listing, not an error.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, c.metadataURL(prefix)+"?list=true", nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var resp struct {
		Data struct {
			Keys []string `json:"keys"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(ErrTransport, "could not decode listing under %s: %v", prefix, err)
	}
	return resp.Data.Keys, nil
}

// SoftDelete marks the given version of the secret deleted. Metadata
// and the deletion timestamp remain; the data becomes unreadable.
func (c *Client) SoftDelete(ctx context.Context, path string, version int) error {
	payload := map[string]interface{}{"versions": []int{version}}
	_, err := c.do(ctx, http.MethodPost, c.v1URL("delete", path), payload)
	return err
}

// Destroy irreversibly removes all versions and metadata at path.
func (c *Client) Destroy(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, c.metadataURL(path), nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Health probes the store's health endpoint. Any response at all means
// the store is reachable; sealed/standby status codes still prove
// connectivity for our purposes.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/sys/health", nil)
	if err != nil {
		return errors.Wrap(err, "could not build health request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(ErrTransport, "health check failed: %v", err)
	}
	defer closeBody(resp.Body)
	return nil
}

func (c *Client) dataURL(path string) string {
	return c.v1URL("data", path)
}

func (c *Client) metadataURL(path string) string {
	return c.v1URL("metadata", path)
}

func (c *Client) v1URL(op, path string) string {
	return fmt.Sprintf("%s/v1/%s/%s/%s", c.baseURL, c.mount, op, strings.TrimPrefix(path, "/"))
}

func (c *Client) do(ctx context.Context, method, url string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "could not marshal request payload")
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "could not build request")
	}
	req.Header.Set("X-Vault-Token", c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "%s %s: %v", method, url, err)
	}
	defer closeBody(resp.Body)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "could not read response body: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func newAPIError(status int, body []byte) error {
	var parsed struct {
		Errors []string `json:"errors"`
	}
	// A body that fails to parse still yields a usable error.
	_ = json.Unmarshal(body, &parsed)
	return &APIError{StatusCode: status, Messages: parsed.Errors}
}

func closeBody(body io.Closer) {
	if err := body.Close(); err != nil {
		log.Errorf("could not close response body: %v", err)
	}
}
