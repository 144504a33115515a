// Package web3signer is a thin HTTP client for the remote signing
// service. The signer holds the actual key material at runtime; this
// repository only manages what the signer is configured to load, so the
// surface here is liveness, the loaded-key listing and reload.
package web3signer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	publicKeysPath = "/api/v1/eth2/publicKeys"
	reloadPath     = "/reload"
	upcheckPath    = "/upcheck"

	maxTimeout = 5 * time.Second
)

var log = logrus.WithField("prefix", "web3signer")

// ErrTransport covers network failures, timeouts and undecodable
// responses from the signer.
var ErrTransport = errors.New("web3signer: transport failure")

// HTTPClient is the minimal client surface, swappable in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one web3signer instance.
type Client struct {
	baseURL    string
	restClient HTTPClient
}

// NewClient validates the endpoint and constructs a Client.
func NewClient(endpoint string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "invalid format, unable to parse signer url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("signer url %q needs scheme and host", endpoint)
	}
	return &Client{
		baseURL:    strings.TrimSuffix(u.String(), "/"),
		restClient: &http.Client{Timeout: maxTimeout},
	}, nil
}

// Upcheck probes the signer's liveness endpoint.
func (c *Client) Upcheck(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, upcheckPath, nil)
	if err != nil {
		return err
	}
	defer closeBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrTransport, "upcheck returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// LoadedPublicKeys returns the hex public keys the signer currently has
// loaded.
func (c *Client) LoadedPublicKeys(ctx context.Context) ([]string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, publicKeysPath, nil)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrTransport, "public key listing returned HTTP %d", resp.StatusCode)
	}
	var publicKeys []string
	if err := json.NewDecoder(resp.Body).Decode(&publicKeys); err != nil {
		return nil, errors.Wrap(ErrTransport, "invalid format, unable to read response body as array of strings")
	}
	return publicKeys, nil
}

// Reload asks the signer to re-scan its key configuration directory.
func (c *Client) Reload(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, reloadPath, nil)
	if err != nil {
		return err
	}
	defer closeBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrTransport, "reload returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, httpMethod, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, httpMethod, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "invalid format, failed to create request")
	}
	resp, err := c.restClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "%s %s: %v", httpMethod, path, err)
	}
	return resp, nil
}

func closeBody(body io.Closer) {
	if err := body.Close(); err != nil {
		log.Errorf("could not close response body: %v", err)
	}
}
