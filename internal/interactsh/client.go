package interactsh

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxResponseSize bounds provider responses. Poll batches of large HTTP
// interactions can be sizeable but never approach this.
const maxResponseSize = 32 * 1024 * 1024

// State is the lifecycle state of a Client.
type State int

const (
	// StateUnregistered is the initial state.
	StateUnregistered State = iota
	// StateRegistered means a provider accepted the registration.
	StateRegistered
	// StateDeregistered is terminal.
	StateDeregistered
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateDeregistered:
		return "deregistered"
	default:
		return "unknown"
	}
}

// Client talks to an interactsh provider.
// Methods are safe for concurrent use; they are serialized internally,
// so at most one poll is in flight per client.
//
// A Sink must not call back into the Client that invoked it.
type Client struct {
	httpClient *http.Client
	servers    []string
	token      string
	logger     *slog.Logger

	mu    sync.Mutex
	state State
	reg   Registration
	key   *rsa.PrivateKey
	sink  Sink
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used to talk to providers.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithServers sets the providers tried by Register. Entries are bare hosts
// (https is assumed) or base URLs. Blank entries are ignored.
func WithServers(servers ...string) Option {
	return func(c *Client) {
		c.servers = c.servers[:0]
		for _, s := range servers {
			if s = strings.TrimSpace(s); s != "" {
				c.servers = append(c.servers, s)
			}
		}
	}
}

// WithToken sets the token sent in the Authorization header.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates an unregistered Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Registration returns the active registration.
// ok is false unless the client is registered.
func (c *Client) Registration() (reg Registration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRegistered {
		return Registration{}, false
	}
	return c.reg, true
}

// Domain returns the callback domain, or "" unless registered.
func (c *Client) Domain() string {
	reg, _ := c.Registration()
	return reg.Domain
}

type registerRequest struct {
	PublicKey     string `json:"public-key"`
	SecretKey     string `json:"secret-key"`
	CorrelationID string `json:"correlation-id"`
}

type deregisterRequest struct {
	CorrelationID string `json:"correlation-id"`
	SecretKey     string `json:"secret-key"`
}

type pollResponse struct {
	Data    []string `json:"data"`
	Extra   []string `json:"extra"`
	AESKey  string   `json:"aes_key"`
	TLDData []string `json:"tld_data,omitempty"`
}

// Register creates a registration on the first provider that accepts it and
// returns the callback domain. Providers are tried in random order so load
// spreads across the public instances. Polled interactions are delivered to
// sink; a nil sink discards them.
func (c *Client) Register(ctx context.Context, sink Sink) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateRegistered:
		return "", ErrAlreadyRegistered
	case StateDeregistered:
		return "", ErrDeregistered
	}
	if len(c.servers) == 0 {
		return "", fmt.Errorf("%w: %w", ErrRegistration, ErrNoServers)
	}
	if sink == nil {
		sink = discardSink
	}

	key, err := generateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate key pair: %w", err)
	}
	publicKey, err := encodePublicKey(&key.PublicKey)
	if err != nil {
		return "", err
	}

	payload := registerRequest{
		PublicKey:     publicKey,
		SecretKey:     uuid.NewString(),
		CorrelationID: randomLabel(correlationIDLength),
	}

	servers := append([]string(nil), c.servers...)
	rand.Shuffle(len(servers), func(i, j int) { servers[i], servers[j] = servers[j], servers[i] })

	var errs []error
	for _, server := range servers {
		base, err := baseURL(server)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", server, err))
			continue
		}

		if err := c.post(ctx, base.JoinPath("register").String(), payload); err != nil {
			c.logger.Debug("interactsh registration failed", "server", base.String(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", base.Host, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		c.key = key
		c.sink = sink
		c.reg = Registration{
			CorrelationID: payload.CorrelationID,
			Server:        base.String(),
			Domain:        payload.CorrelationID + randomLabel(nonceLength) + "." + base.Hostname(),
			SecretKey:     payload.SecretKey,
			CreatedAt:     time.Now(),
		}
		c.state = StateRegistered

		c.logger.Debug("interactsh registered", "server", c.reg.Server, "domain", c.reg.Domain)
		return c.reg.Domain, nil
	}

	return "", fmt.Errorf("%w: %w", ErrRegistration, errors.Join(errs...))
}

// Poll fetches the interactions recorded since the previous poll, hands each
// one to the sink and returns them all. A failed poll leaves the client
// registered.
func (c *Client) Poll(ctx context.Context) ([]Interaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateUnregistered:
		return nil, ErrNotRegistered
	case StateDeregistered:
		return nil, ErrDeregistered
	}

	base, err := url.Parse(c.reg.Server)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPoll, err)
	}
	pollURL := base.JoinPath("poll")
	query := url.Values{}
	query.Set("id", c.reg.CorrelationID)
	query.Set("secret", c.reg.SecretKey)
	pollURL.RawQuery = query.Encode()

	body, err := c.do(ctx, http.MethodGet, pollURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPoll, err)
	}

	var resp pollResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %w", ErrPoll, err)
	}

	interactions, err := c.decode(resp)
	if err != nil {
		return nil, err
	}

	for _, interaction := range interactions {
		if err := c.sink.HandleInteraction(ctx, c.reg, interaction); err != nil {
			c.logger.Warn("interaction sink failed",
				"protocol", interaction.Protocol,
				"unique_id", interaction.UniqueID,
				"error", err)
		}
	}

	if len(interactions) > 0 {
		c.logger.Debug("interactsh poll", "domain", c.reg.Domain, "interactions", len(interactions))
	}
	return interactions, nil
}

// decode turns a poll response into interactions. Records that fail to
// decrypt or parse are logged and skipped.
func (c *Client) decode(resp pollResponse) ([]Interaction, error) {
	interactions := make([]Interaction, 0, len(resp.Data)+len(resp.Extra))

	if len(resp.Data) > 0 {
		aesKey, err := decryptAESKey(c.key, resp.AESKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPoll, err)
		}
		for _, record := range resp.Data {
			plain, err := decryptRecord(aesKey, record)
			if err != nil {
				c.logger.Warn("skipping interaction", "error", err)
				continue
			}
			if interaction, ok := c.parse(plain); ok {
				interactions = append(interactions, interaction)
			}
		}
	}

	for _, record := range resp.Extra {
		if interaction, ok := c.parse([]byte(record)); ok {
			interactions = append(interactions, interaction)
		}
	}

	return interactions, nil
}

func (c *Client) parse(data []byte) (Interaction, bool) {
	var interaction Interaction
	if err := json.Unmarshal(data, &interaction); err != nil {
		c.logger.Warn("skipping malformed interaction", "error", err)
		return Interaction{}, false
	}
	interaction.Raw = json.RawMessage(bytes.Clone(data))
	return interaction, true
}

// Deregister removes the registration from the provider. The client ends in
// StateDeregistered even when the provider call fails; that error is still
// returned. Calling Deregister again is a no-op, as is calling it on a
// client that never registered.
func (c *Client) Deregister(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRegistered {
		return nil
	}

	reg := c.reg
	c.state = StateDeregistered
	c.key = nil
	c.sink = nil

	base, err := url.Parse(reg.Server)
	if err != nil {
		return fmt.Errorf("failed to deregister: %w", err)
	}
	payload := deregisterRequest{CorrelationID: reg.CorrelationID, SecretKey: reg.SecretKey}
	if err := c.post(ctx, base.JoinPath("deregister").String(), payload); err != nil {
		return fmt.Errorf("failed to deregister from %s: %w", base.Host, err)
	}

	c.logger.Debug("interactsh deregistered", "domain", reg.Domain)
	return nil
}

func (c *Client) post(ctx context.Context, rawURL string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, rawURL, body)
	return err
}

// do sends a request and returns the body of a 200 response.
func (c *Client) do(ctx context.Context, method, rawURL string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(truncate(data, 200))))
	}
	return data, nil
}

// baseURL turns a provider entry into a base URL.
func baseURL(server string) (*url.URL, error) {
	s := strings.TrimSpace(server)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid server: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid server %q", server)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
