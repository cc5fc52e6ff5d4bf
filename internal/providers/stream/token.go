package stream

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

	"github.com/preston-bernstein/pacs-bridge/internal/providers"
	"github.com/preston-bernstein/pacs-bridge/internal/retry"
)

var errNoToken = errors.New("auth response carried no token")

const defaultTokenTTL = 45 * time.Minute

type loginResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// tokenCache logs in against the auth URL and reuses the bearer token until
// it expires or is invalidated.
type tokenCache struct {
	authURL   string
	username  string
	password  string
	ttl       time.Duration
	requester providers.Requester
	now       func() time.Time

	mu     sync.RWMutex
	token  string
	expiry time.Time
}

func newTokenCache(authURL, username, password string, ttl time.Duration, requester providers.Requester) *tokenCache {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &tokenCache{
		authURL:   authURL,
		username:  username,
		password:  password,
		ttl:       ttl,
		requester: requester,
		now:       time.Now,
	}
}

// Token returns a cached token if valid, otherwise logs in again. An empty
// auth URL means the stream is unauthenticated.
func (c *tokenCache) Token(ctx context.Context) (string, error) {
	if c.authURL == "" {
		return "", nil
	}
	c.mu.RLock()
	if c.token != "" && c.now().Before(c.expiry) {
		token := c.token
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expiry) {
		return c.token, nil
	}

	token, ttl, err := c.login(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expiry = c.now().Add(ttl)
	return token, nil
}

func (c *tokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiry = time.Time{}
}

func (c *tokenCache) login(ctx context.Context) (string, time.Duration, error) {
	body, err := json.Marshal(map[string]string{"username": c.username, "password": c.password})
	if err != nil {
		return "", 0, err
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	resp, err := c.requester.Do(ctx, http.MethodPost, c.authURL, retry.Options{Header: header, Body: body, Target: "auth"})
	if err != nil {
		return "", 0, fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", 0, fmt.Errorf("login: read response: %w", err)
	}
	var parsed loginResponse
	if err := json.Unmarshal(bytes.TrimSpace(raw), &parsed); err != nil {
		return "", 0, fmt.Errorf("login: decode response: %w", err)
	}
	token := strings.TrimSpace(parsed.AccessToken)
	if token == "" {
		token = strings.TrimSpace(parsed.Token)
	}
	if token == "" {
		return "", 0, errNoToken
	}
	ttl := c.ttl
	if parsed.ExpiresIn > 0 {
		if reported := time.Duration(parsed.ExpiresIn) * time.Second; reported < ttl {
			ttl = reported
		}
	}
	return token, ttl, nil
}
