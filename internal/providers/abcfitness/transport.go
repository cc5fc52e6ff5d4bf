package abcfitness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/preston-bernstein/pacs-bridge/internal/providers"
	"github.com/preston-bernstein/pacs-bridge/internal/retry"
)

func (c *Client) expandURL(raw string) string {
	return strings.ReplaceAll(raw, "{club_id}", url.PathEscape(c.cfg.ClubID))
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("app_id", c.cfg.AppID)
	h.Set("app_key", c.cfg.AppKey)
	// without an explicit accept the API answers in XML
	h.Set("accept", acceptHeader)
	return h
}

func (c *Client) getJSON(ctx context.Context, rawURL string, query url.Values, dest any) error {
	resp, err := c.requester.Do(ctx, http.MethodGet, c.expandURL(rawURL), retry.Options{
		Header: c.headers(),
		Query:  query,
		Target: providerName,
	})
	if err != nil {
		return providers.ClassifyError(providerName, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%s: decode %s: %w", providerName, rawURL, err)
	}
	return nil
}
