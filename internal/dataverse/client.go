package dataverse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

// Record is one upstream row, returned verbatim.
type Record map[string]any

// Client reads rows from a Dataverse environment. One Client is shared by the
// whole process: it owns the credential, the resource mappings and the gate
// bounding concurrent fetches.
type Client struct {
	cfg      Config
	tokens   *TokenSource
	resolver *Resolver
	gate     *semaphore.Weighted
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:    cfg,
		tokens: NewTokenSource(cfg),
		gate:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		sleep:  sleepContext,
	}
	c.resolver = NewResolver(c.lookupCollection, cfg.requestBudget())
	return c
}

// Configured returns the configuration error, if any, that stops every upstream call.
func (c *Client) Configured() error {
	return c.cfg.validate()
}

// Resolve maps a logical name to its physical collection.
func (c *Client) Resolve(ctx context.Context, logicalName string) (string, error) {
	if err := c.cfg.validate(); err != nil {
		return "", err
	}
	return c.resolver.Resolve(ctx, logicalName)
}

// CachedCollection reports a previously resolved collection without network access.
func (c *Client) CachedCollection(logicalName string) (string, bool) {
	return c.resolver.Cached(logicalName)
}

type entityDefinition struct {
	EntitySetName string `json:"EntitySetName"`
}

func (c *Client) lookupCollection(ctx context.Context, logicalName string) (string, error) {
	name := url.PathEscape(strings.ReplaceAll(logicalName, "'", "''"))
	u := c.cfg.apiBase() + "/EntityDefinitions(LogicalName='" + name + "')?$select=EntitySetName"

	body, err := c.get(ctx, u)
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) && ue.Status == http.StatusNotFound {
			return "", &NotFoundError{LogicalName: logicalName}
		}
		return "", err
	}

	var def entityDefinition
	if err := json.Unmarshal(body, &def); err != nil {
		return "", fmt.Errorf("decode entity definition for %s: %w", logicalName, err)
	}
	if def.EntitySetName == "" {
		return "", &NotFoundError{LogicalName: logicalName}
	}
	slog.Debug("resolved dataverse collection", "logical_name", logicalName, "collection", def.EntitySetName)
	return def.EntitySetName, nil
}

type page struct {
	Value    []Record `json:"value"`
	NextLink string   `json:"@odata.nextLink"`
}

// FetchAll retrieves every page of q against collection. Either all pages
// arrive or the whole fetch fails; partial results are never returned.
func (c *Client) FetchAll(ctx context.Context, collection string, q Query) ([]Record, error) {
	if err := c.cfg.validate(); err != nil {
		return nil, err
	}
	if err := c.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.gate.Release(1)

	next := c.cfg.apiBase() + "/" + BuildQuery(collection, q)
	rows := []Record{}
	pages := 0
	for next != "" {
		body, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}
		var p page
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("decode page %d of %s: %w", pages+1, collection, err)
		}
		rows = append(rows, p.Value...)
		pages++
		if p.NextLink == next {
			return nil, fmt.Errorf("page %d of %s links to itself", pages, collection)
		}
		next = p.NextLink
	}

	slog.Debug("fetched dataverse collection", "collection", collection, "pages", pages, "rows", len(rows))
	return rows, nil
}

// get performs one authenticated GET. 429, 5xx and transport failures are
// retried along the backoff ladder. A 401 refreshes the credential once and is
// retried immediately.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("invalid request url: %w", err)
	}

	var (
		lastErr   error
		timedOut  bool
		refreshed bool
		attempt   int
	)
	for {
		cred, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		status, body, err := c.do(ctx, rawURL, cred.Token)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr, timedOut = err, isTimeout(err)
		case status >= 200 && status < 300:
			return body, nil
		case status == http.StatusUnauthorized:
			if refreshed {
				return nil, &AuthError{Status: status, Body: truncate(body)}
			}
			refreshed = true
			c.tokens.Invalidate(cred.Token)
			slog.Debug("dataverse rejected credential, refreshing", "url", rawURL)
			continue
		case status == http.StatusTooManyRequests || status >= 500:
			lastErr, timedOut = &UpstreamError{Status: status, Body: truncate(body)}, false
		default:
			return nil, &UpstreamError{Status: status, Body: truncate(body)}
		}

		if attempt >= len(c.cfg.Backoff) {
			sentinel := ErrUpstreamUnavailable
			if timedOut {
				sentinel = ErrUpstreamTimeout
			}
			return nil, fmt.Errorf("%w after %d attempts: %v", sentinel, attempt+1, lastErr)
		}
		delay := c.cfg.Backoff[attempt]
		attempt++
		slog.Debug("retrying dataverse request", "url", rawURL, "attempt", attempt, "delay", delay.String(), "error", lastErr)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) do(ctx context.Context, rawURL, token string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("OData-MaxVersion", "4.0")
	req.Header.Set("OData-Version", "4.0")
	prefer := `odata.include-annotations="OData.Community.Display.V1.FormattedValue"`
	if c.cfg.PageSize > 0 {
		prefer += ",odata.maxpagesize=" + strconv.Itoa(c.cfg.PageSize)
	}
	req.Header.Set("Prefer", prefer)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
