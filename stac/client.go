/*
Copyright © 2025 the eocube authors.
This file is part of eocube.

eocube is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

eocube is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with eocube.  If not, see <http://www.gnu.org/licenses/>.
*/


// Package stac searches SpatioTemporal Asset Catalog APIs for the items
// of a data cube.
package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/eocube"
	"golang.org/x/time/rate"
)

// DefaultURL is the EOPF Sentinel Zarr Samples catalog.
const DefaultURL = "https://stac.core.eopf.eodc.eu"

// Client searches a STAC API.
type Client struct {
	// URL is the root of the API; searches are sent to URL/search.
	URL string

	HTTPClient *http.Client

	// Limiter paces requests, including retries and page fetches.
	// A nil Limiter does not limit.
	Limiter *rate.Limiter

	// PageSize is the number of items requested per page.
	PageSize int

	// MaxRetries is the number of times a request failing with a
	// throttling or server error is retried.
	MaxRetries uint64

	// RetryInterval is the initial wait between retries.
	RetryInterval time.Duration

	Log logrus.FieldLogger
}

var _ eocube.Catalog = (*Client)(nil)

// NewClient returns a client for the API at url making at most
// 10 requests per second.
func NewClient(url string) *Client {
	return &Client{
		URL:           strings.TrimSuffix(url, "/"),
		HTTPClient:    http.DefaultClient,
		Limiter:       rate.NewLimiter(rate.Limit(10), 1),
		PageSize:      100,
		MaxRetries:    5,
		RetryInterval: 500 * time.Millisecond,
		Log:           logrus.StandardLogger(),
	}
}

type searchBody struct {
	eocube.SearchParams
	Limit int `json:"limit,omitempty"`
}

type link struct {
	Rel    string                 `json:"rel"`
	Href   string                 `json:"href"`
	Method string                 `json:"method"`
	Body   map[string]interface{} `json:"body"`
	Merge  bool                   `json:"merge"`
}

type page struct {
	Features []feature `json:"features"`
	Links    []link    `json:"links"`
}

// pageRequest is one request of a paged search.
type pageRequest struct {
	method, url string
	body        map[string]interface{}
}

// Search returns all items matching p, following "next" links until the
// last page.
func (c *Client) Search(ctx context.Context, p eocube.SearchParams) ([]*eocube.Item, error) {
	b, err := json.Marshal(searchBody{SearchParams: p, Limit: c.PageSize})
	if err != nil {
		return nil, fmt.Errorf("stac: %w", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, fmt.Errorf("stac: %w", err)
	}
	req := &pageRequest{method: http.MethodPost, url: strings.TrimSuffix(c.URL, "/") + "/search", body: body}

	var items []*eocube.Item
	seen := make(map[string]bool)
	for n := 1; req != nil; n++ {
		pg, err := c.fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		for _, f := range pg.Features {
			it, err := f.item()
			if err != nil {
				return nil, err
			}
			// Paging over a changing catalog can repeat items.
			if seen[it.ID] {
				continue
			}
			seen[it.ID] = true
			items = append(items, it)
		}
		c.log().WithFields(logrus.Fields{"page": n, "items": len(pg.Features)}).Debug("stac page")
		req = next(pg.Links, req)
	}
	return items, nil
}

// next returns the request for the page after prev, or nil.
func next(links []link, prev *pageRequest) *pageRequest {
	for _, l := range links {
		if l.Rel != "next" || l.Href == "" {
			continue
		}
		if !strings.EqualFold(l.Method, http.MethodPost) {
			return &pageRequest{method: http.MethodGet, url: l.Href}
		}
		body := l.Body
		if l.Merge {
			body = make(map[string]interface{})
			for k, v := range prev.body {
				body[k] = v
			}
			for k, v := range l.Body {
				body[k] = v
			}
		}
		return &pageRequest{method: http.MethodPost, url: l.Href, body: body}
	}
	return nil
}

// statusError is a response with an unexpected status code.
type statusError struct {
	url    string
	status int
	msg    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("stac: %s returned %d %s: %s", e.url, e.status, http.StatusText(e.status), e.msg)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// fetch performs req, retrying throttled and failed requests with
// exponential backoff.
func (c *Client) fetch(ctx context.Context, req *pageRequest) (*page, error) {
	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return nil, fmt.Errorf("stac: %w", err)
		}
	}
	bo := backoff.NewExponentialBackOff()
	if c.RetryInterval > 0 {
		bo.InitialInterval = c.RetryInterval
	}
	var pg page
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		var r io.Reader
		if payload != nil {
			r = bytes.NewReader(payload)
		}
		hr, err := http.NewRequestWithContext(ctx, req.method, req.url, r)
		if err != nil {
			return backoff.Permanent(err)
		}
		hr.Header.Set("Accept", "application/geo+json")
		if payload != nil {
			hr.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.client().Do(hr)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.log().WithError(err).WithField("attempt", attempt).Warn("stac request failed")
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			serr := &statusError{url: req.url, status: resp.StatusCode, msg: strings.TrimSpace(string(msg))}
			if retryable(resp.StatusCode) {
				c.log().WithField("attempt", attempt).Warn(serr.Error())
				return serr
			}
			return backoff.Permanent(serr)
		}
		pg = page{}
		if err := json.NewDecoder(resp.Body).Decode(&pg); err != nil {
			return backoff.Permanent(fmt.Errorf("stac: decoding %s: %w", req.url, err))
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, c.MaxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return &pg, nil
}

func (c *Client) client() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

func (c *Client) log() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}
