// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpx provides a simpler http.Client abstraction and decorators.
package httpx

import (
	"bytes"
	"io"
	"net/http"
	"time"
)

// BasicClient is a simpler http.Client that only requires a Do method.
type BasicClient interface {
	Do(*http.Request) (*http.Response, error)
}

var _ BasicClient = http.DefaultClient

// WithUserAgent is a basic HTTP client that adds a User-Agent header.
type WithUserAgent struct {
	BasicClient
	UserAgent string
}

var _ BasicClient = &WithUserAgent{}

// Do adds the User-Agent header and sends the request.
func (c *WithUserAgent) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.UserAgent)
	return c.BasicClient.Do(req)
}

// WithBearer is a basic HTTP client that attaches a static bearer token.
type WithBearer struct {
	BasicClient
	Token string
}

var _ BasicClient = &WithBearer{}

func (c *WithBearer) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.Token)
	return c.BasicClient.Do(req)
}

// WithRetry retries a request once on transport failure. HTTP-level
// responses, including 4xx and 5xx, are never retried. Requests with a
// body are buffered so the retry can replay them.
type WithRetry struct {
	BasicClient
	// Backoff before the retry attempt. Zero means retry immediately.
	Backoff time.Duration
}

var _ BasicClient = &WithRetry{}

func (c *WithRetry) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	resp, err := c.BasicClient.Do(req)
	if err == nil {
		return resp, nil
	}
	if ctxErr := req.Context().Err(); ctxErr != nil {
		return nil, err
	}
	if c.Backoff > 0 {
		select {
		case <-time.After(c.Backoff):
		case <-req.Context().Done():
			return nil, err
		}
	}
	retry := req.Clone(req.Context())
	if body != nil {
		retry.Body = io.NopCloser(bytes.NewReader(body))
	}
	return c.BasicClient.Do(retry)
}
