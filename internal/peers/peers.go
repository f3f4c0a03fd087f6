// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package peers makes outbound agent-to-agent calls to the peer
// constellation: orchestrator, miner, and log-attacker.
package peers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/nexus-agents/dev-nexus/internal/httpx"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// Peer names a known peer agent.
type Peer string

const (
	Orchestrator Peer = "orchestrator"
	Miner        Peer = "miner"
	LogAttacker  Peer = "log_attacker"
)

// All lists the known peers in presentation order.
var All = []Peer{Orchestrator, Miner, LogAttacker}

// Endpoint is the reachability config for one peer. An empty URL means
// the peer is disabled.
type Endpoint struct {
	URL   string
	Token string
}

// CallTimeout bounds one outbound call, health probes included.
const CallTimeout = 30 * time.Second

// Health is the probe result for one peer.
type Health struct {
	Agent           Peer       `json:"agent"`
	Status          string     `json:"status"`
	URL             string     `json:"url,omitempty"`
	ResponseTimeMS  int64      `json:"response_time_ms,omitempty"`
	LastInteraction *time.Time `json:"last_interaction,omitempty"`
}

// Client fans out to peer agents. Failed calls degrade to error-bearing
// results rather than propagate, so a skill can report partial state.
type Client struct {
	endpoints map[Peer]Endpoint
	tokens    map[Peer]oauth2.TokenSource
	client    httpx.BasicClient

	mu   sync.Mutex
	seen map[Peer]time.Time
}

// NewClient builds a peer client over the given endpoints. Transport
// errors are retried once.
func NewClient(endpoints map[Peer]Endpoint) *Client {
	tokens := make(map[Peer]oauth2.TokenSource)
	for peer, ep := range endpoints {
		if ep.Token != "" {
			tokens[peer] = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: ep.Token, TokenType: "Bearer"})
		}
	}
	return &Client{
		endpoints: endpoints,
		tokens:    tokens,
		client:    &httpx.WithRetry{BasicClient: http.DefaultClient},
		seen:      make(map[Peer]time.Time),
	}
}

// WithHTTPClient overrides the underlying transport. Tests use this.
func (c *Client) WithHTTPClient(client httpx.BasicClient) *Client {
	c.client = client
	return c
}

// Execute invokes skillID on the peer. A disabled peer yields a
// non-error result with success=false; so do transport failures.
func (c *Client) Execute(ctx context.Context, peer Peer, skillID string, input map[string]any) map[string]any {
	ep, ok := c.endpoints[peer]
	if !ok || ep.URL == "" {
		return map[string]any{"success": false, "error": "disabled"}
	}
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()
	body, err := json.Marshal(map[string]any{"skill_id": skillID, "input": input})
	if err != nil {
		return map[string]any{"success": false, "error": err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL+"/a2a/execute", bytes.NewReader(body))
	if err != nil {
		return map[string]any{"success": false, "error": err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if src, ok := c.tokens[peer]; ok {
		tok, err := src.Token()
		if err != nil {
			return map[string]any{"success": false, "error": errors.Wrap(err, "peer credentials").Error()}
		}
		tok.SetAuthHeader(req)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return map[string]any{"success": false, "error": errors.Wrapf(err, "calling %s", peer).Error()}
	}
	defer resp.Body.Close()
	c.touch(peer)
	result := make(map[string]any)
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return map[string]any{"success": false, "error": errors.Wrap(err, "decoding response").Error()}
	}
	if resp.StatusCode != http.StatusOK {
		if _, ok := result["success"]; !ok {
			result["success"] = false
		}
		if _, ok := result["error"]; !ok {
			result["error"] = resp.Status
		}
	}
	return result
}

// ProbeHealth probes one peer's /health endpoint.
func (c *Client) ProbeHealth(ctx context.Context, peer Peer) Health {
	ep, ok := c.endpoints[peer]
	if !ok || ep.URL == "" {
		return Health{Agent: peer, Status: "disabled"}
	}
	h := Health{Agent: peer, URL: ep.URL, LastInteraction: c.lastSeen(peer)}
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL+"/health", nil)
	if err != nil {
		h.Status = "unreachable"
		return h
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	h.ResponseTimeMS = time.Since(start).Milliseconds()
	if err != nil {
		h.Status = "unreachable"
		return h
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode == http.StatusOK {
		h.Status = "healthy"
		c.touch(peer)
	} else {
		h.Status = "unhealthy"
	}
	h.LastInteraction = c.lastSeen(peer)
	return h
}

// ProbeAll probes every configured peer concurrently, or only the named
// one when peer is non-empty.
func (c *Client) ProbeAll(ctx context.Context, peer Peer) []Health {
	targets := All
	if peer != "" {
		targets = []Peer{peer}
	}
	results := make([]Health, len(targets))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range targets {
		g.Go(func() error {
			results[i] = c.ProbeHealth(ctx, p)
			return nil
		})
	}
	g.Wait() // Probes never return errors.
	return results
}

func (c *Client) touch(peer Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[peer] = time.Now().UTC()
}

func (c *Client) lastSeen(peer Peer) *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.seen[peer]; ok {
		return &t
	}
	return nil
}
