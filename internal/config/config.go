// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package config builds the immutable process configuration from the
// environment at startup.
package config

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// AuthMode selects how inbound skill calls are authenticated.
type AuthMode string

const (
	// AuthPublic accepts every request without identity.
	AuthPublic AuthMode = "public"
	// AuthWorkloadIdentity requires a valid platform-signed identity token.
	AuthWorkloadIdentity AuthMode = "workload_identity"
	// AuthServiceAccount additionally requires the token subject to appear
	// in the allow-list.
	AuthServiceAccount AuthMode = "service_account"
)

// Config is the process-wide configuration. It is constructed once at
// startup and never mutated.
type Config struct {
	// KnowledgeBaseRepo is the "owner/name" of the remote repository that
	// holds the knowledge base file.
	KnowledgeBaseRepo string
	// KnowledgeBaseFile is the path of the knowledge base document within
	// that repository.
	KnowledgeBaseFile string
	// RemoteToken authenticates pushes and fetches against the remote
	// repository.
	RemoteToken string
	// ExtractorAPIKey is the credential for the pattern extraction model.
	// Empty disables extraction.
	ExtractorAPIKey string
	AuthMode        AuthMode
	// AllowedServiceAccounts is the exact-match caller allow-list used in
	// service_account mode.
	AllowedServiceAccounts []string
	// Peer base URLs. An empty URL means the peer is disabled.
	OrchestratorURL string
	MinerURL        string
	LogAttackerURL  string
	// PeerTokens maps peer name to the bearer token sent on outbound calls.
	PeerTokens map[string]string
	// HostOverride, when set, is published as the service URL in the agent
	// card instead of the inferred host.
	HostOverride string
	Port         int
	// CORSOrigins lists allowed cross-origin hosts. Empty means any.
	CORSOrigins []string
}

// Getenv is the environment lookup used by Load. Tests substitute a map.
type Getenv func(string) string

// Load reads the configuration from the environment.
func Load(getenv Getenv) (*Config, error) {
	c := &Config{
		KnowledgeBaseRepo:      getenv("KNOWLEDGE_BASE_REPO"),
		KnowledgeBaseFile:      getenv("KNOWLEDGE_BASE_FILE"),
		RemoteToken:            getenv("REMOTE_TOKEN"),
		ExtractorAPIKey:        getenv("EXTRACTOR_API_KEY"),
		AuthMode:               AuthMode(getenv("AUTH_MODE")),
		AllowedServiceAccounts: splitCSV(getenv("ALLOWED_SERVICE_ACCOUNTS")),
		OrchestratorURL:        getenv("ORCHESTRATOR_URL"),
		MinerURL:               getenv("MINER_URL"),
		LogAttackerURL:         getenv("LOG_ATTACKER_URL"),
		HostOverride:           getenv("HOST_OVERRIDE"),
		CORSOrigins:            splitCSV(getenv("CORS_ORIGINS")),
	}
	if c.KnowledgeBaseFile == "" {
		c.KnowledgeBaseFile = "knowledge_base.json"
	}
	if c.AuthMode == "" {
		c.AuthMode = AuthPublic
	}
	switch c.AuthMode {
	case AuthPublic, AuthWorkloadIdentity, AuthServiceAccount:
	default:
		return nil, errors.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	if c.AuthMode == AuthServiceAccount && len(c.AllowedServiceAccounts) == 0 {
		return nil, errors.New("AUTH_MODE=service_account requires ALLOWED_SERVICE_ACCOUNTS")
	}
	var err error
	c.PeerTokens, err = parsePeerTokens(getenv("PEER_TOKENS"))
	if err != nil {
		return nil, err
	}
	c.Port = 8080
	if p := getenv("PORT"); p != "" {
		c.Port, err = strconv.Atoi(p)
		if err != nil {
			return nil, errors.Wrap(err, "parsing PORT")
		}
	}
	return c, nil
}

// parsePeerTokens parses "peer=token[,peer=token...]".
func parsePeerTokens(s string) (map[string]string, error) {
	tokens := make(map[string]string)
	for _, pair := range splitCSV(s) {
		name, token, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, errors.Errorf("malformed PEER_TOKENS entry %q", pair)
		}
		tokens[name] = token
	}
	return tokens, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
