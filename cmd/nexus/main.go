// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// nexus serves the Dev-Nexus knowledge agent over the A2A HTTP plane.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/nexus-agents/dev-nexus/internal/a2a"
	"github.com/nexus-agents/dev-nexus/internal/authx"
	"github.com/nexus-agents/dev-nexus/internal/config"
	"github.com/nexus-agents/dev-nexus/internal/kb/store"
	"github.com/nexus-agents/dev-nexus/internal/peers"
	"github.com/nexus-agents/dev-nexus/internal/skill"
	"github.com/nexus-agents/dev-nexus/internal/skills"
	"github.com/nexus-agents/dev-nexus/internal/urlx"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var port = flag.Int("port", 0, "listening port (overrides PORT)")

func main() {
	flag.Parse()
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if cfg.KnowledgeBaseRepo == "" {
		log.Fatal("KNOWLEDGE_BASE_REPO is required")
	}
	st := store.New(store.NewGitStore(store.GitStoreOptions{
		URL:   fmt.Sprintf("https://github.com/%s.git", cfg.KnowledgeBaseRepo),
		Path:  cfg.KnowledgeBaseFile,
		Token: cfg.RemoteToken,
	}))

	peerClient := peers.NewClient(peerEndpoints(cfg))
	auth := authx.NewAuthorizer(cfg.AuthMode, cfg.AllowedServiceAccounts, &authx.IDTokenVerifier{})

	registry := skill.NewRegistry()
	deps := skills.Deps{Store: st, Peers: peerClient}
	if err := skills.Register(registry, deps); err != nil {
		log.Fatalf("registering skills: %v", err)
	}

	serviceURL := cfg.HostOverride
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	server := a2a.NewServer(registry, auth, st, a2a.Options{
		Info: skill.ServiceInfo{
			Name:        "dev-nexus",
			Description: "Shared development knowledge agent: patterns, lessons, and runtime issues across repositories.",
			Version:     version,
			URL:         serviceURL,
			Metadata: map[string]any{
				"knowledge_base": cfg.KnowledgeBaseRepo,
				"auth_mode":      string(cfg.AuthMode),
			},
		},
		CORSOrigins: cfg.CORSOrigins,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("dev-nexus %s listening on %s (%d skills, kb=%s)", version, addr, registry.Len(), cfg.KnowledgeBaseRepo)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("serving: %v", err)
	}
}

// peerEndpoints resolves the peer constellation from config. URLs are
// parsed eagerly so a malformed one fails at startup, not per call.
func peerEndpoints(cfg *config.Config) map[peers.Peer]peers.Endpoint {
	endpoints := make(map[peers.Peer]peers.Endpoint)
	for peer, rawURL := range map[peers.Peer]string{
		peers.Orchestrator: cfg.OrchestratorURL,
		peers.Miner:        cfg.MinerURL,
		peers.LogAttacker:  cfg.LogAttackerURL,
	} {
		if rawURL == "" {
			continue
		}
		endpoints[peer] = peers.Endpoint{
			URL:   urlx.MustParse(rawURL).String(),
			Token: cfg.PeerTokens[string(peer)],
		}
	}
	return endpoints
}
