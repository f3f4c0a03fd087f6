// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"context"

	"github.com/nexus-agents/dev-nexus/internal/authx"
	"github.com/nexus-agents/dev-nexus/internal/peers"
	"github.com/nexus-agents/dev-nexus/internal/skill"
)

// HealthCheckExternal probes the peer agent constellation.
type HealthCheckExternal struct {
	base
	deps Deps
}

func NewHealthCheckExternal(deps Deps) *HealthCheckExternal {
	return &HealthCheckExternal{
		base: base{
			id:          "health_check_external",
			name:        "External Health Check",
			description: "Probe the health of peer agents: orchestrator, miner, and log-attacker.",
			tags:        []string{"integration", "health"},
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent": enumSchema([]string{string(peers.Orchestrator), string(peers.Miner), string(peers.LogAttacker)}),
				},
			},
			examples: []skill.Example{{
				Description: "Probe all peers",
				Input:       map[string]any{},
			}},
		},
		deps: deps,
	}
}

func (s *HealthCheckExternal) Execute(ctx context.Context, input map[string]any, _ authx.Identity) (map[string]any, error) {
	results := s.deps.Peers.ProbeAll(ctx, peers.Peer(strArg(input, "agent", "")))
	healthy := 0
	for _, h := range results {
		if h.Status == "healthy" {
			healthy++
		}
	}
	return map[string]any{
		"success": true,
		"agents":  results,
		"healthy": healthy,
		"total":   len(results),
	}, nil
}
