// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"context"
	"strings"

	"github.com/nexus-agents/dev-nexus/internal/authx"
	"github.com/nexus-agents/dev-nexus/internal/kb/similarity"
	"github.com/nexus-agents/dev-nexus/internal/skill"
)

// QueryPatterns searches tracked repositories by keyword, pattern, and
// problem-domain overlap.
type QueryPatterns struct {
	base
	deps Deps
}

func NewQueryPatterns(deps Deps) *QueryPatterns {
	return &QueryPatterns{
		base: base{
			id:          "query_patterns",
			name:        "Query Patterns",
			description: "Search tracked repositories for development patterns by keywords, pattern names, or problem domain.",
			tags:        []string{"patterns", "query"},
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"keywords":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"patterns":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"problem_domain": map[string]any{"type": "string"},
					"repository":     map[string]any{"type": "string"},
					"min_matches":    map[string]any{"type": "integer", "minimum": 1},
					"limit":          map[string]any{"type": "integer", "minimum": 1},
				},
			},
			examples: []skill.Example{{
				Description: "Find repositories using retry patterns",
				Input:       map[string]any{"keywords": []any{"retry", "backoff"}},
			}},
		},
		deps: deps,
	}
}

func (s *QueryPatterns) Execute(ctx context.Context, input map[string]any, _ authx.Identity) (map[string]any, error) {
	doc, err := s.deps.Store.Load(ctx)
	if err != nil {
		return degraded(map[string]any{"patterns": []any{}, "count": 0}, err), nil
	}
	hits := similarity.QueryPatterns(doc, similarity.PatternQuery{
		Keywords:      strsArg(input, "keywords"),
		Patterns:      strsArg(input, "patterns"),
		ProblemDomain: strArg(input, "problem_domain", ""),
		Repository:    strArg(input, "repository", ""),
		MinMatches:    intArg(input, "min_matches", 1),
		Limit:         intArg(input, "limit", 10),
	})
	return map[string]any{"success": true, "patterns": hits, "count": len(hits)}, nil
}

// CrossRepoPatterns aggregates patterns shared by several repositories.
type CrossRepoPatterns struct {
	base
	deps Deps
}

func NewCrossRepoPatterns(deps Deps) *CrossRepoPatterns {
	return &CrossRepoPatterns{
		base: base{
			id:          "get_cross_repo_patterns",
			name:        "Cross-Repository Patterns",
			description: "List patterns adopted by at least min_repos tracked repositories.",
			tags:        []string{"patterns", "aggregation"},
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"min_repos":    map[string]any{"type": "integer", "minimum": 1},
					"pattern_type": map[string]any{"type": "string"},
				},
			},
			examples: []skill.Example{{
				Description: "Patterns shared by three or more repositories",
				Input:       map[string]any{"min_repos": 3},
			}},
		},
		deps: deps,
	}
}

func (s *CrossRepoPatterns) Execute(ctx context.Context, input map[string]any, _ authx.Identity) (map[string]any, error) {
	doc, err := s.deps.Store.Load(ctx)
	if err != nil {
		return degraded(map[string]any{"patterns": []any{}, "count": 0}, err), nil
	}
	usages := similarity.CrossRepoPatterns(doc, intArg(input, "min_repos", 2))
	if filter := strArg(input, "pattern_type", ""); filter != "" {
		var kept []similarity.Usage
		for _, u := range usages {
			if strings.Contains(strings.ToLower(u.Pattern), strings.ToLower(filter)) {
				kept = append(kept, u)
			}
		}
		usages = kept
	}
	return map[string]any{"success": true, "patterns": usages, "count": len(usages)}, nil
}
