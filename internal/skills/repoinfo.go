// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"context"
	"sort"

	"github.com/nexus-agents/dev-nexus/internal/authx"
	"github.com/nexus-agents/dev-nexus/internal/skill"
)

// RepositoryList enumerates tracked repositories.
type RepositoryList struct {
	base
	deps Deps
}

func NewRepositoryList(deps Deps) *RepositoryList {
	return &RepositoryList{
		base: base{
			id:          "get_repository_list",
			name:        "Repository List",
			description: "List every tracked repository with summary metadata.",
			tags:        []string{"repositories"},
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"include_metadata": map[string]any{"type": "boolean"},
				},
			},
			examples: []skill.Example{{
				Description: "All repositories with metadata",
				Input:       map[string]any{},
			}},
		},
		deps: deps,
	}
}

func (s *RepositoryList) Execute(ctx context.Context, input map[string]any, _ authx.Identity) (map[string]any, error) {
	doc, err := s.deps.Store.Load(ctx)
	if err != nil {
		return degraded(map[string]any{"repositories": []any{}, "count": 0}, err), nil
	}
	includeMetadata := boolArg(input, "include_metadata", true)
	ids := make([]string, 0, len(doc.Repositories))
	for id := range doc.Repositories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	repos := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		entry := map[string]any{"name": id}
		if includeMetadata {
			rec := doc.Repositories[id]
			entry["pattern_count"] = len(rec.LatestPatterns.Patterns)
			entry["last_updated"] = rec.LatestPatterns.AnalyzedAt
			entry["problem_domain"] = rec.LatestPatterns.ProblemDomain
		}
		repos = append(repos, entry)
	}
	return map[string]any{"success": true, "repositories": repos, "count": len(repos)}, nil
}

// DeploymentInfo reports one repository's deployment section.
type DeploymentInfo struct {
	base
	deps Deps
}

func NewDeploymentInfo(deps Deps) *DeploymentInfo {
	return &DeploymentInfo{
		base: base{
			id:          "get_deployment_info",
			name:        "Deployment Info",
			description: "Report a repository's deployment knowledge: scripts, platform, lessons learned, and analysis history.",
			tags:        []string{"repositories", "deployment"},
			schema: map[string]any{
				"type":     "object",
				"required": []any{"repository"},
				"properties": map[string]any{
					"repository":      map[string]any{"type": "string"},
					"include_lessons": map[string]any{"type": "boolean"},
					"include_history": map[string]any{"type": "boolean"},
				},
			},
			examples: []skill.Example{{
				Description: "Deployment info with lessons",
				Input:       map[string]any{"repository": "acme/api"},
			}},
		},
		deps: deps,
	}
}

// historyTail is the number of history entries returned when requested.
const historyTail = 5

func (s *DeploymentInfo) Execute(ctx context.Context, input map[string]any, _ authx.Identity) (map[string]any, error) {
	repo := strArg(input, "repository", "")
	doc, err := s.deps.Store.Load(ctx)
	if err != nil {
		return degraded(map[string]any{"repository": repo, "deployment": map[string]any{}}, err), nil
	}
	rec := doc.Repo(repo)
	if rec == nil {
		return failf("repository not tracked"), nil
	}
	result := map[string]any{
		"success":    true,
		"repository": repo,
		"deployment": map[string]any{
			"scripts":             rec.Deployment.Scripts,
			"ci_cd_platform":      rec.Deployment.CICDPlatform,
			"infrastructure":      rec.Deployment.Infrastructure,
			"reusable_components": rec.Deployment.ReusableComponents,
		},
	}
	if boolArg(input, "include_lessons", true) {
		result["lessons_learned"] = rec.Deployment.LessonsLearned
	}
	if boolArg(input, "include_history", false) {
		history := rec.History
		if len(history) > historyTail {
			history = history[len(history)-historyTail:]
		}
		result["history"] = history
	}
	return result, nil
}
