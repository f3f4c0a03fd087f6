// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nexus-agents/dev-nexus/internal/authx"
	"github.com/nexus-agents/dev-nexus/internal/kb"
	"github.com/nexus-agents/dev-nexus/internal/kb/similarity"
	"github.com/nexus-agents/dev-nexus/internal/skill"
)

// similarIssueLimit caps the similar-issue list attached to a new issue.
const similarIssueLimit = 10

// AddRuntimeIssue records a production issue and surfaces similar prior
// issues across the knowledge base.
type AddRuntimeIssue struct {
	base
	deps Deps
}

func NewAddRuntimeIssue(deps Deps) *AddRuntimeIssue {
	return &AddRuntimeIssue{
		base: base{
			id:          "add_runtime_issue",
			name:        "Add Runtime Issue",
			description: "Record a production issue against a repository and surface similar prior issues.",
			tags:        []string{"runtime", "write", "monitoring"},
			schema: map[string]any{
				"type":     "object",
				"required": []any{"repository", "service_type", "issue_type", "severity", "log_snippet"},
				"properties": map[string]any{
					"repository":        map[string]any{"type": "string"},
					"service_type":      map[string]any{"type": "string"},
					"issue_type":        enumSchema(kb.IssueTypes),
					"severity":          enumSchema(kb.IssueSeverities),
					"log_snippet":       map[string]any{"type": "string", "minLength": 1},
					"root_cause":        map[string]any{"type": "string"},
					"suggested_fix":     map[string]any{"type": "string"},
					"pattern_reference": map[string]any{"type": "string"},
					"github_issue_url":  map[string]any{"type": "string"},
					"metrics":           map[string]any{"type": "object"},
				},
			},
			requiresAuth: true,
			examples: []skill.Example{{
				Description: "Record a crash",
				Input: map[string]any{
					"repository":   "acme/api",
					"service_type": "cloud_run",
					"issue_type":   "crash",
					"severity":     "high",
					"log_snippet":  "panic: runtime error: invalid memory address",
				},
			}},
		},
		deps: deps,
	}
}

func (s *AddRuntimeIssue) Execute(ctx context.Context, input map[string]any, _ authx.Identity) (map[string]any, error) {
	repo := strArg(input, "repository", "")
	if err := kb.ValidateRepoID(repo); err != nil {
		return failf("%v", err), nil
	}
	issue := kb.RuntimeIssue{
		ID:               uuid.NewString(),
		DetectedAt:       s.deps.now(),
		IssueType:        strArg(input, "issue_type", ""),
		Severity:         strArg(input, "severity", ""),
		ServiceType:      strArg(input, "service_type", ""),
		Logs:             strArg(input, "log_snippet", ""),
		RootCause:        strArg(input, "root_cause", ""),
		Fix:              strArg(input, "suggested_fix", ""),
		PatternReference: strArg(input, "pattern_reference", ""),
		GithubIssueURL:   strArg(input, "github_issue_url", ""),
		Status:           "open",
		Metrics:          mapArg(input, "metrics"),
	}
	commitMsg := fmt.Sprintf("Record %s issue for %s", issue.IssueType, repo)
	similar, err := s.deps.Store.Mutate(ctx, commitMsg, func(doc *kb.Document) (any, error) {
		matches := similarity.SimilarIssues(doc, issue, similarIssueLimit)
		rec := doc.EnsureRepo(repo)
		rec.RuntimeIssues = append(rec.RuntimeIssues, issue)
		return matches, nil
	})
	if err != nil {
		return retryable(err), nil
	}
	return map[string]any{
		"success":        true,
		"issue_id":       issue.ID,
		"similar_issues": similar,
	}, nil
}

// issueEntry is one issue qualified by its repository.
type issueEntry struct {
	Repository string          `json:"repository"`
	Issue      kb.RuntimeIssue `json:"issue"`
}

// QueryKnownIssues searches recorded issues, most recent first.
type QueryKnownIssues struct {
	base
	deps Deps
}

func NewQueryKnownIssues(deps Deps) *QueryKnownIssues {
	return &QueryKnownIssues{
		base: base{
			id:          "query_known_issues",
			name:        "Query Known Issues",
			description: "Search recorded runtime issues by type, severity, pattern, or repository.",
			tags:        []string{"runtime", "query"},
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"issue_type": enumSchema(kb.IssueTypes),
					"severity":   enumSchema(kb.IssueSeverities),
					"pattern":    map[string]any{"type": "string"},
					"repository": map[string]any{"type": "string"},
					"limit":      map[string]any{"type": "integer", "minimum": 1},
				},
			},
			examples: []skill.Example{{
				Description: "Recent crashes",
				Input:       map[string]any{"issue_type": "crash"},
			}},
		},
		deps: deps,
	}
}

func (s *QueryKnownIssues) Execute(ctx context.Context, input map[string]any, _ authx.Identity) (map[string]any, error) {
	doc, err := s.deps.Store.Load(ctx)
	if err != nil {
		return degraded(map[string]any{"issues": []any{}, "count": 0}, err), nil
	}
	issueType := strArg(input, "issue_type", "")
	severity := strArg(input, "severity", "")
	pattern := strArg(input, "pattern", "")
	repoFilter := strArg(input, "repository", "")
	limit := intArg(input, "limit", 10)

	var matches []issueEntry
	for id, rec := range doc.Repositories {
		if repoFilter != "" && id != repoFilter {
			continue
		}
		for _, issue := range rec.RuntimeIssues {
			if issueType != "" && issue.IssueType != issueType {
				continue
			}
			if severity != "" && issue.Severity != severity {
				continue
			}
			if pattern != "" && issue.PatternReference != pattern {
				continue
			}
			matches = append(matches, issueEntry{Repository: id, Issue: issue})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].Issue.DetectedAt.Equal(matches[j].Issue.DetectedAt) {
			return matches[i].Issue.DetectedAt.After(matches[j].Issue.DetectedAt)
		}
		return matches[i].Issue.ID < matches[j].Issue.ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	if matches == nil {
		matches = []issueEntry{}
	}
	return map[string]any{"success": true, "issues": matches, "count": len(matches)}, nil
}

// GetPatternHealth reports the reliability of a pattern across its
// adopters.
type GetPatternHealth struct {
	base
	deps Deps
}

func NewGetPatternHealth(deps Deps) *GetPatternHealth {
	return &GetPatternHealth{
		base: base{
			id:          "get_pattern_health",
			name:        "Pattern Health",
			description: "Score a pattern's reliability from the runtime issues linked to it across adopting repositories.",
			tags:        []string{"runtime", "patterns", "health"},
			schema: map[string]any{
				"type":     "object",
				"required": []any{"pattern_name"},
				"properties": map[string]any{
					"pattern_name":    map[string]any{"type": "string", "minLength": 1},
					"time_range_days": map[string]any{"type": "integer", "minimum": 1},
				},
			},
			examples: []skill.Example{{
				Description: "Health of Redis caching over 30 days",
				Input:       map[string]any{"pattern_name": "Redis caching"},
			}},
		},
		deps: deps,
	}
}

func (s *GetPatternHealth) Execute(ctx context.Context, input map[string]any, _ authx.Identity) (map[string]any, error) {
	name := strArg(input, "pattern_name", "")
	days := intArg(input, "time_range_days", 30)
	doc, err := s.deps.Store.Load(ctx)
	if err != nil {
		return degraded(map[string]any{
			"pattern":            name,
			"health_score":       1.0,
			"total_repos":        0,
			"repos_with_issues":  0,
			"issue_repositories": []string{},
			"recommendation":     "",
			"time_range_days":    days,
		}, err), nil
	}
	h := similarity.PatternHealth(doc, name, time.Duration(days)*24*time.Hour, s.deps.now())
	return map[string]any{
		"success":            true,
		"pattern":            h.Pattern,
		"health_score":       h.HealthScore,
		"total_repos":        h.TotalRepos,
		"repos_with_issues":  h.ReposWithIssues,
		"issue_repositories": h.IssueRepos,
		"recommendation":     h.Recommendation,
		"time_range_days":    days,
	}, nil
}
