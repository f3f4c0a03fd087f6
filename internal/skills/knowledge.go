// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/nexus-agents/dev-nexus/internal/authx"
	"github.com/nexus-agents/dev-nexus/internal/kb"
	"github.com/nexus-agents/dev-nexus/internal/skill"
)

// AddLesson records an operational lesson against a repository.
type AddLesson struct {
	base
	deps Deps
}

func NewAddLesson(deps Deps) *AddLesson {
	return &AddLesson{
		base: base{
			id:          "add_lesson_learned",
			name:        "Add Lesson Learned",
			description: "Record an operational lesson against a repository's deployment knowledge.",
			tags:        []string{"knowledge", "write"},
			schema: map[string]any{
				"type":     "object",
				"required": []any{"repository", "category", "lesson", "context"},
				"properties": map[string]any{
					"repository":  map[string]any{"type": "string"},
					"category":    enumSchema(kb.LessonCategories),
					"lesson":      map[string]any{"type": "string", "minLength": 1},
					"context":     map[string]any{"type": "string"},
					"severity":    enumSchema(kb.LessonSeverities),
					"recorded_by": map[string]any{"type": "string"},
				},
			},
			requiresAuth: true,
			examples: []skill.Example{{
				Description: "Record a reliability lesson",
				Input: map[string]any{
					"repository": "acme/api",
					"category":   "reliability",
					"lesson":     "Readiness probes must not depend on downstream services.",
					"context":    "Cascading restarts during a database failover.",
				},
			}},
		},
		deps: deps,
	}
}

// lessonID derives a stable identifier from the lesson identity fields
// and the recording time truncated to seconds.
func lessonID(repository, category, lesson string, at time.Time) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s|%s",
		repository, category, lesson, at.Truncate(time.Second).Format(time.RFC3339)))
	return hex.EncodeToString(sum[:])[:16]
}

func (s *AddLesson) Execute(ctx context.Context, input map[string]any, caller authx.Identity) (map[string]any, error) {
	repo := strArg(input, "repository", "")
	if err := kb.ValidateRepoID(repo); err != nil {
		return failf("%v", err), nil
	}
	category := strArg(input, "category", "")
	text := strArg(input, "lesson", "")
	now := s.deps.now()
	id := lessonID(repo, category, text, now)
	recordedBy := strArg(input, "recorded_by", "")
	if recordedBy == "" {
		recordedBy = caller.Subject
	}
	commitMsg := fmt.Sprintf("Add %s lesson for %s", category, repo)
	_, err := s.deps.Store.Mutate(ctx, commitMsg, func(doc *kb.Document) (any, error) {
		rec := doc.EnsureRepo(repo)
		rec.Deployment.LessonsLearned = append(rec.Deployment.LessonsLearned, kb.Lesson{
			ID:         id,
			Category:   category,
			Lesson:     text,
			Context:    strArg(input, "context", ""),
			Severity:   strArg(input, "severity", "info"),
			RecordedBy: recordedBy,
			RecordedAt: now,
		})
		return nil, nil
	})
	if err != nil {
		return retryable(err), nil
	}
	return map[string]any{"success": true, "lesson_id": id}, nil
}

// UpdateDependencyInfo replaces a repository's dependency relationships.
type UpdateDependencyInfo struct {
	base
	deps Deps
}

func NewUpdateDependencyInfo(deps Deps) *UpdateDependencyInfo {
	edgeSchema := map[string]any{
		"type":     "object",
		"required": []any{"repository"},
		"properties": map[string]any{
			"repository":   map[string]any{"type": "string"},
			"relationship": map[string]any{"type": "string"},
		},
	}
	return &UpdateDependencyInfo{
		base: base{
			id:          "update_dependency_info",
			name:        "Update Dependency Info",
			description: "Replace a repository's consumer, derivative, or external dependency lists. Omitted lists are left untouched.",
			tags:        []string{"knowledge", "write", "dependencies"},
			schema: map[string]any{
				"type":     "object",
				"required": []any{"repository", "dependency_info"},
				"properties": map[string]any{
					"repository": map[string]any{"type": "string"},
					"dependency_info": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"consumers":             map[string]any{"type": "array", "items": edgeSchema},
							"derivatives":           map[string]any{"type": "array", "items": edgeSchema},
							"external_dependencies": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						},
					},
				},
			},
			requiresAuth: true,
			examples: []skill.Example{{
				Description: "Register a consumer",
				Input: map[string]any{
					"repository": "acme/api",
					"dependency_info": map[string]any{
						"consumers": []any{map[string]any{"repository": "acme/web", "relationship": "calls REST API"}},
					},
				},
			}},
		},
		deps: deps,
	}
}

func (s *UpdateDependencyInfo) Execute(ctx context.Context, input map[string]any, _ authx.Identity) (map[string]any, error) {
	repo := strArg(input, "repository", "")
	if err := kb.ValidateRepoID(repo); err != nil {
		return failf("%v", err), nil
	}
	info := mapArg(input, "dependency_info")
	if info == nil {
		return failf("dependency_info is required"), nil
	}
	var updated []string
	commitMsg := fmt.Sprintf("Update dependency info for %s", repo)
	_, err := s.deps.Store.Mutate(ctx, commitMsg, func(doc *kb.Document) (any, error) {
		rec := doc.EnsureRepo(repo)
		if edges, ok := info["consumers"]; ok {
			rec.Dependencies.Consumers = parseEdges(edges)
			updated = append(updated, "consumers")
		}
		if edges, ok := info["derivatives"]; ok {
			rec.Dependencies.Derivatives = parseEdges(edges)
			updated = append(updated, "derivatives")
		}
		if _, ok := info["external_dependencies"]; ok {
			deps := strsArg(info, "external_dependencies")
			if deps == nil {
				deps = []string{}
			}
			rec.Dependencies.ExternalDependencies = deps
			updated = append(updated, "external_dependencies")
		}
		return nil, nil
	})
	if err != nil {
		return retryable(err), nil
	}
	if updated == nil {
		updated = []string{}
	}
	return map[string]any{"success": true, "updated": updated}, nil
}

func parseEdges(v any) []kb.Edge {
	items, ok := v.([]any)
	if !ok {
		return []kb.Edge{}
	}
	edges := make([]kb.Edge, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		edges = append(edges, kb.Edge{
			Repository:   strArg(m, "repository", ""),
			Relationship: strArg(m, "relationship", ""),
		})
	}
	return edges
}
