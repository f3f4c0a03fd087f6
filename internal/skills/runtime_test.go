// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"context"
	"testing"
	"time"

	"github.com/nexus-agents/dev-nexus/internal/authx"
	"github.com/nexus-agents/dev-nexus/internal/kb"
	"github.com/nexus-agents/dev-nexus/internal/kb/similarity"
)

func issueDoc() *kb.Document {
	doc := kb.NewDocument()
	rec := doc.EnsureRepo("acme/api")
	rec.RuntimeIssues = []kb.RuntimeIssue{
		{ID: "i1", IssueType: "error", Severity: "high", Logs: "connection timeout", DetectedAt: testNow.Add(-2 * time.Hour), Status: "open"},
		{ID: "i2", IssueType: "crash", Severity: "critical", Logs: "panic", DetectedAt: testNow.Add(-time.Hour), Status: "fixed", PatternReference: "Worker pool"},
	}
	doc.EnsureRepo("acme/web").RuntimeIssues = []kb.RuntimeIssue{
		{ID: "i3", IssueType: "error", Severity: "low", Logs: "timeout talking to api", DetectedAt: testNow.Add(-30 * time.Minute), Status: "open"},
	}
	return doc
}

func TestAddRuntimeIssue(t *testing.T) {
	deps, mem := testDeps(t, issueDoc())
	s := NewAddRuntimeIssue(deps)
	out, err := s.Execute(context.Background(), map[string]any{
		"repository":   "acme/api",
		"service_type": "cloud_run",
		"issue_type":   "error",
		"severity":     "high",
		"log_snippet":  "connection timeout upstream",
	}, authx.Identity{Authenticated: true})
	if err != nil {
		t.Fatal(err)
	}
	if out["success"] != true || out["issue_id"] == "" {
		t.Fatalf("output: %+v", out)
	}
	similar, ok := out["similar_issues"].([]similarity.IssueMatch)
	if !ok || len(similar) == 0 {
		t.Fatalf("similar_issues: %+v", out["similar_issues"])
	}
	// i1 shares type, severity, and log tokens; it must rank first.
	if similar[0].Issue.ID != "i1" {
		t.Errorf("top similar issue: %+v", similar[0])
	}
	stored, _ := deps.Store.Load(context.Background())
	issues := stored.Repo("acme/api").RuntimeIssues
	if len(issues) != 3 {
		t.Fatalf("want 3 issues, got %d", len(issues))
	}
	added := issues[2]
	if added.Status != "open" || added.ID != out["issue_id"] || !added.DetectedAt.Equal(testNow) {
		t.Errorf("appended issue: %+v", added)
	}
	if issues[0].ID != "i1" || issues[1].ID != "i2" {
		t.Error("existing issues must be preserved in order")
	}
	if len(mem.Commits) != 1 {
		t.Errorf("commits: %v", mem.Commits)
	}
}

func TestAddRuntimeIssueStoreFailure(t *testing.T) {
	s := NewAddRuntimeIssue(failingDeps())
	out, err := s.Execute(context.Background(), map[string]any{
		"repository":   "acme/api",
		"service_type": "cloud_run",
		"issue_type":   "error",
		"severity":     "high",
		"log_snippet":  "x",
	}, authx.Identity{Authenticated: true})
	if err != nil {
		t.Fatal(err)
	}
	if out["success"] != false || out["retryable"] != true {
		t.Errorf("output: %+v", out)
	}
}

func TestQueryKnownIssuesRecencyAndFilters(t *testing.T) {
	deps, _ := testDeps(t, issueDoc())
	s := NewQueryKnownIssues(deps)
	out, err := s.Execute(context.Background(), map[string]any{}, authx.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	if out["count"] != 3 {
		t.Fatalf("count: %v", out["count"])
	}
	issues := out["issues"].([]issueEntry)
	if issues[0].Issue.ID != "i3" || issues[1].Issue.ID != "i2" || issues[2].Issue.ID != "i1" {
		t.Errorf("recency order: %v %v %v", issues[0].Issue.ID, issues[1].Issue.ID, issues[2].Issue.ID)
	}

	out, _ = s.Execute(context.Background(), map[string]any{"issue_type": "error", "repository": "acme/api"}, authx.Identity{})
	if out["count"] != 1 {
		t.Errorf("filtered count: %v", out["count"])
	}
	out, _ = s.Execute(context.Background(), map[string]any{"pattern": "Worker pool"}, authx.Identity{})
	if out["count"] != 1 {
		t.Errorf("pattern filter count: %v", out["count"])
	}
	out, _ = s.Execute(context.Background(), map[string]any{"limit": 2}, authx.Identity{})
	if out["count"] != 2 {
		t.Errorf("limit: %v", out["count"])
	}
}

func TestQueryKnownIssuesDegradesOnStoreFailure(t *testing.T) {
	s := NewQueryKnownIssues(failingDeps())
	out, err := s.Execute(context.Background(), map[string]any{}, authx.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	if out["success"] != true || out["degraded"] != true || out["count"] != 0 {
		t.Errorf("degraded read: %+v", out)
	}
}

func TestGetPatternHealthSkill(t *testing.T) {
	doc := kb.NewDocument()
	for _, id := range []string{"u/a", "u/b", "u/c", "u/d"} {
		doc.EnsureRepo(id).LatestPatterns.Patterns = []string{"Redis caching"}
	}
	doc.Repo("u/b").RuntimeIssues = []kb.RuntimeIssue{{
		ID: "i1", IssueType: "performance", Severity: "high",
		PatternReference: "Redis caching", DetectedAt: testNow.Add(-10 * 24 * time.Hour),
	}}
	deps, _ := testDeps(t, doc)
	s := NewGetPatternHealth(deps)
	out, err := s.Execute(context.Background(), map[string]any{"pattern_name": "Redis caching"}, authx.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	if out["health_score"] != 0.75 || out["total_repos"] != 4 || out["repos_with_issues"] != 1 {
		t.Errorf("output: %+v", out)
	}
	if out["recommendation"] == "" {
		t.Error("want recommendation")
	}
	if out["time_range_days"] != 30 {
		t.Errorf("default window: %v", out["time_range_days"])
	}
}

func TestGetPatternHealthDegradesOnStoreFailure(t *testing.T) {
	s := NewGetPatternHealth(failingDeps())
	out, err := s.Execute(context.Background(), map[string]any{"pattern_name": "Redis caching"}, authx.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	if out["success"] != true || out["degraded"] != true {
		t.Fatalf("degraded read: %+v", out)
	}
	if out["pattern"] != "Redis caching" || out["total_repos"] != 0 || out["health_score"] != 1.0 {
		t.Errorf("degraded read must substitute empty data: %+v", out)
	}
}
