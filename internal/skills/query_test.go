// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"context"
	"testing"

	"github.com/nexus-agents/dev-nexus/internal/authx"
	"github.com/nexus-agents/dev-nexus/internal/kb"
	"github.com/nexus-agents/dev-nexus/internal/kb/similarity"
)

func patternDoc() *kb.Document {
	doc := kb.NewDocument()
	x := doc.EnsureRepo("u/x")
	x.LatestPatterns.Keywords = []string{"retry", "http"}
	x.LatestPatterns.Patterns = []string{"Retry with backoff"}
	x.LatestPatterns.ProblemDomain = "API gateway"
	y := doc.EnsureRepo("u/y")
	y.LatestPatterns.Keywords = []string{"retry", "cache"}
	y.LatestPatterns.Patterns = []string{"Retry with backoff", "LRU cache"}
	return doc
}

func TestQueryPatternsSkill(t *testing.T) {
	deps, _ := testDeps(t, patternDoc())
	s := NewQueryPatterns(deps)
	out, err := s.Execute(context.Background(), map[string]any{
		"keywords": []any{"retry"},
	}, authx.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	if out["success"] != true || out["count"] != 2 {
		t.Fatalf("output: %+v", out)
	}
	hits := out["patterns"].([]similarity.QueryHit)
	if hits[0].Repository != "u/x" || hits[1].Repository != "u/y" {
		t.Errorf("tie break on repository ascending: %+v", hits)
	}

	out, _ = s.Execute(context.Background(), map[string]any{
		"keywords":    []any{"retry", "cache"},
		"min_matches": float64(2), // JSON numbers decode to float64
	}, authx.Identity{})
	if out["count"] != 1 {
		t.Errorf("min_matches: %+v", out)
	}

	out, _ = s.Execute(context.Background(), map[string]any{
		"problem_domain": "gateway",
	}, authx.Identity{})
	if out["count"] != 1 {
		t.Errorf("problem_domain substring: %+v", out)
	}
}

func TestQueryPatternsDegradesOnStoreFailure(t *testing.T) {
	s := NewQueryPatterns(failingDeps())
	out, err := s.Execute(context.Background(), map[string]any{"keywords": []any{"x"}}, authx.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	if out["success"] != true || out["degraded"] != true || out["count"] != 0 {
		t.Errorf("degraded read: %+v", out)
	}
}

func TestCrossRepoPatternsSkill(t *testing.T) {
	deps, _ := testDeps(t, patternDoc())
	s := NewCrossRepoPatterns(deps)
	out, err := s.Execute(context.Background(), map[string]any{}, authx.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	usages := out["patterns"].([]similarity.Usage)
	if len(usages) != 1 || usages[0].Pattern != "Retry with backoff" || usages[0].RepoCount != 2 {
		t.Fatalf("usages: %+v", usages)
	}
	out, _ = s.Execute(context.Background(), map[string]any{"pattern_type": "cache"}, authx.Identity{})
	if out["count"] != 0 {
		t.Errorf("pattern_type filter: %+v", out)
	}
}
