// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"context"
	"testing"
	"time"

	"github.com/nexus-agents/dev-nexus/internal/authx"
	"github.com/nexus-agents/dev-nexus/internal/kb"
)

func TestRepositoryList(t *testing.T) {
	doc := kb.NewDocument()
	b := doc.EnsureRepo("u/b")
	b.LatestPatterns.Patterns = []string{"p1", "p2"}
	b.LatestPatterns.ProblemDomain = "payments"
	doc.EnsureRepo("u/a")
	deps, _ := testDeps(t, doc)
	s := NewRepositoryList(deps)
	out, err := s.Execute(context.Background(), map[string]any{}, authx.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	repos := out["repositories"].([]map[string]any)
	if len(repos) != 2 || repos[0]["name"] != "u/a" || repos[1]["name"] != "u/b" {
		t.Fatalf("ordering: %+v", repos)
	}
	if repos[1]["pattern_count"] != 2 || repos[1]["problem_domain"] != "payments" {
		t.Errorf("metadata: %+v", repos[1])
	}
	out, _ = s.Execute(context.Background(), map[string]any{"include_metadata": false}, authx.Identity{})
	repos = out["repositories"].([]map[string]any)
	if _, ok := repos[0]["pattern_count"]; ok {
		t.Error("metadata must be omitted when include_metadata=false")
	}
}

func TestDeploymentInfo(t *testing.T) {
	doc := kb.NewDocument()
	rec := doc.EnsureRepo("acme/api")
	rec.Deployment.Scripts = []string{"deploy.sh"}
	rec.Deployment.CICDPlatform = "github_actions"
	rec.Deployment.LessonsLearned = []kb.Lesson{{ID: "l1", Lesson: "x"}}
	for i := range 8 {
		rec.History = append(rec.History, kb.Snapshot{
			Timestamp: testNow.Add(time.Duration(i) * time.Hour),
			CommitSHA: string(rune('a' + i)),
		})
	}
	deps, _ := testDeps(t, doc)
	s := NewDeploymentInfo(deps)
	out, err := s.Execute(context.Background(), map[string]any{"repository": "acme/api"}, authx.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	if out["success"] != true {
		t.Fatalf("output: %+v", out)
	}
	deployment := out["deployment"].(map[string]any)
	if deployment["ci_cd_platform"] != "github_actions" {
		t.Errorf("deployment: %+v", deployment)
	}
	if lessons := out["lessons_learned"].([]kb.Lesson); len(lessons) != 1 {
		t.Errorf("lessons: %+v", lessons)
	}
	if _, ok := out["history"]; ok {
		t.Error("history must be omitted by default")
	}

	out, _ = s.Execute(context.Background(), map[string]any{
		"repository":      "acme/api",
		"include_history": true,
		"include_lessons": false,
	}, authx.Identity{})
	history := out["history"].([]kb.Snapshot)
	if len(history) != historyTail {
		t.Fatalf("history tail: got %d, want %d", len(history), historyTail)
	}
	if history[len(history)-1].CommitSHA != "h" {
		t.Errorf("history must keep the most recent entries: %+v", history)
	}
	if _, ok := out["lessons_learned"]; ok {
		t.Error("lessons must be omitted when include_lessons=false")
	}
}

func TestDeploymentInfoUntracked(t *testing.T) {
	deps, _ := testDeps(t, kb.NewDocument())
	s := NewDeploymentInfo(deps)
	out, err := s.Execute(context.Background(), map[string]any{"repository": "ghost/repo"}, authx.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	if out["success"] != false || out["error"] != "repository not tracked" {
		t.Errorf("output: %+v", out)
	}
}

func TestDeploymentInfoDegradesOnStoreFailure(t *testing.T) {
	s := NewDeploymentInfo(failingDeps())
	out, err := s.Execute(context.Background(), map[string]any{"repository": "acme/api"}, authx.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	if out["success"] != true || out["degraded"] != true || out["repository"] != "acme/api" {
		t.Errorf("degraded read: %+v", out)
	}
}
