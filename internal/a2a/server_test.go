// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nexus-agents/dev-nexus/internal/authx"
	"github.com/nexus-agents/dev-nexus/internal/config"
	"github.com/nexus-agents/dev-nexus/internal/kb"
	"github.com/nexus-agents/dev-nexus/internal/kb/store"
	"github.com/nexus-agents/dev-nexus/internal/peers"
	"github.com/nexus-agents/dev-nexus/internal/skill"
	"github.com/nexus-agents/dev-nexus/internal/skills"
	"github.com/pkg/errors"
)

// tokenVerifier maps "token-<subject>" to subject.
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, token string) (string, error) {
	if subject, ok := strings.CutPrefix(token, "token-"); ok {
		return subject, nil
	}
	return "", errors.New("bad token")
}

type fixture struct {
	server *Server
	mem    *store.MemoryStore
	st     *store.Store
}

func newFixture(t *testing.T, mode config.AuthMode, allowed []string) *fixture {
	t.Helper()
	mem := store.NewMemoryStore()
	st := store.New(mem)
	registry := skill.NewRegistry()
	deps := skills.Deps{
		Store: st,
		Peers: peers.NewClient(nil),
	}
	for _, s := range []skill.Skill{
		skills.NewQueryPatterns(deps),
		skills.NewAddLesson(deps),
		skills.NewHealthCheckExternal(deps),
	} {
		if err := registry.Register(s); err != nil {
			t.Fatal(err)
		}
	}
	auth := authx.NewAuthorizer(mode, allowed, tokenVerifier{})
	server := NewServer(registry, auth, st, Options{
		Info: skill.ServiceInfo{Name: "dev-nexus", Version: "1.2.0", URL: "https://nexus.example"},
	})
	return &fixture{server: server, mem: mem, st: st}
}

func (f *fixture) execute(t *testing.T, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/a2a/execute", bytes.NewReader([]byte(body)))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response not JSON: %v\n%s", err, w.Body.String())
	}
	return w, out
}

func TestAgentCard(t *testing.T) {
	f := newFixture(t, config.AuthPublic, nil)
	req := httptest.NewRequest(http.MethodGet, "/.well-known/agent.json", nil)
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var card skill.AgentCard
	if err := json.Unmarshal(w.Body.Bytes(), &card); err != nil {
		t.Fatal(err)
	}
	if len(card.Skills) != 3 {
		t.Fatalf("skills: %d", len(card.Skills))
	}
	want := map[string]bool{"query_patterns": false, "add_lesson_learned": true, "health_check_external": false}
	seen := map[string]int{}
	for _, d := range card.Skills {
		seen[d.ID]++
		requiresAuth, ok := want[d.ID]
		if !ok {
			t.Errorf("unexpected skill %q", d.ID)
			continue
		}
		if d.RequiresAuth != requiresAuth {
			t.Errorf("%s requires_authentication: got %v", d.ID, d.RequiresAuth)
		}
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("skill %q appears %d times", id, n)
		}
	}
	if card.Capabilities.Streaming || card.Capabilities.Authentication != "optional" {
		t.Errorf("capabilities: %+v", card.Capabilities)
	}
}

func TestExecuteUnknownSkill(t *testing.T) {
	f := newFixture(t, config.AuthPublic, nil)
	w, out := f.execute(t, `{"skill_id":"nope","input":{}}`, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: %d", w.Code)
	}
	available := out["available_skills"].([]any)
	if len(available) != 3 {
		t.Errorf("available_skills: %v", available)
	}
}

func TestExecuteMalformedBody(t *testing.T) {
	f := newFixture(t, config.AuthPublic, nil)
	w, out := f.execute(t, `{not json`, nil)
	if w.Code != http.StatusBadRequest || out["success"] != false {
		t.Errorf("status=%d out=%v", w.Code, out)
	}
}

func TestExecuteValidationRejection(t *testing.T) {
	f := newFixture(t, config.AuthPublic, nil)
	w, out := f.execute(t, `{"skill_id":"add_lesson_learned","input":{"repository":"a/b","category":"unknown"}}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d\n%v", w.Code, out)
	}
	violations := out["violations"].([]any)
	var all string
	for _, v := range violations {
		all += v.(string) + "\n"
	}
	for _, fragment := range []string{"lesson", "context", "category"} {
		if !strings.Contains(all, fragment) {
			t.Errorf("violations missing %q:\n%s", fragment, all)
		}
	}
	if len(f.mem.Commits) != 0 {
		t.Error("validation failure must not write")
	}
}

func TestExecuteSuccess(t *testing.T) {
	f := newFixture(t, config.AuthPublic, nil)
	doc := kb.NewDocument()
	doc.EnsureRepo("u/x").LatestPatterns.Keywords = []string{"retry"}
	if err := f.mem.Seed(doc); err != nil {
		t.Fatal(err)
	}
	w, out := f.execute(t, `{"skill_id":"query_patterns","input":{"keywords":["retry"]}}`, nil)
	if w.Code != http.StatusOK || out["success"] != true {
		t.Fatalf("status=%d out=%v", w.Code, out)
	}
	if out["count"] != float64(1) {
		t.Errorf("count: %v", out["count"])
	}
}

func TestAuthGate(t *testing.T) {
	f := newFixture(t, config.AuthServiceAccount, []string{"alice@x"})
	body := `{"skill_id":"add_lesson_learned","input":{"repository":"a/b","category":"reliability","lesson":"x","context":"y"}}`

	// No credentials: 401, no write.
	w, out := f.execute(t, body, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status %d %v", w.Code, out)
	}
	if out["skill"] != "add_lesson_learned" {
		t.Errorf("401 payload must name the skill: %v", out)
	}
	if len(f.mem.Commits) != 0 {
		t.Error("denied request must not write")
	}

	// Unlisted subject: 403, no write.
	w, _ = f.execute(t, body, map[string]string{"Authorization": "Bearer token-bob@x"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("bob: status %d", w.Code)
	}
	if len(f.mem.Commits) != 0 {
		t.Error("forbidden request must not write")
	}

	// Allow-listed subject: 200 and exactly one new lesson.
	w, out = f.execute(t, body, map[string]string{"Authorization": "Bearer token-alice@x"})
	if w.Code != http.StatusOK || out["success"] != true {
		t.Fatalf("alice: status %d %v", w.Code, out)
	}
	stored, err := f.st.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if lessons := stored.Repo("a/b").Deployment.LessonsLearned; len(lessons) != 1 {
		t.Errorf("lessons: %d", len(lessons))
	}
	// Identical input within the same second yields the same lesson_id.
	_, again := f.execute(t, body, map[string]string{"Authorization": "Bearer token-alice@x"})
	if again["lesson_id"] != out["lesson_id"] {
		t.Errorf("lesson_id changed: %v vs %v", again["lesson_id"], out["lesson_id"])
	}
}

func TestPublicSkillBypassesAuth(t *testing.T) {
	f := newFixture(t, config.AuthServiceAccount, []string{"alice@x"})
	w, _ := f.execute(t, `{"skill_id":"query_patterns","input":{}}`, nil)
	if w.Code != http.StatusOK {
		t.Errorf("public skill must not require credentials: %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t, config.AuthPublic, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var out map[string]any
	json.Unmarshal(w.Body.Bytes(), &out)
	if out["status"] != "healthy" || out["knowledge_base_accessible"] != true {
		t.Errorf("health: %v", out)
	}
	if out["skills_registered"] != float64(3) {
		t.Errorf("skills_registered: %v", out["skills_registered"])
	}
}

func TestRootSummary(t *testing.T) {
	f := newFixture(t, config.AuthPublic, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	var out map[string]any
	json.Unmarshal(w.Body.Bytes(), &out)
	if out["service"] != "dev-nexus" || out["version"] != "1.2.0" {
		t.Errorf("summary: %v", out)
	}
	if len(out["skills"].([]any)) != 3 {
		t.Errorf("skills: %v", out["skills"])
	}
}

func TestCancelStub(t *testing.T) {
	f := newFixture(t, config.AuthPublic, nil)
	req := httptest.NewRequest(http.MethodPost, "/a2a/cancel", strings.NewReader(`{"task_id":"t-1"}`))
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	var out map[string]any
	json.Unmarshal(w.Body.Bytes(), &out)
	if w.Code != http.StatusOK || out["success"] != true || out["message"] != "cancelled" || out["task_id"] != "t-1" {
		t.Errorf("cancel: status=%d out=%v", w.Code, out)
	}
}

// blockingSkill parks until released; used to saturate the server.
type blockingSkill struct {
	release chan struct{}
}

func (b *blockingSkill) ID() string                  { return "block" }
func (b *blockingSkill) Name() string                { return "Block" }
func (b *blockingSkill) Description() string         { return "parks until released" }
func (b *blockingSkill) Tags() []string              { return nil }
func (b *blockingSkill) InputSchema() map[string]any { return map[string]any{"type": "object"} }
func (b *blockingSkill) RequiresAuth() bool          { return false }
func (b *blockingSkill) Examples() []skill.Example   { return nil }
func (b *blockingSkill) Execute(ctx context.Context, _ map[string]any, _ authx.Identity) (map[string]any, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return map[string]any{"success": true}, nil
}

func TestBackpressure(t *testing.T) {
	registry := skill.NewRegistry()
	blocker := &blockingSkill{release: make(chan struct{})}
	registry.Register(blocker)
	st := store.New(store.NewMemoryStore())
	server := NewServer(registry, authx.NewAuthorizer(config.AuthPublic, nil, nil), st, Options{
		MaxInFlight: 2,
	})

	var wg sync.WaitGroup
	started := make(chan struct{}, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/a2a/execute", strings.NewReader(`{"skill_id":"block","input":{}}`))
			w := httptest.NewRecorder()
			started <- struct{}{}
			server.ServeHTTP(w, req)
		}()
	}
	<-started
	<-started
	// Let both goroutines reach the skill before probing saturation.
	time.Sleep(50 * time.Millisecond)

	req := httptest.NewRequest(http.MethodPost, "/a2a/execute", strings.NewReader(`{"skill_id":"block","input":{}}`))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("saturated server: status %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("want Retry-After header")
	}
	close(blocker.release)
	wg.Wait()

	// Capacity frees up after completion.
	w = httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/a2a/execute", strings.NewReader(`{"skill_id":"block","input":{}}`)))
	if w.Code != http.StatusOK {
		t.Errorf("after drain: status %d", w.Code)
	}
}

// panicSkill always panics.
type panicSkill struct{}

func (panicSkill) ID() string                  { return "panic" }
func (panicSkill) Name() string                { return "Panic" }
func (panicSkill) Description() string         { return "always panics" }
func (panicSkill) Tags() []string              { return nil }
func (panicSkill) InputSchema() map[string]any { return nil }
func (panicSkill) RequiresAuth() bool          { return false }
func (panicSkill) Examples() []skill.Example   { return nil }
func (panicSkill) Execute(context.Context, map[string]any, authx.Identity) (map[string]any, error) {
	panic("boom")
}

func TestPanicIsContained(t *testing.T) {
	registry := skill.NewRegistry()
	registry.Register(panicSkill{})
	st := store.New(store.NewMemoryStore())
	server := NewServer(registry, authx.NewAuthorizer(config.AuthPublic, nil, nil), st, Options{})
	req := httptest.NewRequest(http.MethodPost, "/a2a/execute", strings.NewReader(`{"skill_id":"panic","input":{}}`))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: %d", w.Code)
	}
	var out map[string]any
	json.Unmarshal(w.Body.Bytes(), &out)
	if out["success"] != false || out["correlation_id"] == "" {
		t.Errorf("envelope: %v", out)
	}
}
