// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package skill defines the capability abstraction served over the A2A
// execution plane, the registry that holds them, and the agent card
// synthesized from it.
package skill

import (
	"context"
	"sort"

	"github.com/nexus-agents/dev-nexus/internal/authx"
	"github.com/pkg/errors"
)

// Example is a documented sample invocation published in the agent card.
type Example struct {
	Description string         `json:"description"`
	Input       map[string]any `json:"input"`
}

// Skill is one invokable capability. Execute returns a JSON object that
// always carries success and, on failure, error. Returned Go errors
// signal internal faults and map to HTTP 500; domain failures belong in
// the output object with success=false.
type Skill interface {
	ID() string
	Name() string
	Description() string
	Tags() []string
	// InputSchema is a JSON-schema fragment validated before Execute.
	InputSchema() map[string]any
	RequiresAuth() bool
	Examples() []Example
	Execute(ctx context.Context, input map[string]any, caller authx.Identity) (map[string]any, error)
}

// Registry holds the registered skills in registration order.
type Registry struct {
	skills []Skill
	byID   map[string]Skill
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Skill)}
}

// Register adds a skill. Duplicate IDs are an error, fatal at startup.
func (r *Registry) Register(s Skill) error {
	if _, exists := r.byID[s.ID()]; exists {
		return errors.Errorf("duplicate skill id %q", s.ID())
	}
	r.byID[s.ID()] = s
	r.skills = append(r.skills, s)
	return nil
}

// Get returns the skill with the given id.
func (r *Registry) Get(id string) (Skill, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// IDs lists registered skill ids sorted ascending.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.skills))
	for _, s := range r.skills {
		ids = append(ids, s.ID())
	}
	sort.Strings(ids)
	return ids
}

// All returns the skills in registration order.
func (r *Registry) All() []Skill {
	return r.skills
}

func (r *Registry) Len() int {
	return len(r.skills)
}
