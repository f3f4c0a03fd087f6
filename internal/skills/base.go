// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package skills implements the concrete capabilities served over the
// A2A plane: pattern queries, repository info, knowledge management,
// peer integration, documentation standards, and runtime monitoring.
package skills

import (
	"fmt"
	"time"

	"github.com/nexus-agents/dev-nexus/internal/kb/store"
	"github.com/nexus-agents/dev-nexus/internal/peers"
	"github.com/nexus-agents/dev-nexus/internal/skill"
)

// Deps carries the shared collaborators skills execute against.
type Deps struct {
	Store *store.Store
	Peers *peers.Client
	// Now is the clock; tests pin it.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// base supplies the metadata half of the skill.Skill contract.
type base struct {
	id           string
	name         string
	description  string
	tags         []string
	schema       map[string]any
	requiresAuth bool
	examples     []skill.Example
}

func (b base) ID() string                  { return b.id }
func (b base) Name() string                { return b.name }
func (b base) Description() string         { return b.description }
func (b base) Tags() []string              { return b.tags }
func (b base) InputSchema() map[string]any { return b.schema }
func (b base) RequiresAuth() bool          { return b.requiresAuth }
func (b base) Examples() []skill.Example   { return b.examples }

// failf builds the standard failure envelope.
func failf(format string, args ...any) map[string]any {
	return map[string]any{"success": false, "error": fmt.Sprintf(format, args...)}
}

// degraded marks a read that substituted empty data after a store error.
func degraded(result map[string]any, err error) map[string]any {
	result["success"] = true
	result["degraded"] = true
	result["error"] = err.Error()
	return result
}

// retryable marks a mutation that failed on store I/O. Conflicts and
// outages are retryable by the caller; nothing was persisted.
func retryable(err error) map[string]any {
	return map[string]any{"success": false, "error": err.Error(), "retryable": true}
}

func strArg(input map[string]any, key, def string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return def
}

func intArg(input map[string]any, key string, def int) int {
	switch v := input[key].(type) {
	case float64: // encoding/json numbers
		return int(v)
	case int:
		return v
	}
	return def
}

func boolArg(input map[string]any, key string, def bool) bool {
	if v, ok := input[key].(bool); ok {
		return v
	}
	return def
}

func strsArg(input map[string]any, key string) []string {
	switch v := input[key].(type) {
	case []string:
		return v
	case []any:
		var out []string
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func mapArg(input map[string]any, key string) map[string]any {
	if v, ok := input[key].(map[string]any); ok {
		return v
	}
	return nil
}

// enumSchema is a shorthand for a string property restricted to values.
func enumSchema(values []string) map[string]any {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return map[string]any{"type": "string", "enum": vs}
}
