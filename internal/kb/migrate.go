// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package kb

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// ErrUnknownSchema is returned when a document declares a schema version
// other than "1.0" or "2.0".
var ErrUnknownSchema = errors.New("unknown schema version")

// v1 documents predate the sectioned record: each repository carried only
// its extracted patterns and history.
type v1Record struct {
	Patterns PatternSet `json:"patterns"`
	History  []Snapshot `json:"history"`
}

type v1Document struct {
	SchemaVersion string              `json:"schema_version"`
	Repositories  map[string]v1Record `json:"repositories"`
	LastUpdated   time.Time           `json:"last_updated"`
}

// Decode parses a serialized knowledge base, migrating v1 documents to v2
// in-memory. The migration timestamp is taken from now.
func Decode(data []byte, now time.Time) (*Document, error) {
	var probe struct {
		SchemaVersion string `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrap(err, "parsing knowledge base")
	}
	switch probe.SchemaVersion {
	case SchemaV2:
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "parsing v2 document")
		}
		return Normalize(&doc), nil
	case SchemaV1:
		var old v1Document
		if err := json.Unmarshal(data, &old); err != nil {
			return nil, errors.Wrap(err, "parsing v1 document")
		}
		return migrateV1(&old, now), nil
	default:
		return nil, errors.Wrapf(ErrUnknownSchema, "%q", probe.SchemaVersion)
	}
}

// migrateV1 upgrades a v1 document: patterns move to latest_patterns, the
// other sections start empty, and history is preserved verbatim.
func migrateV1(old *v1Document, now time.Time) *Document {
	doc := NewDocument()
	doc.LastUpdated = now
	for id, rec := range old.Repositories {
		doc.Repositories[id] = &RepoRecord{
			LatestPatterns: rec.Patterns,
			History:        rec.History,
		}
	}
	return Normalize(doc)
}

// Normalize fills nil containers with empty ones so serialized documents
// carry explicit empty sections. It is idempotent and leaves populated
// fields untouched.
func Normalize(doc *Document) *Document {
	doc.SchemaVersion = SchemaV2
	if doc.Repositories == nil {
		doc.Repositories = make(map[string]*RepoRecord)
	}
	for _, rec := range doc.Repositories {
		if rec.RuntimeIssues == nil {
			rec.RuntimeIssues = []RuntimeIssue{}
		}
		if rec.History == nil {
			rec.History = []Snapshot{}
		}
		if rec.Deployment.Scripts == nil {
			rec.Deployment.Scripts = []string{}
		}
		if rec.Deployment.LessonsLearned == nil {
			rec.Deployment.LessonsLearned = []Lesson{}
		}
		if rec.Deployment.ReusableComponents == nil {
			rec.Deployment.ReusableComponents = []Component{}
		}
		if rec.Deployment.Infrastructure == nil {
			rec.Deployment.Infrastructure = map[string]any{}
		}
		if rec.Dependencies.Consumers == nil {
			rec.Dependencies.Consumers = []Edge{}
		}
		if rec.Dependencies.Derivatives == nil {
			rec.Dependencies.Derivatives = []Edge{}
		}
		if rec.Dependencies.ExternalDependencies == nil {
			rec.Dependencies.ExternalDependencies = []string{}
		}
		if rec.Testing.TestFrameworks == nil {
			rec.Testing.TestFrameworks = []string{}
		}
		if rec.Testing.TestPatterns == nil {
			rec.Testing.TestPatterns = []string{}
		}
		if rec.Security.SecurityPatterns == nil {
			rec.Security.SecurityPatterns = []string{}
		}
		if rec.Security.AuthenticationMethods == nil {
			rec.Security.AuthenticationMethods = []string{}
		}
		if rec.Security.ComplianceStandards == nil {
			rec.Security.ComplianceStandards = []string{}
		}
	}
	return doc
}

// Encode serializes a document for persistence.
func Encode(doc *Document) ([]byte, error) {
	b, err := json.MarshalIndent(Normalize(doc), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "serializing knowledge base")
	}
	return append(b, '\n'), nil
}
