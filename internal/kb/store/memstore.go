// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/nexus-agents/dev-nexus/internal/kb"
	"github.com/pkg/errors"
)

// MemoryStore is an in-memory DocumentStore for tests and local runs. It
// keeps the serialized document so loads exercise the same decode path as
// the git backend.
type MemoryStore struct {
	mu      sync.Mutex
	data    []byte
	rev     int
	Commits []string // commit messages, in order
}

var _ DocumentStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Seed replaces the stored document, bypassing version checks.
func (m *MemoryStore) Seed(doc *kb.Document) error {
	b, err := kb.Encode(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = b
	m.rev++
	return nil
}

// SeedRaw stores raw bytes, e.g. a v1 or malformed document.
func (m *MemoryStore) SeedRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.rev++
}

func (m *MemoryStore) Load(ctx context.Context) (*kb.Document, Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, "", errors.Wrap(ErrUnavailable, err.Error())
	}
	if m.data == nil {
		return nil, Version(strconv.Itoa(m.rev)), ErrNotFound
	}
	doc, err := kb.Decode(m.data, time.Now().UTC())
	if err != nil {
		return nil, "", err
	}
	return doc, Version(strconv.Itoa(m.rev)), nil
}

func (m *MemoryStore) Save(ctx context.Context, doc *kb.Document, base Version, commitMessage string) (Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(ErrUnavailable, err.Error())
	}
	if base != "" && base != Version(strconv.Itoa(m.rev)) {
		return "", ErrConflict
	}
	b, err := kb.Encode(doc)
	if err != nil {
		return "", err
	}
	m.data = b
	m.rev++
	m.Commits = append(m.Commits, commitMessage)
	return Version(strconv.Itoa(m.rev)), nil
}
