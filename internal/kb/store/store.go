// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists the knowledge base document.
//
// The document lives in a single file of a remote git repository; every
// read clones fresh state and every write is a commit pushed on top of the
// version observed at load time. A rejected push surfaces as ErrConflict.
// An in-memory backend backs tests and local runs.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/nexus-agents/dev-nexus/internal/kb"
	"github.com/pkg/errors"
)

// Version is an opaque token identifying the document revision a load
// observed. The git backend uses the remote head hash; the memory backend
// a counter.
type Version string

var (
	// ErrNotFound indicates the document file does not exist yet.
	ErrNotFound = errors.New("knowledge base not found")
	// ErrConflict indicates the document changed since the version the
	// write was based on.
	ErrConflict = errors.New("knowledge base write conflict")
	// ErrUnavailable indicates the remote repository could not be reached.
	ErrUnavailable = errors.New("knowledge base unavailable")
)

// DocumentStore is the capability the backing medium provides: load the
// current document with its version token, and save a new revision on top
// of a previously observed one.
type DocumentStore interface {
	Load(ctx context.Context) (*kb.Document, Version, error)
	Save(ctx context.Context, doc *kb.Document, base Version, commitMessage string) (Version, error)
}

const defaultIOTimeout = 30 * time.Second

// Store wraps a DocumentStore with the knowledge-base access contract:
// reads substitute an empty document when none exists, and mutations are
// load-modify-save cycles serialized per process.
type Store struct {
	backend DocumentStore
	timeout time.Duration

	mu sync.Mutex // serializes Mutate
}

func New(backend DocumentStore) *Store {
	return &Store{backend: backend, timeout: defaultIOTimeout}
}

// Load fetches the current document. A missing document yields an empty v2
// document rather than an error.
func (s *Store) Load(ctx context.Context) (*kb.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	doc, _, err := s.backend.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return kb.NewDocument(), nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Ping reports whether the backing medium is reachable. Used by the health
// endpoint; a missing document still counts as reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, _, err := s.backend.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Mutate loads the document, applies fn, and saves the result with the
// given commit message. Concurrent Mutate calls are serialized within the
// process; across processes the backend's version check applies. fn may
// return a result that is passed through to the caller. If fn returns an
// error the document is left untouched.
func (s *Store) Mutate(ctx context.Context, commitMessage string, fn func(*kb.Document) (any, error)) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loadCtx, cancel := context.WithTimeout(ctx, s.timeout)
	doc, base, err := s.backend.Load(loadCtx)
	cancel()
	if errors.Is(err, ErrNotFound) {
		doc, base = kb.NewDocument(), ""
	} else if err != nil {
		return nil, errors.Wrap(err, "loading document")
	}
	result, err := fn(doc)
	if err != nil {
		return nil, err
	}
	doc.LastUpdated = time.Now().UTC()
	saveCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.backend.Save(saveCtx, doc, base, commitMessage); err != nil {
		return nil, errors.Wrap(err, "saving document")
	}
	return result, nil
}
