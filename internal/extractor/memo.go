// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"context"
	"fmt"

	"github.com/nexus-agents/dev-nexus/internal/cache"
	"github.com/nexus-agents/dev-nexus/internal/kb"
)

// Memoized caches extraction results per commit. Repeated or concurrent
// requests for the same repository and commit share one model call.
// Failed extractions are not cached.
type Memoized struct {
	Extractor
	cache cache.CoalescingMemoryCache
}

// NewMemoized wraps an Extractor with a per-commit result cache.
func NewMemoized(inner Extractor) *Memoized {
	return &Memoized{Extractor: inner}
}

func (m *Memoized) Extract(ctx context.Context, req Request) (*kb.PatternSet, error) {
	key := fmt.Sprintf("%s@%s", req.Repository, req.CommitSHA)
	val, err := m.cache.GetOrSet(key, func() (any, error) {
		return m.Extractor.Extract(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return val.(*kb.PatternSet), nil
}
