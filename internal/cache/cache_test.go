// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
)

func TestGetSetDel(t *testing.T) {
	c := &CoalescingMemoryCache{}
	if err := c.Set("k", func() (any, error) { return "v", nil }); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, err := c.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "v" {
		t.Errorf("Get: got %v, want v", val)
	}
	c.Del("k")
	if _, err := c.Get("k"); err != ErrNotExist {
		t.Errorf("Get after Del: got %v, want ErrNotExist", err)
	}
}

func TestFailedFetchNotCached(t *testing.T) {
	c := &CoalescingMemoryCache{}
	boom := errors.New("boom")
	if err := c.Set("k", func() (any, error) { return nil, boom }); err != boom {
		t.Fatalf("Set: got %v, want boom", err)
	}
	if _, err := c.Get("k"); err != ErrNotExist {
		t.Errorf("failed fetch must not be cached, Get: %v", err)
	}
	// A later GetOrSet must run a fresh fetch.
	val, err := c.GetOrSet("k", func() (any, error) { return "v", nil })
	if err != nil || val != "v" {
		t.Errorf("GetOrSet after failure: got %v, %v", val, err)
	}
}

func TestGetOrSetCoalesces(t *testing.T) {
	c := &CoalescingMemoryCache{}
	var calls atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err := c.GetOrSet("k", func() (any, error) {
				calls.Add(1)
				return "v", nil
			})
			if err != nil || val != "v" {
				t.Errorf("GetOrSet: got %v, %v", val, err)
			}
		}()
	}
	wg.Wait()
	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls: got %d, want 1", got)
	}
}
