// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package authx

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/nexus-agents/dev-nexus/internal/config"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// fakeVerifier accepts tokens of the form "ok:<subject>".
type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, token string) (string, error) {
	if subject, ok := strings.CutPrefix(token, "ok:"); ok {
		return subject, nil
	}
	return "", errors.New("invalid token")
}

func request(token string) *http.Request {
	req, _ := http.NewRequest("POST", "/a2a/execute", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestIdentify(t *testing.T) {
	a := NewAuthorizer(config.AuthWorkloadIdentity, nil, fakeVerifier{})
	ctx := context.Background()
	if id := a.Identify(ctx, request("ok:alice@x")); !id.Authenticated || id.Subject != "alice@x" {
		t.Errorf("valid token: got %+v", id)
	}
	if id := a.Identify(ctx, request("garbage")); id.Authenticated {
		t.Errorf("invalid token must yield anonymous, got %+v", id)
	}
	if id := a.Identify(ctx, request("")); id.Authenticated {
		t.Errorf("missing token must yield anonymous, got %+v", id)
	}
}

func TestAuthorizePublicMode(t *testing.T) {
	a := NewAuthorizer(config.AuthPublic, nil, nil)
	if err := a.Authorize(Identity{}, "add_lesson_learned", true); err != nil {
		t.Errorf("public mode admits everything, got %v", err)
	}
}

func TestAuthorizeWorkloadIdentity(t *testing.T) {
	a := NewAuthorizer(config.AuthWorkloadIdentity, nil, fakeVerifier{})
	if err := a.Authorize(Identity{}, "query_patterns", false); err != nil {
		t.Errorf("public skill must pass anonymously, got %v", err)
	}
	err := a.Authorize(Identity{}, "add_lesson_learned", true)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("anonymous on protected skill: got %v", err)
	}
	if err := a.Authorize(Identity{Authenticated: true, Subject: "anyone@x"}, "add_lesson_learned", true); err != nil {
		t.Errorf("any verified identity passes in workload_identity mode, got %v", err)
	}
}

func TestAuthorizeServiceAccount(t *testing.T) {
	a := NewAuthorizer(config.AuthServiceAccount, []string{"alice@x"}, fakeVerifier{})
	if err := a.Authorize(Identity{Authenticated: true, Subject: "alice@x"}, "add_lesson_learned", true); err != nil {
		t.Errorf("allow-listed subject: got %v", err)
	}
	err := a.Authorize(Identity{Authenticated: true, Subject: "bob@x"}, "add_lesson_learned", true)
	if status.Code(err) != codes.PermissionDenied {
		t.Errorf("unlisted subject: got %v", err)
	}
	err = a.Authorize(Identity{}, "add_lesson_learned", true)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("anonymous ranks as unauthenticated before denied: got %v", err)
	}
}
