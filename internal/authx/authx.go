// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package authx authenticates inbound skill calls and enforces the
// caller allow-list.
package authx

import (
	"context"
	"net/http"
	"strings"

	"github.com/nexus-agents/dev-nexus/internal/config"
	"google.golang.org/api/idtoken"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Identity is the authenticated caller of a request. The zero value is
// an anonymous caller.
type Identity struct {
	Authenticated bool
	// Subject is the verified caller principal, e.g. a service account
	// email. Empty for anonymous callers.
	Subject string
}

// TokenVerifier validates a bearer token and returns the caller subject.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// IDTokenVerifier validates platform-signed identity tokens.
type IDTokenVerifier struct {
	// Audience the token must be minted for. Empty skips the audience
	// check.
	Audience string
}

var _ TokenVerifier = &IDTokenVerifier{}

func (v *IDTokenVerifier) Verify(ctx context.Context, token string) (string, error) {
	payload, err := idtoken.Validate(ctx, token, v.Audience)
	if err != nil {
		return "", err
	}
	if email, ok := payload.Claims["email"].(string); ok && email != "" {
		return email, nil
	}
	return payload.Subject, nil
}

// Authorizer decides whether a caller may invoke a skill.
type Authorizer struct {
	mode     config.AuthMode
	allowed  map[string]bool
	verifier TokenVerifier
}

// NewAuthorizer builds an Authorizer for the given mode. The verifier is
// unused in public mode.
func NewAuthorizer(mode config.AuthMode, allowedSubjects []string, verifier TokenVerifier) *Authorizer {
	allowed := make(map[string]bool, len(allowedSubjects))
	for _, s := range allowedSubjects {
		allowed[s] = true
	}
	return &Authorizer{mode: mode, allowed: allowed, verifier: verifier}
}

// Identify extracts and verifies the caller identity from the request.
// A missing or unverifiable token yields an anonymous identity, never an
// error: enforcement happens in Authorize per skill.
func (a *Authorizer) Identify(ctx context.Context, req *http.Request) Identity {
	if a.mode == config.AuthPublic {
		return Identity{}
	}
	token, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return Identity{}
	}
	subject, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return Identity{}
	}
	return Identity{Authenticated: true, Subject: subject}
}

// Authorize decides whether id may invoke the named skill. Public skills
// pass in every mode. Errors carry gRPC status codes for the HTTP layer.
func (a *Authorizer) Authorize(id Identity, skillID string, requiresAuth bool) error {
	if a.mode == config.AuthPublic || !requiresAuth {
		return nil
	}
	if !id.Authenticated {
		return status.Errorf(codes.Unauthenticated, "skill %q requires authentication", skillID)
	}
	if a.mode == config.AuthServiceAccount && !a.allowed[id.Subject] {
		return status.Errorf(codes.PermissionDenied, "%q is not permitted to invoke %q", id.Subject, skillID)
	}
	return nil
}
