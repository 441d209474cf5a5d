// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines the pluggable authentication seam for the
// trend service. The open source build ships permissive local providers;
// hosted deployments substitute real identity-provider implementations.
package extensions

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when authentication fails. Provider
// implementations should wrap this error with additional context.
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo contains identity information returned after successful
// authentication.
//
// UserID is the only required field and must never be empty. Weight data
// is keyed by it, so a provider that returns unstable user IDs will
// scatter one person's history across several stores.
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated user.
	UserID string

	// Email is the user's email address. May be empty.
	Email string

	// Roles contains role memberships. The "admin" role grants access to
	// other users' weight data; everyone else only sees their own.
	Roles []string
}

// HasRole checks if the user has a specific role.
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates authentication tokens and returns user identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// The default NopAuthProvider authenticates every request as "local-user"
// with admin privileges so a single-user deployment needs no auth
// infrastructure. Hosted builds validate tokens against a real identity
// provider and return the subject's stable user ID.
type AuthProvider interface {
	// Validate checks if the token is valid and returns the user's
	// identity. Returns ErrUnauthorized (or a wrap of it) for invalid
	// tokens, other errors for provider failures.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider is the default provider for single-user deployments.
//
// Any token, including the empty string, authenticates as "local-user"
// with admin privileges. This implementation has no mutable state.
type NopAuthProvider struct{}

// Validate always returns a valid local user with admin privileges.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{"admin"},
	}, nil
}

// StaticTokenProvider authenticates against a fixed token to user-ID map.
// It suits small self-hosted deployments where a handful of household
// members each hold a pre-shared token.
//
// The map must not be mutated after construction; with that constraint
// the provider is safe for concurrent use.
type StaticTokenProvider struct {
	tokens map[string]AuthInfo
}

// NewStaticTokenProvider builds a provider from a token to identity map.
// A copy of the map is taken so later caller mutation cannot race reads.
func NewStaticTokenProvider(tokens map[string]AuthInfo) *StaticTokenProvider {
	copied := make(map[string]AuthInfo, len(tokens))
	for k, v := range tokens {
		copied[k] = v
	}
	return &StaticTokenProvider{tokens: copied}
}

// Validate looks the token up in the static map.
func (p *StaticTokenProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	info, ok := p.tokens[token]
	if !ok {
		return nil, fmt.Errorf("unknown token: %w", ErrUnauthorized)
	}
	out := info
	return &out, nil
}

var (
	_ AuthProvider = (*NopAuthProvider)(nil)
	_ AuthProvider = (*StaticTokenProvider)(nil)
)
