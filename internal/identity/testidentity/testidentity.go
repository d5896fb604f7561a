// Package testidentity implements identity.Provider against a single
// configured handle/app-password pair, per spec.md §4.6's "test-
// credential fallback is supported if configured" and §6's
// testingHandle/testingAppPassword options. It is an in-memory stand-in
// for the real OAuth identity provider the teacher repo models as
// internal/auth's JWT-based session issuance, re-pointed at
// handle/app-password instead of username/password since that's the
// credential pair spec.md names.
package testidentity

import (
	"context"
	"fmt"
	"sync"

	"github.com/roomyhq/spacepeer/internal/auth"
	"github.com/roomyhq/spacepeer/internal/identity"
	"github.com/roomyhq/spacepeer/internal/schema"
)

// Provider is a single-user identity.Provider backed by a
// testingHandle/testingAppPassword pair and an in-memory record store.
// It never talks to a network; Authorize returns a synthetic URL and
// Callback accepts the password directly, matching how a test harness
// drives login without a real OAuth redirect.
type Provider struct {
	handle       schema.Handle
	passwordHash string
	userDID      schema.UserDID

	mu              sync.Mutex
	authenticated   map[schema.UserDID]bool
	records         map[schema.UserDID]map[identity.RecordKind][]byte
	streamRecords   map[schema.StreamDID]schema.UserDID
}

// New constructs a Provider for the given testingHandle/
// testingAppPassword pair. The user DID is derived deterministically
// from the handle so repeated test runs address the same identity.
func New(handle, appPassword string) (*Provider, error) {
	hash, err := auth.HashPassword(appPassword)
	if err != nil {
		return nil, fmt.Errorf("hash testing app password: %w", err)
	}
	return &Provider{
		handle:        schema.Handle(handle),
		passwordHash:  hash,
		userDID:       schema.UserDID("did:test:" + handle),
		authenticated: make(map[schema.UserDID]bool),
		records:       make(map[schema.UserDID]map[identity.RecordKind][]byte),
		streamRecords: make(map[schema.StreamDID]schema.UserDID),
	}, nil
}

// Authorize returns a synthetic "authorize" URL carrying the
// configured handle, since there is no real redirect target in test
// mode.
func (p *Provider) Authorize(ctx context.Context) (string, error) {
	return fmt.Sprintf("testidentity://authorize?handle=%s", p.handle), nil
}

// Callback validates params["password"] against the configured
// app-password hash and returns the fixed test user DID on success.
func (p *Provider) Callback(ctx context.Context, params map[string]string) (schema.UserDID, error) {
	if params["handle"] != string(p.handle) {
		return "", fmt.Errorf("testidentity: unknown handle %q", params["handle"])
	}
	if !auth.VerifyPassword(p.passwordHash, params["password"]) {
		return "", fmt.Errorf("testidentity: invalid app password")
	}
	p.mu.Lock()
	p.authenticated[p.userDID] = true
	p.mu.Unlock()
	return p.userDID, nil
}

// Restore re-authenticates userDID if it matches the configured test
// identity and has previously completed Callback.
func (p *Provider) Restore(ctx context.Context, userDID schema.UserDID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if userDID != p.userDID || !p.authenticated[userDID] {
		return &identity.ErrNotAuthenticated{UserDID: userDID}
	}
	return nil
}

func (p *Provider) ReadRecord(ctx context.Context, userDID schema.UserDID, kind identity.RecordKind) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	byKind, ok := p.records[userDID]
	if !ok {
		return nil, false, nil
	}
	v, ok := byKind[kind]
	return v, ok, nil
}

func (p *Provider) WriteRecord(ctx context.Context, userDID schema.UserDID, kind identity.RecordKind, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.records[userDID] == nil {
		p.records[userDID] = make(map[identity.RecordKind][]byte)
	}
	p.records[userDID][kind] = value
	return nil
}

func (p *Provider) CheckStreamExists(ctx context.Context, streamDID schema.StreamDID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.streamRecords[streamDID]
	return ok, nil
}

func (p *Provider) CreateStreamRecord(ctx context.Context, userDID schema.UserDID, streamDID schema.StreamDID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streamRecords[streamDID] = userDID
	return nil
}
