package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tallerops/admin-console/shared/models"
)

type stubPrincipalStore struct {
	principals map[uuid.UUID]*models.Principal
	lookupErr  error
	touchErr   error
	touched    []uuid.UUID
}

func (s *stubPrincipalStore) FindActivePrincipal(ctx context.Context, id uuid.UUID) (*models.Principal, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	p, ok := s.principals[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (s *stubPrincipalStore) TouchLastActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.touched = append(s.touched, id)
	return s.touchErr
}

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s *stubRevocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	return s.revoked[token], s.err
}

func resolverFixture(t *testing.T, p *models.Principal) (*Resolver, *stubPrincipalStore, string) {
	t.Helper()
	store := &stubPrincipalStore{principals: map[uuid.UUID]*models.Principal{}}
	if p != nil {
		store.principals[p.ID] = p
	}
	verifier, err := NewTokenVerifier(VerifierConfig{HMACSecret: testSecret})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	subject := &models.Principal{ID: uuid.New()}
	if p != nil {
		subject = p
	}
	token, _, err := NewIssuer(testSecret, "").Issue(subject, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return NewResolver(verifier, store, nil), store, token
}

func TestAuthenticate_ActivePrincipal(t *testing.T) {
	tenant := uuid.New()
	p := &models.Principal{ID: uuid.New(), Email: "a@taller.com", PasswordHash: "hash", Role: models.RoleAdmin, TenantID: &tenant, Active: true}
	r, store, token := resolverFixture(t, p)
	fixed := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	got, err := r.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != p.ID || got.Role != models.RoleAdmin {
		t.Fatalf("unexpected principal: %+v", got)
	}
	if got.PasswordHash != "" {
		t.Fatalf("expected password hash stripped")
	}
	if got.LastActivityAt == nil || !got.LastActivityAt.Equal(fixed) {
		t.Fatalf("expected last activity %v, got %v", fixed, got.LastActivityAt)
	}
	if len(store.touched) != 1 {
		t.Fatalf("expected one activity touch, got %d", len(store.touched))
	}
}

func TestAuthenticate_UnknownOrInactive(t *testing.T) {
	r, _, token := resolverFixture(t, nil)
	if _, err := r.Authenticate(context.Background(), token); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("unknown: expected ErrPrincipalNotFound, got %v", err)
	}

	blocked := &models.Principal{ID: uuid.New(), Role: models.RoleViewer, Active: false}
	r, _, token = resolverFixture(t, blocked)
	if _, err := r.Authenticate(context.Background(), token); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("inactive: expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestAuthenticate_TouchFailureStillSucceeds(t *testing.T) {
	p := &models.Principal{ID: uuid.New(), Role: models.RoleSuperAdmin, Active: true}
	r, store, token := resolverFixture(t, p)
	store.touchErr = errors.New("database is locked")

	got, err := r.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("expected success despite touch failure, got %v", err)
	}
	if got.LastActivityAt != nil {
		t.Fatalf("expected last activity unset when the write failed")
	}
}

func TestAuthenticate_LookupErrorIsNotAuthError(t *testing.T) {
	p := &models.Principal{ID: uuid.New(), Role: models.RoleAdmin, Active: true}
	r, store, token := resolverFixture(t, p)
	store.lookupErr = errors.New("connection refused")

	_, err := r.Authenticate(context.Background(), token)
	if err == nil || IsAuthError(err) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
}

func TestAuthenticate_Revoked(t *testing.T) {
	p := &models.Principal{ID: uuid.New(), Role: models.RoleAdmin, Active: true}
	r, store, token := resolverFixture(t, p)
	r.revocations = &stubRevocations{revoked: map[string]bool{token: true}}

	if _, err := r.Authenticate(context.Background(), token); !errors.Is(err, ErrCredentialMalformed) {
		t.Fatalf("expected revoked credential rejected, got %v", err)
	}
	if len(store.touched) != 0 {
		t.Fatalf("expected no activity touch for revoked credential")
	}
}

func TestAuthenticate_BadCredential(t *testing.T) {
	r, _, _ := resolverFixture(t, nil)
	if _, err := r.Authenticate(context.Background(), "garbage"); !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}
