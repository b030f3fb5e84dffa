// Package auth turns bearer credentials into principals.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tallerops/admin-console/shared/models"
)

// PrincipalStore is the user lookup the resolver depends on
type PrincipalStore interface {
	FindActivePrincipal(ctx context.Context, id uuid.UUID) (*models.Principal, error)
	TouchLastActivity(ctx context.Context, id uuid.UUID, at time.Time) error
}

// RevocationList knows about credentials revoked before they expired
type RevocationList interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Resolver authenticates bearer credentials
type Resolver struct {
	verifier    *TokenVerifier
	principals  PrincipalStore
	revocations RevocationList
	now         func() time.Time
	log         *logrus.Entry
}

// NewResolver wires a resolver. revocations may be nil.
func NewResolver(verifier *TokenVerifier, principals PrincipalStore, revocations RevocationList) *Resolver {
	return &Resolver{
		verifier:    verifier,
		principals:  principals,
		revocations: revocations,
		now:         time.Now,
		log:         logrus.WithField("component", "principal_resolver"),
	}
}

// Authenticate verifies credential and loads the live principal behind it
func (r *Resolver) Authenticate(ctx context.Context, credential string) (*models.Principal, error) {
	claims, err := r.verifier.Verify(credential)
	if err != nil {
		return nil, err
	}

	if r.revocations != nil {
		revoked, err := r.revocations.IsRevoked(ctx, credential)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: revoked", ErrCredentialMalformed)
		}
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrCredentialMalformed
	}

	principal, err := r.principals.FindActivePrincipal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup principal: %w", err)
	}
	if principal == nil || !principal.Active {
		return nil, ErrPrincipalNotFound
	}

	now := r.now()
	if err := r.principals.TouchLastActivity(ctx, principal.ID, now); err != nil {
		r.log.WithFields(logrus.Fields{
			"principal_id": principal.ID,
			"error":        err,
		}).Warn("Failed to update last activity")
	} else {
		principal.LastActivityAt = &now
	}

	principal.PasswordHash = ""
	return principal, nil
}
