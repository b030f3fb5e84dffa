package utils

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"
)

// JWK is one RSA key of a JSON Web Key Set
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is a JSON Web Key Set document
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWKSKeySource serves RSA verification keys fetched from a JWKS endpoint.
// Keys are cached and refetched when an unknown kid shows up, at most once
// per minRefresh.
type JWKSKeySource struct {
	url        string
	client     *http.Client
	minRefresh time.Duration

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	lastRefresh time.Time
}

// NewJWKSKeySource creates a key source for url; keys load lazily
func NewJWKSKeySource(url string) *JWKSKeySource {
	return &JWKSKeySource{
		url:        url,
		client:     &http.Client{Timeout: 5 * time.Second},
		minRefresh: time.Minute,
		keys:       make(map[string]*rsa.PublicKey),
	}
}

// GetKey returns the key for kid, refreshing the set once if it is unknown
func (s *JWKSKeySource) GetKey(kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	key, ok := s.keys[kid]
	s.mu.RUnlock()
	if ok {
		return key, nil
	}

	if err := s.refresh(context.Background()); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok = s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key with kid %s not found", kid)
	}
	return key, nil
}

func (s *JWKSKeySource) refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastRefresh.IsZero() && time.Since(s.lastRefresh) < s.minRefresh {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build JWKS request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var set JWKS
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("failed to parse JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Kty != "RSA" {
			continue
		}
		pub, err := rsaKeyFromJWK(jwk)
		if err != nil {
			continue
		}
		keys[jwk.Kid] = pub
	}

	s.keys = keys
	s.lastRefresh = time.Now()
	return nil
}

func rsaKeyFromJWK(jwk JWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode N: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode E: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
