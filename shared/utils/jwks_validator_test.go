package utils

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tallerops/admin-console/shared/auth"
)

func jwksServer(t *testing.T, kid string, pub *rsa.PublicKey, hits *int32) *httptest.Server {
	t.Helper()
	set := JWKS{Keys: []JWK{{
		Kid: kid,
		Kty: "RSA",
		Alg: "RS256",
		Use: "sig",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestJWKSKeySource_VerifiesRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var hits int32
	srv := jwksServer(t, "k1", &key.PublicKey, &hits)

	verifier, err := auth.NewTokenVerifier(auth.VerifierConfig{Keys: NewJWKSKeySource(srv.URL)})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := verifier.Verify(signed); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := verifier.Verify(signed); err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected keys cached after first fetch, got %d fetches", hits)
	}
}

func TestJWKSKeySource_UnknownKid(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var hits int32
	srv := jwksServer(t, "k1", &key.PublicKey, &hits)
	src := NewJWKSKeySource(srv.URL)

	if _, err := src.GetKey("k1"); err != nil {
		t.Fatalf("known kid: %v", err)
	}
	if _, err := src.GetKey("rotated"); err == nil {
		t.Fatalf("expected unknown kid to fail")
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected refresh throttled, got %d fetches", hits)
	}
}

func TestJWKSKeySource_EndpointDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewJWKSKeySource(srv.URL).GetKey("k1")
	if err == nil {
		t.Fatalf("expected fetch error")
	}
}
