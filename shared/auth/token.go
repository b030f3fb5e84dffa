package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tallerops/admin-console/shared/models"
)

// Claims is the payload of a console credential
type Claims struct {
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// KeySource resolves RSA verification keys by key id
type KeySource interface {
	GetKey(kid string) (*rsa.PublicKey, error)
}

// VerifierConfig selects how credentials are verified
type VerifierConfig struct {
	HMACSecret string
	Keys       KeySource
	Issuer     string
	Now        func() time.Time
}

// TokenVerifier checks the signature and the time claims of a credential
type TokenVerifier struct {
	hmacKey []byte
	keys    KeySource
	issuer  string
	now     func() time.Time
}

// NewTokenVerifier requires at least one key: an HMAC secret or an RSA key source
func NewTokenVerifier(cfg VerifierConfig) (*TokenVerifier, error) {
	if cfg.HMACSecret == "" && cfg.Keys == nil {
		return nil, fmt.Errorf("token verifier needs an HMAC secret or a JWKS key source")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenVerifier{
		hmacKey: []byte(cfg.HMACSecret),
		keys:    cfg.Keys,
		issuer:  cfg.Issuer,
		now:     now,
	}, nil
}

// Verify returns the claims of a correctly signed credential. Expired
// credentials give ErrCredentialExpired; everything else that is wrong with
// the token gives ErrCredentialMalformed.
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrCredentialMalformed
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods()),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrCredentialExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrCredentialMalformed, err)
	}
	if !token.Valid {
		return nil, ErrCredentialMalformed
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: subject is not a principal id", ErrCredentialMalformed)
	}
	return claims, nil
}

func (v *TokenVerifier) methods() []string {
	var m []string
	if len(v.hmacKey) > 0 {
		m = append(m, jwt.SigningMethodHS256.Alg())
	}
	if v.keys != nil {
		m = append(m, jwt.SigningMethodRS256.Alg())
	}
	return m
}

func (v *TokenVerifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if len(v.hmacKey) == 0 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.hmacKey, nil
	case *jwt.SigningMethodRSA:
		if v.keys == nil {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid not found in token header")
		}
		return v.keys.GetKey(kid)
	}
	return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
}

// Issuer signs HS256 credentials for principals
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewIssuer(secret, issuer string) *Issuer {
	return &Issuer{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Issue returns a signed credential for p valid for ttl
func (i *Issuer) Issue(p *models.Principal, ttl time.Duration) (string, time.Time, error) {
	if len(i.secret) == 0 {
		return "", time.Time{}, errors.New("JWT signing secret not configured")
	}
	now := i.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Email: p.Email,
		Role:  string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if p.TenantID != nil {
		claims.TenantID = p.TenantID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}
