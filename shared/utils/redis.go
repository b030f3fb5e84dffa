package utils

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// NewRedisClient connects to the Redis instance named by REDIS_HOST/REDIS_PORT
func NewRedisClient(ctx context.Context) (*redis.Client, error) {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	addr := fmt.Sprintf("%s:%s", host, port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logrus.Infof("Connected to Redis at %s", addr)
	return client, nil
}

// TokenRevocations is a Redis deny-list of credentials revoked before they
// expired. Only the SHA-256 of a token is stored.
type TokenRevocations struct {
	client *redis.Client
}

func NewTokenRevocations(client *redis.Client) *TokenRevocations {
	return &TokenRevocations{client: client}
}

func revocationKey(token string) string {
	hash := sha256.Sum256([]byte(token))
	return "token:revoked:" + hex.EncodeToString(hash[:])
}

// Revoke denies token until expiresAt
func (r *TokenRevocations) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revocationKey(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether token was revoked
func (r *TokenRevocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, revocationKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}
