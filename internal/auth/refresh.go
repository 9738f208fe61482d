package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/obsplane/observability/internal/db"
)

// RefreshTokens issues and validates opaque refresh tokens. Because each
// token is hashed with a random bcrypt salt, validation cannot use an indexed
// lookup by hash; Validate lists the active (unrevoked) tokens itself and
// linear-scans them instead, which is acceptable because that set is bounded
// by session count.
type RefreshTokens struct {
	gateway *db.Gateway
	ttl     time.Duration
}

// NewRefreshTokens binds the refresh_tokens Gateway and the configured TTL.
func NewRefreshTokens(gateway *db.Gateway, ttlDays int) *RefreshTokens {
	return &RefreshTokens{gateway: gateway, ttl: time.Duration(ttlDays) * 24 * time.Hour}
}

func generateOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Issue creates and persists a new refresh token for userID, returning the
// plaintext to hand back to the client.
func (r *RefreshTokens) Issue(ctx context.Context, userID int, deviceFingerprint, sourceIP string) (plaintext string, expiresAt time.Time, err error) {
	plaintext, err = generateOpaqueToken()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt = time.Now().Add(r.ttl)

	_, err = r.gateway.Create(ctx, map[string]any{
		"user_id":            userID,
		"password":           plaintext, // hashed into token_hash via the password shadow column
		"expires_at":         expiresAt,
		"device_fingerprint": deviceFingerprint,
		"source_ip":          sourceIP,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return plaintext, expiresAt, nil
}

// Validate scans the active (non-deleted, non-revoked, non-expired) refresh
// tokens for a match against plaintext and returns the matching row, or nil
// if none verify. The set scanned is the whole active set, not one user's —
// the opaque token is the only credential the caller presents, so the owning
// user is identified from the matched row rather than trusted from the
// request.
func (r *RefreshTokens) Validate(ctx context.Context, plaintext string) (map[string]any, error) {
	page, err := r.gateway.List(ctx, db.ListParams{
		Limit:   1000,
		Filters: map[string]any{"revoked_at__isnull": nil},
	})
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	now := time.Now()
	for _, row := range page.Rows {
		expiresAt, _ := row["expires_at"].(time.Time)
		if !expiresAt.IsZero() && now.After(expiresAt) {
			continue
		}
		hash, _ := row["token_hash"].(string)
		if hash != "" && CheckPassword(hash, plaintext) {
			return row, nil
		}
	}
	return nil, nil
}

// Revoke soft-deletes the given refresh token row, making it permanently invalid.
func (r *RefreshTokens) Revoke(ctx context.Context, id int) error {
	_, err := r.gateway.Delete(ctx, id, true)
	return err
}
