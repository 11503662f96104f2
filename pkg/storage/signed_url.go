package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignedURLSigner mints and validates download tokens for report
// artifacts. A token binds a class reference and a relative file path
// to an expiry; anyone holding an unexpired token may download, so
// the TTL should stay short.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner builds a signer. A non-positive ttl falls back
// to six hours.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Generate returns a token for the class reference and file path,
// plus its expiry.
func (s *SignedURLSigner) Generate(classRef, relPath string) (string, time.Time, error) {
	if classRef == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("class reference and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	sig := s.sign(classRef, exp, encodedPath)
	token := strings.Join([]string{classRef, exp, encodedPath, sig}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns what it binds. allowExpired
// skips the expiry check, for retention sweeps over old artifacts.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (classRef, relPath string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("malformed token")
	}
	classRef, exp, encodedPath, sig := parts[0], parts[1], parts[2], parts[3]

	expected := s.sign(classRef, exp, encodedPath)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return "", "", time.Time{}, fmt.Errorf("token signature mismatch")
	}

	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode token path: %w", err)
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("invalid token expiry")
	}
	expiresAt = time.Unix(expUnix, 0)
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return classRef, string(rawPath), expiresAt, nil
}

func (s *SignedURLSigner) sign(classRef, exp, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s", classRef, exp, encodedPath)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
