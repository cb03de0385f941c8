package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// TokenProvider supplies the opaque bearer token issued by the external auth
// service. It is passed explicitly to every backend call instead of being
// read from ambient state, so callers stay independently testable.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

var ErrNoCredentials = errors.New("no credentials available")

// StaticToken is a TokenProvider holding a fixed token, typically the one
// extracted from an incoming request's Authorization header.
type StaticToken string

func (t StaticToken) Token(_ context.Context) (string, error) {
	if t == "" {
		return "", ErrNoCredentials
	}
	return string(t), nil
}

type ctxKey int

const (
	credentialsKey ctxKey = iota
	subjectKeyKey
)

// WithToken stores request credentials and the derived subject key on the
// context for downstream handlers.
func WithToken(ctx context.Context, token string) context.Context {
	ctx = context.WithValue(ctx, credentialsKey, StaticToken(token))
	return context.WithValue(ctx, subjectKeyKey, SubjectKey(token))
}

// CredentialsFrom returns the request-scoped TokenProvider, if any.
func CredentialsFrom(ctx context.Context) (TokenProvider, bool) {
	tp, ok := ctx.Value(credentialsKey).(StaticToken)
	if !ok || tp == "" {
		return nil, false
	}
	return tp, true
}

// SubjectKeyFrom returns the per-user key derived from the request token.
func SubjectKeyFrom(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(subjectKeyKey).(string)
	return key, ok && key != ""
}

// SubjectKey derives a stable per-user key from a bearer token. Cache keys
// and log lines must never embed the raw token.
func SubjectKey(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
