package rpc

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errMissingToken = errors.New("rpc: missing bearer token")
	errInvalidToken = errors.New("rpc: invalid bearer token")
)

// Authorizer validates HS256 bearer tokens on mutating methods.
type Authorizer struct {
	secret []byte
	now    func() time.Time
}

// NewAuthorizer constructs an authorizer from a shared secret. An empty
// secret returns nil, which disables auth entirely.
func NewAuthorizer(secret string) *Authorizer {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil
	}
	return &Authorizer{secret: []byte(trimmed), now: time.Now}
}

// Authorize checks the request's Authorization header.
func (a *Authorizer) Authorize(r *http.Request) error {
	if a == nil {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return errMissingToken
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	token, err := parser.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return errInvalidToken
	}
	return nil
}
