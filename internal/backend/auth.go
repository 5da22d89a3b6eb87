package backend

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredential means no usable backend credential is available. Callers
// must surface this before any bytes are transferred.
var ErrNoCredential = errors.New("no backend credential available")

// TokenSource supplies the bearer credential for backend calls.
type TokenSource interface {
	Token() (string, error)
}

// StaticTokenSource holds a fixed bearer token. When the token is a JWT its
// expiry is checked locally, so an expired credential fails fast instead of
// burning a multi-minute upload on a guaranteed 401.
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource wraps a configured token string.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: strings.TrimSpace(token)}
}

func (s *StaticTokenSource) Token() (string, error) {
	if s.token == "" {
		return "", ErrNoCredential
	}
	if strings.Count(s.token, ".") == 2 {
		if err := checkJWTExpiry(s.token); err != nil {
			return "", err
		}
	}
	return s.token, nil
}

func checkJWTExpiry(token string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Not parseable as a JWT; let the backend decide.
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(time.Now()) {
		return fmt.Errorf("credential expired at %s: %w", exp.Format(time.RFC3339), ErrNoCredential)
	}
	return nil
}
