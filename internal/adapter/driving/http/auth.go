package httphandler

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// bearerValidator performs structural validation of caller bearer tokens:
// parseable JWT, unexpired, addressed to our audience. Signature checking
// is deliberately absent; the token is exchanged downstream through the
// on-behalf-of flow, which rejects forged assertions.
type bearerValidator struct {
	audience string
}

// Validate returns an error when raw is not a structurally acceptable
// bearer token. The token contents are never logged.
func (v *bearerValidator) Validate(raw string) error {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return fmt.Errorf("parse bearer token: %w", err)
	}

	check := jwt.NewValidator(
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err := check.Validate(claims); err != nil {
		return fmt.Errorf("validate bearer token: %w", err)
	}
	return nil
}
