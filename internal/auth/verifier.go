package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned for every credential failure. Callers must
// not be able to tell a bad signature from an expired token or a wrong
// audience, so all validation failures collapse into this one error.
var ErrUnauthenticated = errors.New("unauthenticated")

// expiryLeeway absorbs small clock skew between token issuer and gateway.
const expiryLeeway = 30 * time.Second

// Verifier validates inbound HS256 bearer tokens and extracts the caller
// identity (the token's subject claim).
type Verifier struct {
	parser   *jwt.Parser
	secret   []byte
	issuer   string
	audience string
}

// NewVerifier creates a Verifier bound to a process-wide signing secret and
// the expected issuer/audience claims.
func NewVerifier(secret []byte, issuer, audience string) *Verifier {
	return &Verifier{
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"HS256"}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithLeeway(expiryLeeway),
		),
		secret:   secret,
		issuer:   issuer,
		audience: audience,
	}
}

// Verify checks signature, issuer, audience and (if present) expiry, and
// returns the stable caller identifier from the subject claim.
func (v *Verifier) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", ErrUnauthenticated
	}
	if claims.Subject == "" {
		return "", ErrUnauthenticated
	}
	return claims.Subject, nil
}
