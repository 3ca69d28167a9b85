package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSecret   = "test-signing-secret-0123456789"
	testIssuer   = "bernerspace-ecosystem"
	testAudience = "relay-gateway"
)

func mintToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func baseClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "u1",
		"iss": testIssuer,
		"aud": testAudience,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier([]byte(testSecret), testIssuer, testAudience)

	tok := mintToken(t, testSecret, baseClaims())
	id, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id != "u1" {
		t.Fatalf("caller id = %q, want u1", id)
	}

	// Same subject, different issuance time, extra claims: same identity.
	claims := baseClaims()
	claims["iat"] = time.Now().Add(-time.Minute).Unix()
	claims["scopes"] = []string{"read", "write"}
	id2, err := v.Verify(mintToken(t, testSecret, claims))
	if err != nil {
		t.Fatalf("Verify second token: %v", err)
	}
	if id2 != id {
		t.Fatalf("identity not stable: %q vs %q", id, id2)
	}
}

func TestVerifyWithoutExpiry(t *testing.T) {
	v := NewVerifier([]byte(testSecret), testIssuer, testAudience)

	claims := baseClaims()
	delete(claims, "exp")
	if _, err := v.Verify(mintToken(t, testSecret, claims)); err != nil {
		t.Fatalf("token without exp should verify: %v", err)
	}
}

func TestVerifyExpiryLeeway(t *testing.T) {
	v := NewVerifier([]byte(testSecret), testIssuer, testAudience)

	// Expired 10s ago: inside the 30s leeway, still accepted.
	claims := baseClaims()
	claims["exp"] = time.Now().Add(-10 * time.Second).Unix()
	if _, err := v.Verify(mintToken(t, testSecret, claims)); err != nil {
		t.Fatalf("token inside leeway rejected: %v", err)
	}

	// Expired well past the leeway: rejected.
	claims["exp"] = time.Now().Add(-5 * time.Minute).Unix()
	if _, err := v.Verify(mintToken(t, testSecret, claims)); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expired token: got %v, want ErrUnauthenticated", err)
	}
}

func TestVerifyFailuresIndistinguishable(t *testing.T) {
	v := NewVerifier([]byte(testSecret), testIssuer, testAudience)

	expired := baseClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	wrongIss := baseClaims()
	wrongIss["iss"] = "someone-else"
	wrongAud := baseClaims()
	wrongAud["aud"] = "other-service"
	noSub := baseClaims()
	delete(noSub, "sub")

	cases := map[string]string{
		"malformed":       "not.a.jwt",
		"wrong signature": mintToken(t, "other-secret-9876543210abcdef", baseClaims()),
		"expired":         mintToken(t, testSecret, expired),
		"wrong issuer":    mintToken(t, testSecret, wrongIss),
		"wrong audience":  mintToken(t, testSecret, wrongAud),
		"missing subject": mintToken(t, testSecret, noSub),
	}

	for name, tok := range cases {
		id, err := v.Verify(tok)
		if err != ErrUnauthenticated {
			t.Errorf("%s: got err %v, want exactly ErrUnauthenticated", name, err)
		}
		if id != "" {
			t.Errorf("%s: leaked caller id %q", name, id)
		}
	}
}

func TestVerifyRejectsNonHS256(t *testing.T) {
	v := NewVerifier([]byte(testSecret), testIssuer, testAudience)

	// alg=none style tokens must not pass.
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, baseClaims())
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := v.Verify(s); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("none-alg token accepted: %v", err)
	}
}
