// Package auth verifies caller credentials for the screening API.
//
// Two schemes are accepted on the Authorization header: Ed25519-signed JWTs
// (verified against a configured public key) and static API keys (checked
// against configured Argon2id hashes). With neither configured the server
// runs open — a development posture that logs a warning at boot.
package auth

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredentials is returned when a presented credential matches no
// configured scheme.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Claims extends jwt.RegisteredClaims with the operator identity carried by
// issued screening tokens.
type Claims struct {
	jwt.RegisteredClaims
	OperatorID   string `json:"operator_id,omitempty"`
	OperatorName string `json:"operator_name,omitempty"`
}

// Principal identifies an authenticated caller.
type Principal struct {
	// Subject is the JWT subject or, for API keys, "api-key".
	Subject string
	// Method is "jwt" or "api_key".
	Method string
	// OperatorID is populated from JWT claims when present.
	OperatorID string
}

// Verifier checks presented credentials. It holds no signing material —
// token issuance belongs to the identity provider, not this service.
type Verifier struct {
	publicKey ed25519.PublicKey
	keyHashes []string
}

// NewVerifier builds a Verifier from a PEM public key path and a set of
// Argon2id API key hashes. Either may be empty; with both empty the verifier
// is open and every request passes unauthenticated.
func NewVerifier(publicKeyPath string, apiKeyHashes []string, logger *slog.Logger) (*Verifier, error) {
	v := &Verifier{keyHashes: apiKeyHashes}

	if publicKeyPath != "" {
		pub, err := loadPublicKey(publicKeyPath)
		if err != nil {
			return nil, err
		}
		v.publicKey = pub
	}

	if v.Open() {
		logger.Warn("auth: no JWT public key or API key hashes configured, API runs open (not for production)")
	}
	return v, nil
}

// Open reports whether no credential scheme is configured.
func (v *Verifier) Open() bool {
	return v.publicKey == nil && len(v.keyHashes) == 0
}

// Verify checks a bearer credential against the configured schemes. JWTs are
// tried first when a public key is present; anything that does not verify as
// a JWT falls through to the API key hashes.
func (v *Verifier) Verify(credential string) (*Principal, error) {
	if v.publicKey != nil {
		if p, err := v.verifyJWT(credential); err == nil {
			return p, nil
		}
	}

	matched := false
	for _, hash := range v.keyHashes {
		ok, err := VerifyAPIKey(credential, hash)
		if err != nil {
			continue
		}
		if ok {
			matched = true
			break
		}
	}
	if !matched {
		if len(v.keyHashes) == 0 {
			DummyVerify()
		}
		return nil, ErrInvalidCredentials
	}
	return &Principal{Subject: "api-key", Method: "api_key"}, nil
}

func (v *Verifier) verifyJWT(tokenStr string) (*Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method: %v", t.Header["alg"])
		}
		return v.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}
	if !token.Valid {
		return nil, ErrInvalidCredentials
	}
	return &Principal{
		Subject:    claims.Subject,
		Method:     "jwt",
		OperatorID: claims.OperatorID,
	}, nil
}

func loadPublicKey(path string) (ed25519.PublicKey, error) {
	pubPEM, err := os.ReadFile(path) //nolint:gosec // path comes from validated config, not user input
	if err != nil {
		return nil, fmt.Errorf("auth: read public key: %w", err)
	}
	block, _ := pem.Decode(pubPEM)
	if block == nil {
		return nil, fmt.Errorf("auth: decode public key PEM")
	}
	pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("auth: parse public key: %w", err)
	}
	edPub, ok := pubKey.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("auth: public key is not Ed25519")
	}
	return edPub, nil
}
