package httpapi

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

const mapKitTokenTTL = 30 * time.Minute

// MapKitSigner mints short-lived ES256 tokens for MapKit JS clients.
type MapKitSigner struct {
	teamID string
	keyID  string
	key    *ecdsa.PrivateKey
	origin string
	clock  clockwork.Clock
}

// NewMapKitSigner parses the PEM-encoded private key and returns a signer.
// Origin is optional; when set it restricts which pages can use the token.
func NewMapKitSigner(teamID, keyID, privateKeyPEM, origin string, clock clockwork.Clock) (*MapKitSigner, error) {
	if teamID == "" || keyID == "" || privateKeyPEM == "" {
		return nil, errors.New("mapkit team id, key id, and private key are required")
	}

	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, errors.New("mapkit private key is not valid PEM")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse mapkit private key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("mapkit private key is not an ECDSA key")
	}

	return &MapKitSigner{
		teamID: teamID,
		keyID:  keyID,
		key:    key,
		origin: origin,
		clock:  clock,
	}, nil
}

// Sign mints a token and returns it with its expiry.
func (m *MapKitSigner) Sign() (string, time.Time, error) {
	now := m.clock.Now()
	expiresAt := now.Add(mapKitTokenTTL)

	claims := jwt.MapClaims{
		"iss": m.teamID,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	if m.origin != "" {
		claims["origin"] = m.origin
	}

	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	t.Header["kid"] = m.keyID

	token, err := t.SignedString(m.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign mapkit token: %w", err)
	}
	return token, expiresAt, nil
}

func (s *Server) handleMapKitToken(w http.ResponseWriter, _ *http.Request) {
	if s.deps.MapKit == nil {
		writeError(w, http.StatusInternalServerError, "MAPKIT_NOT_CONFIGURED", "mapkit signing credentials are not set")
		return
	}

	token, expiresAt, err := s.deps.MapKit.Sign()
	if err != nil {
		s.logger.Error("mapkit token signing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "SIGNING_FAILED", "failed to sign mapkit token")
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": expiresAt.UTC(),
	})
}
