package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	HeaderType      = "JWT"
	HeaderAlgorithm = "HS256"
)

type Header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// Claims are the registered claims plus the admin flag.
type Claims struct {
	ID        string `json:"jti,omitempty"`
	Subject   string `json:"sub"`
	Issuer    string `json:"iss,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	Admin     bool   `json:"adm,omitempty"`
}

// Valid checks temporal claims and the subject. Zero timestamps are unset.
func (c Claims) Valid() error {
	now := time.Now().Unix()
	if c.ExpiresAt > 0 && now > c.ExpiresAt {
		return ErrExpiredToken
	}
	if c.NotBefore > 0 && now < c.NotBefore {
		return ErrInvalidToken
	}
	if _, err := uuid.Parse(c.Subject); err != nil {
		return fmt.Errorf("%w: subject is not a user id", ErrInvalidClaims)
	}
	return nil
}

// UserID returns the subject as a user id.
func (c Claims) UserID() uuid.UUID {
	id, _ := uuid.Parse(c.Subject)
	return id
}

// Service signs and verifies tokens with an HMAC-SHA256 key.
type Service struct {
	signingKey []byte
	issuer     string
}

func New(signingKey []byte) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}
	return &Service{signingKey: signingKey}, nil
}

func NewFromString(signingKey string) (*Service, error) {
	return New([]byte(signingKey))
}

// Issue creates a signed token for userID valid for ttl.
func (s *Service) Issue(userID uuid.UUID, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	return s.Generate(Claims{
		ID:        uuid.NewString(),
		Subject:   userID.String(),
		Issuer:    s.issuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
		Admin:     admin,
	})
}

// Generate signs claims.
func (s *Service) Generate(claims Claims) (string, error) {
	headerJSON, err := json.Marshal(Header{Type: HeaderType, Algorithm: HeaderAlgorithm})
	if err != nil {
		return "", fmt.Errorf("failed to marshal header: %w", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}

	payload := base64URLEncode(headerJSON) + "." + base64URLEncode(claimsJSON)
	return payload + "." + s.sign(payload), nil
}

// Parse verifies token and returns its claims.
func (s *Service) Parse(token string) (Claims, error) {
	var claims Claims

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return claims, ErrInvalidToken
	}

	// Constant-time comparison.
	expected := s.sign(parts[0] + "." + parts[1])
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(expected)) != 1 {
		return claims, ErrInvalidSignature
	}

	headerJSON, err := base64URLDecode(parts[0])
	if err != nil {
		return claims, fmt.Errorf("%w: header: %w", ErrInvalidToken, err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return claims, fmt.Errorf("%w: header: %w", ErrInvalidToken, err)
	}
	if header.Algorithm != HeaderAlgorithm {
		return claims, ErrUnexpectedSigningMethod
	}

	claimsJSON, err := base64URLDecode(parts[1])
	if err != nil {
		return claims, fmt.Errorf("%w: claims: %w", ErrInvalidToken, err)
	}
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return claims, fmt.Errorf("%w: %w", ErrInvalidClaims, err)
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return claims, fmt.Errorf("%w: unexpected issuer", ErrInvalidClaims)
	}
	return claims, claims.Valid()
}

func (s *Service) sign(payload string) string {
	h := hmac.New(sha256.New, s.signingKey)
	h.Write([]byte(payload))
	return base64URLEncode(h.Sum(nil))
}

func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
