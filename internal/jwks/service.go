package jwks

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crownlabs/academy-idp/internal/database"
)

// JWTService is the signing surface over the key repository: it mints RS256
// tokens with the active key and verifies them by the kid a token names, so
// verification keeps working across a future key rotation.
type JWTService struct {
	repo ISigningKeyRepository
}

func NewJWTService(repo ISigningKeyRepository) *JWTService {
	return &JWTService{repo: repo}
}

// GetJWKS returns the published key set. An empty set is not an error: a
// provider that has never signed anything has no keys yet.
func (s *JWTService) GetJWKS(ctx context.Context) (JWKS, error) {
	key, err := s.repo.FindActive(ctx)
	if errors.Is(err, database.ErrNotFound) {
		return JWKS{Keys: []JWK{}}, nil
	}
	if err != nil {
		return JWKS{}, err
	}

	jwk, err := key.JWK()
	if err != nil {
		return JWKS{}, err
	}
	return JWKS{Keys: []JWK{jwk}}, nil
}

// Sign mints an RS256 JWT with the active signing key, generating the key on
// first use. The kid rides in the JOSE header.
func (s *JWTService) Sign(ctx context.Context, claims jwt.MapClaims) (string, error) {
	key, err := s.repo.EnsureSigningKey(ctx)
	if err != nil {
		return "", err
	}

	privateKey, err := ParsePrivateKeyPEM(key.PrivateKeyPEM)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = key.KID

	return token.SignedString(privateKey)
}

// Verify parses and verifies an RS256 token against the key its kid names.
func (s *JWTService) Verify(ctx context.Context, tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("missing kid in token header")
		}

		key, err := s.repo.FindByKID(ctx, kid)
		if err != nil {
			return nil, err
		}
		jwk, err := key.JWK()
		if err != nil {
			return nil, err
		}
		return jwk.PublicKey()
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return token, nil
}

// GetPublicPEM derives the SPKI PEM encoding of the active public key from
// its stored JWK, without touching the private half.
func (s *JWTService) GetPublicPEM(ctx context.Context) (string, error) {
	key, err := s.repo.FindActive(ctx)
	if err != nil {
		return "", err
	}
	jwk, err := key.JWK()
	if err != nil {
		return "", err
	}
	pub, err := jwk.PublicKey()
	if err != nil {
		return "", err
	}

	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	})), nil
}

// ParsePrivateKeyPEM accepts PKCS8 and PKCS1 encodings; the store writes
// PKCS8 but keys imported by hand are often PKCS1.
func ParsePrivateKeyPEM(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("invalid PEM")
	}

	switch block.Type {
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA private key")
		}
		return key, nil

	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)

	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
}
