package token

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/crownlabs/academy-idp/internal/authcode"
	"github.com/crownlabs/academy-idp/internal/user"
	"github.com/crownlabs/academy-idp/pkg/pkce"
)

const (
	AccessTokenLifetime  = time.Hour
	RefreshTokenLifetime = 30 * 24 * time.Hour
)

var (
	// ErrPKCERequired: the code was issued with a challenge but the token
	// request carried no verifier.
	ErrPKCERequired = errors.New("code_verifier required")
	// ErrPKCEMismatch: the verifier does not match the stored challenge.
	ErrPKCEMismatch = errors.New("code_verifier mismatch")
)

// Signer mints signed JWTs; satisfied by the jwks service.
type Signer interface {
	Sign(ctx context.Context, claims jwt.MapClaims) (string, error)
}

type TokenSet struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// Issuer turns a consumed authorization code plus the user it names into the
// token set the grant's scopes allow.
type Issuer struct {
	signer Signer
}

func NewIssuer(signer Signer) *Issuer {
	return &Issuer{signer: signer}
}

// VerifyPKCE enforces the challenge bound at authorization time. Codes
// issued without a challenge accept any request.
func (i *Issuer) VerifyPKCE(rec authcode.AuthorizationCode, verifier string) error {
	if rec.CodeChallenge == "" {
		return nil
	}
	if verifier == "" {
		return ErrPKCERequired
	}
	if !pkce.VerifyCodeVerifier(rec.CodeChallengeMethod, verifier, rec.CodeChallenge) {
		return ErrPKCEMismatch
	}
	return nil
}

func (i *Issuer) Issue(ctx context.Context, issuer string, profile user.Profile, rec authcode.AuthorizationCode) (TokenSet, error) {
	scopes := splitScopes(rec.Scope)
	now := time.Now()

	// a grant that named no scope still gets the default treatment
	grantedScope := rec.Scope
	if grantedScope == "" {
		grantedScope = "openid"
	}

	accessClaims := jwt.MapClaims{
		"iss":   issuer,
		"aud":   rec.ClientID,
		"sub":   profile.ID,
		"scope": grantedScope,
		"iat":   now.Unix(),
		"exp":   now.Add(AccessTokenLifetime).Unix(),
		"jti":   uuid.NewString(),
	}
	accessToken, err := i.signer.Sign(ctx, accessClaims)
	if err != nil {
		return TokenSet{}, err
	}

	// the ID token is part of every grant; only the email/profile claims
	// inside it are scope-gated
	idClaims := jwt.MapClaims{
		"iss":       issuer,
		"aud":       rec.ClientID,
		"sub":       profile.ID,
		"iat":       now.Unix(),
		"exp":       now.Add(AccessTokenLifetime).Unix(),
		"auth_time": now.Unix(),
	}
	for k, v := range IdentityClaims(profile, scopes) {
		idClaims[k] = v
	}
	idToken, err := i.signer.Sign(ctx, idClaims)
	if err != nil {
		return TokenSet{}, err
	}

	set := TokenSet{
		AccessToken: accessToken,
		IDToken:     idToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(AccessTokenLifetime.Seconds()),
		Scope:       grantedScope,
	}

	if scopes["offline_access"] {
		refreshClaims := jwt.MapClaims{
			"iss":       issuer,
			"sub":       profile.ID,
			"client_id": rec.ClientID,
			"type":      "refresh_token",
			"scope":     grantedScope,
			"iat":       now.Unix(),
			"exp":       now.Add(RefreshTokenLifetime).Unix(),
			"jti":       uuid.NewString(),
		}
		set.RefreshToken, err = i.signer.Sign(ctx, refreshClaims)
		if err != nil {
			return TokenSet{}, err
		}
	}

	return set, nil
}

// IdentityClaims maps the profile onto the claims the granted scopes allow.
// Shared by the ID token and the userinfo endpoint so the two never drift.
func IdentityClaims(profile user.Profile, scopes map[string]bool) map[string]any {
	claims := map[string]any{}
	if scopes["email"] {
		claims["email"] = profile.Email
		claims["email_verified"] = profile.EmailVerified
	}
	if scopes["profile"] {
		claims["name"] = profile.DisplayName()
		claims["preferred_username"] = profile.Username
		if profile.FirstName != "" {
			claims["given_name"] = profile.FirstName
		}
		if profile.LastName != "" {
			claims["family_name"] = profile.LastName
		}
	}
	return claims
}

func splitScopes(scope string) map[string]bool {
	scopes := map[string]bool{}
	for _, s := range strings.Fields(scope) {
		scopes[s] = true
	}
	return scopes
}

// SplitScopes exposes the scope-set parsing for the protocol layer.
func SplitScopes(scope string) map[string]bool {
	return splitScopes(scope)
}
