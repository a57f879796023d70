package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeCodeVerifier derives the code_challenge a verifier should match.
// The method is matched case-insensitively and defaults to plain per
// RFC 7636 when unspecified.
func EncodeCodeVerifier(codeChallengeMethod, codeVerifier string) (string, error) {
	switch strings.ToLower(codeChallengeMethod) {
	case "", "plain":
		return codeVerifier, nil

	case "s256":
		sum := sha256.Sum256([]byte(codeVerifier))
		return base64.RawURLEncoding.EncodeToString(sum[:]), nil

	default:
		return "", fmt.Errorf("unsupported code_challenge_method: %s", codeChallengeMethod)
	}
}

// VerifyCodeVerifier checks a verifier against the stored challenge using a
// constant-time comparison.
func VerifyCodeVerifier(codeChallengeMethod, codeVerifier, codeChallenge string) bool {
	expected, err := EncodeCodeVerifier(codeChallengeMethod, codeVerifier)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(codeChallenge)) == 1
}

// GenerateCodeVerifier returns a 43-character base64url verifier.
func GenerateCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
