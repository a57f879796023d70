package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crownlabs/academy-idp/internal/user"
)

// CookieName is the browser session cookie checked by the authorization
// endpoint.
const CookieName = "jwt"

const sessionLifetime = 24 * time.Hour

var ErrNoSession = errors.New("no valid session")

// Manager issues and verifies the HS256 browser-session cookie. The session
// token is separate from the RS256 protocol tokens: it never leaves the
// browser and is only meaningful to this service.
type Manager struct {
	secret []byte
}

func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// IssueCookie sets the session cookie for a freshly authenticated user.
func (m *Manager) IssueCookie(w http.ResponseWriter, profile user.Profile) error {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      profile.ID,
		"username": profile.Username,
		"role":     profile.Role,
		"iat":      now.Unix(),
		"exp":      now.Add(sessionLifetime).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(sessionLifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// UserIDFromRequest verifies the session cookie and returns the subject, or
// ErrNoSession when the cookie is missing, expired or forged.
func (m *Manager) UserIDFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoSession
	}

	token, err := jwt.Parse(cookie.Value, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", ErrNoSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrNoSession
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrNoSession
	}
	return sub, nil
}
