package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crownlabs/academy-idp/internal/user"
)

func issueAndExtract(t *testing.T, m *Manager, profile user.Profile) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := m.IssueCookie(rec, profile); err != nil {
		t.Fatalf("IssueCookie: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	return cookies[0]
}

func TestSessionRoundTrip(t *testing.T) {
	m := NewManager("test-secret")
	cookie := issueAndExtract(t, m, user.Profile{ID: "user-1", Username: "ada", Role: "student"})

	if cookie.Name != CookieName {
		t.Errorf("cookie name = %q, want %q", cookie.Name, CookieName)
	}
	if !cookie.HttpOnly {
		t.Error("cookie must be HttpOnly")
	}

	r := httptest.NewRequest(http.MethodGet, "/oauth/authorize", nil)
	r.AddCookie(cookie)

	sub, err := m.UserIDFromRequest(r)
	if err != nil {
		t.Fatalf("UserIDFromRequest: %v", err)
	}
	if sub != "user-1" {
		t.Errorf("sub = %q, want user-1", sub)
	}
}

func TestSessionMissingCookie(t *testing.T) {
	m := NewManager("test-secret")
	r := httptest.NewRequest(http.MethodGet, "/oauth/authorize", nil)

	if _, err := m.UserIDFromRequest(r); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestSessionWrongSecret(t *testing.T) {
	cookie := issueAndExtract(t, NewManager("secret-a"), user.Profile{ID: "user-1"})

	r := httptest.NewRequest(http.MethodGet, "/oauth/authorize", nil)
	r.AddCookie(cookie)

	if _, err := NewManager("secret-b").UserIDFromRequest(r); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestSessionExpired(t *testing.T) {
	secret := "test-secret"
	past := time.Now().Add(-time.Hour)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": past.Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/oauth/authorize", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: signed})

	if _, err := NewManager(secret).UserIDFromRequest(r); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestSessionRejectsUnsignedToken(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/oauth/authorize", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: signed})

	if _, err := NewManager("test-secret").UserIDFromRequest(r); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}
