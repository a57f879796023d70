package discover

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crownlabs/academy-idp/internal/config"
	"github.com/crownlabs/academy-idp/internal/database"
	"github.com/crownlabs/academy-idp/internal/jwks"
)

type stubKeyRepo struct {
	key *jwks.SigningKey
}

func (s *stubKeyRepo) EnsureSigningKey(context.Context) (jwks.SigningKey, error) {
	return *s.key, nil
}

func (s *stubKeyRepo) FindActive(context.Context) (jwks.SigningKey, error) {
	if s.key == nil {
		return jwks.SigningKey{}, database.ErrNotFound
	}
	return *s.key, nil
}

func (s *stubKeyRepo) FindByKID(_ context.Context, kid string) (jwks.SigningKey, error) {
	if s.key == nil || s.key.KID != kid {
		return jwks.SigningKey{}, database.ErrNotFound
	}
	return *s.key, nil
}

func TestOpenidConfiguration(t *testing.T) {
	cfg := &config.AppConfig{Issuer: "https://idp.example.com"}
	h := NewDiscoverHandler(cfg, jwks.NewJWTService(&stubKeyRepo{}))

	r := httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil)
	w := httptest.NewRecorder()
	h.OpenidConfigurationHandler(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var doc map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["issuer"] != "https://idp.example.com" {
		t.Errorf("issuer = %v", doc["issuer"])
	}
	if doc["authorization_endpoint"] != "https://idp.example.com/oauth/authorize" {
		t.Errorf("authorization_endpoint = %v", doc["authorization_endpoint"])
	}
	if doc["token_endpoint"] != "https://idp.example.com/oauth/token" {
		t.Errorf("token_endpoint = %v", doc["token_endpoint"])
	}
	if doc["jwks_uri"] != "https://idp.example.com/jwks.json" {
		t.Errorf("jwks_uri = %v", doc["jwks_uri"])
	}
}

func TestOpenidConfigurationDerivesIssuerFromRequest(t *testing.T) {
	h := NewDiscoverHandler(&config.AppConfig{}, jwks.NewJWTService(&stubKeyRepo{}))

	r := httptest.NewRequest(http.MethodGet, "http://localhost:3000/.well-known/openid-configuration", nil)
	w := httptest.NewRecorder()
	h.OpenidConfigurationHandler(w, r)

	var doc map[string]any
	json.Unmarshal(w.Body.Bytes(), &doc)
	if doc["issuer"] != "http://localhost:3000" {
		t.Errorf("issuer = %v", doc["issuer"])
	}
}

func TestJwksEmptyBeforeFirstKey(t *testing.T) {
	h := NewDiscoverHandler(&config.AppConfig{}, jwks.NewJWTService(&stubKeyRepo{}))

	r := httptest.NewRequest(http.MethodGet, "/jwks.json", nil)
	w := httptest.NewRecorder()
	h.JwksHandler(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var set struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &set); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if set.Keys == nil {
		t.Error(`body must contain "keys": []`)
	}
}

func TestJwksPublishesActiveKey(t *testing.T) {
	repo := &stubKeyRepo{}
	svc := jwks.NewJWTService(repo)
	key := mustSigningKey(t, svc, repo)

	h := NewDiscoverHandler(&config.AppConfig{}, svc)
	r := httptest.NewRequest(http.MethodGet, "/jwks.json", nil)
	w := httptest.NewRecorder()
	h.JwksHandler(w, r)

	var set jwks.JWKS
	if err := json.Unmarshal(w.Body.Bytes(), &set); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(set.Keys) != 1 || set.Keys[0].Kid != key.KID {
		t.Errorf("keys = %+v, want kid %q", set.Keys, key.KID)
	}
}

func mustSigningKey(t *testing.T, svc *jwks.JWTService, repo *stubKeyRepo) jwks.SigningKey {
	t.Helper()
	key, err := jwks.GenerateSigningKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	repo.key = &key
	if _, err := svc.Sign(context.Background(), jwt.MapClaims{"sub": "x"}); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return key
}
