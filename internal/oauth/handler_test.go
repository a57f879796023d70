package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/crownlabs/academy-idp/internal/audit"
	"github.com/crownlabs/academy-idp/internal/authcode"
	"github.com/crownlabs/academy-idp/internal/client"
	"github.com/crownlabs/academy-idp/internal/config"
	"github.com/crownlabs/academy-idp/internal/database"
	"github.com/crownlabs/academy-idp/internal/jwks"
	"github.com/crownlabs/academy-idp/internal/session"
	"github.com/crownlabs/academy-idp/internal/token"
	"github.com/crownlabs/academy-idp/internal/user"
	"github.com/crownlabs/academy-idp/pkg/pkce"
)

// --- in-memory fakes ---

type memKeyRepo struct {
	mu  sync.Mutex
	key *jwks.SigningKey
}

func (m *memKeyRepo) EnsureSigningKey(_ context.Context) (jwks.SigningKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key == nil {
		key, err := jwks.GenerateSigningKey()
		if err != nil {
			return jwks.SigningKey{}, err
		}
		m.key = &key
	}
	return *m.key, nil
}

func (m *memKeyRepo) FindActive(ctx context.Context) (jwks.SigningKey, error) {
	m.mu.Lock()
	key := m.key
	m.mu.Unlock()
	if key == nil {
		return jwks.SigningKey{}, database.ErrNotFound
	}
	return *key, nil
}

func (m *memKeyRepo) FindByKID(_ context.Context, kid string) (jwks.SigningKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key == nil || m.key.KID != kid {
		return jwks.SigningKey{}, database.ErrNotFound
	}
	return *m.key, nil
}

type memCodeRepo struct {
	mu    sync.Mutex
	codes map[string]authcode.AuthorizationCode
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{codes: map[string]authcode.AuthorizationCode{}}
}

func (m *memCodeRepo) Issue(_ context.Context, params authcode.IssueParams) (authcode.AuthorizationCode, error) {
	now := time.Now()
	rec := authcode.AuthorizationCode{
		Code:                uuid.NewString(),
		ClientID:            params.ClientID,
		RedirectURI:         params.RedirectURI,
		UserID:              params.UserID,
		Scope:               params.Scope,
		State:               params.State,
		CodeChallenge:       params.CodeChallenge,
		CodeChallengeMethod: params.CodeChallengeMethod,
		CreatedAt:           now,
		ExpiresAt:           now.Add(authcode.Lifetime),
	}
	m.mu.Lock()
	m.codes[rec.Code] = rec
	m.mu.Unlock()
	return rec, nil
}

func (m *memCodeRepo) Consume(_ context.Context, code string) (authcode.AuthorizationCode, error) {
	m.mu.Lock()
	rec, ok := m.codes[code]
	delete(m.codes, code)
	m.mu.Unlock()
	if !ok || rec.Expired(time.Now()) {
		return authcode.AuthorizationCode{}, database.ErrNotFound
	}
	return rec, nil
}

type memClientRepo struct {
	clients map[string]client.Client
}

func (m *memClientRepo) UpsertClient(_ context.Context, c client.Client) (client.Client, error) {
	m.clients[c.ClientID] = c
	return c, nil
}

func (m *memClientRepo) FindClientByID(_ context.Context, clientID string) (client.Client, error) {
	c, ok := m.clients[clientID]
	if !ok {
		return client.Client{}, database.ErrNotFound
	}
	return c, nil
}

type memUserRepo struct {
	users map[string]user.Profile
}

func (m *memUserRepo) FindUserByID(_ context.Context, userID string) (user.Profile, error) {
	p, ok := m.users[userID]
	if !ok {
		return user.Profile{}, database.ErrNotFound
	}
	p.Password = ""
	return p, nil
}

func (m *memUserRepo) FindUserByUsername(_ context.Context, username string) (user.Profile, error) {
	for _, p := range m.users {
		if p.Username == username || p.Email == username {
			return p, nil
		}
	}
	return user.Profile{}, database.ErrNotFound
}

// --- harness ---

const (
	testClientID     = "web-app"
	testClientSecret = "s3cret+chars"
	testRedirectURI  = "https://app.example.com/callback"
	testIssuer       = "https://idp.example.com"
	testFrontend     = "http://frontend.example.com"
)

type testEnv struct {
	mux      *http.ServeMux
	codes    *memCodeRepo
	sessions *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	users := &memUserRepo{users: map[string]user.Profile{
		"user-1": {
			ID:            "user-1",
			Username:      "ada",
			Email:         "ada@example.com",
			Password:      string(hash),
			FirstName:     "Ada",
			LastName:      "Lovelace",
			EmailVerified: true,
			Role:          "student",
		},
	}}

	clients := &memClientRepo{clients: map[string]client.Client{
		testClientID: {
			ClientID:     testClientID,
			ClientSecret: testClientSecret,
			RedirectURIs: []string{testRedirectURI},
			GrantTypes:   []string{"authorization_code"},
		},
	}}

	cfg := &config.AppConfig{
		Issuer:      testIssuer,
		FrontendURL: testFrontend,
		JWTSecret:   "session-secret",
	}

	jwtSvc := jwks.NewJWTService(&memKeyRepo{})
	codes := newMemCodeRepo()
	clientSvc := client.NewClientService(clients, config.BootstrapClient{})
	sessions := session.NewManager(cfg.JWTSecret)
	auditor := audit.NewPublisher(nil, "")

	svc := NewOAuthService(clientSvc, codes, users, token.NewIssuer(jwtSvc), jwtSvc, auditor)
	handler := NewOAuthHandler(cfg, svc, clientSvc, sessions)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /oauth/authorize", handler.AuthorizeHandler)
	mux.HandleFunc("POST /oauth/token", handler.TokenHandler)
	mux.HandleFunc("GET /oauth/userinfo", handler.UserinfoHandler)
	mux.HandleFunc("POST /auth/login", handler.LoginHandler)

	return &testEnv{mux: mux, codes: codes, sessions: sessions}
}

func (e *testEnv) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	err := e.sessions.IssueCookie(rec, user.Profile{ID: "user-1", Username: "ada", Role: "student"})
	if err != nil {
		t.Fatalf("IssueCookie: %v", err)
	}
	return rec.Result().Cookies()[0]
}

func (e *testEnv) authorize(t *testing.T, scope, challenge, method string) (code, state string) {
	t.Helper()
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {testClientID},
		"redirect_uri":  {testRedirectURI},
		"scope":         {scope},
		"state":         {"xyz"},
	}
	if challenge != "" {
		q.Set("code_challenge", challenge)
		q.Set("code_challenge_method", method)
	}
	r := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+q.Encode(), nil)
	r.AddCookie(e.sessionCookie(t))
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, r)

	if w.Code != http.StatusFound {
		t.Fatalf("authorize status = %d, body %q", w.Code, w.Body.String())
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if got := loc.Scheme + "://" + loc.Host + loc.Path; got != testRedirectURI {
		t.Fatalf("redirect target = %q, want %q", got, testRedirectURI)
	}
	return loc.Query().Get("code"), loc.Query().Get("state")
}

func (e *testEnv) exchange(t *testing.T, form url.Values, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, vs := range header {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, r)

	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func tokenForm(code, verifier string) url.Values {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testRedirectURI},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
	}
	if verifier != "" {
		form.Set("code_verifier", verifier)
	}
	return form
}

// --- tests ---

func TestAuthorizationCodeFlowEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	verifier, err := pkce.GenerateCodeVerifier()
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	challenge, err := pkce.EncodeCodeVerifier("S256", verifier)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}

	code, state := env.authorize(t, "openid profile email", challenge, "S256")
	if code == "" {
		t.Fatal("no code in redirect")
	}
	if state != "xyz" {
		t.Errorf("state = %q, want xyz", state)
	}

	w, body := env.exchange(t, tokenForm(code, verifier), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("token status = %d, body %v", w.Code, body)
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Error("token response must be no-store")
	}
	if body["token_type"] != "Bearer" || body["expires_in"] != float64(3600) {
		t.Errorf("token envelope: %v", body)
	}
	accessToken, _ := body["access_token"].(string)
	idToken, _ := body["id_token"].(string)
	if accessToken == "" || idToken == "" {
		t.Fatal("missing tokens")
	}
	if _, ok := body["refresh_token"]; ok {
		t.Error("refresh_token issued without offline_access")
	}

	// both JWTs carry a kid header naming the published key
	var header map[string]any
	rawHeader, err := base64.RawURLEncoding.DecodeString(strings.Split(idToken, ".")[0])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	json.Unmarshal(rawHeader, &header)
	if header["alg"] != "RS256" || header["kid"] == nil {
		t.Errorf("id_token header: %v", header)
	}

	var claims map[string]any
	rawClaims, err := base64.RawURLEncoding.DecodeString(strings.Split(idToken, ".")[1])
	if err != nil {
		t.Fatalf("decode claims: %v", err)
	}
	json.Unmarshal(rawClaims, &claims)
	if claims["iss"] != testIssuer || claims["aud"] != testClientID || claims["sub"] != "user-1" {
		t.Errorf("id_token claims: %v", claims)
	}
	if claims["email"] != "ada@example.com" || claims["name"] != "Ada Lovelace" {
		t.Errorf("scoped claims: %v", claims)
	}

	// userinfo with the access token
	r := httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil)
	r.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("userinfo status = %d, body %q", rec.Code, rec.Body.String())
	}
	var info map[string]any
	json.Unmarshal(rec.Body.Bytes(), &info)
	if info["sub"] != "user-1" || info["email"] != "ada@example.com" {
		t.Errorf("userinfo: %v", info)
	}
}

func TestAuthorizeRedirectsToLoginWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	target := "/oauth/authorize?response_type=code&client_id=" + testClientID +
		"&redirect_uri=" + url.QueryEscape(testRedirectURI) + "&scope=openid"
	r := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d", w.Code)
	}
	loc := w.Header().Get("Location")
	if !strings.HasPrefix(loc, testFrontend+"/auth/login?returnTo=") {
		t.Fatalf("location = %q", loc)
	}
	parsed, _ := url.Parse(loc)
	if returnTo := parsed.Query().Get("returnTo"); returnTo != target {
		t.Errorf("returnTo = %q, want %q", returnTo, target)
	}
}

func TestAuthorizeRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		query    url.Values
		wantBody string
	}{
		{
			"wrong response_type",
			url.Values{"response_type": {"token"}, "client_id": {testClientID}, "redirect_uri": {testRedirectURI}},
			"unsupported_response_type",
		},
		{
			"missing client_id",
			url.Values{"response_type": {"code"}, "redirect_uri": {testRedirectURI}},
			"invalid_request",
		},
		{
			"unknown client",
			url.Values{"response_type": {"code"}, "client_id": {"ghost"}, "redirect_uri": {testRedirectURI}},
			"invalid_client",
		},
		{
			"unregistered redirect",
			url.Values{"response_type": {"code"}, "client_id": {testClientID}, "redirect_uri": {"https://evil.example.com/cb"}},
			"invalid_client",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+tt.query.Encode(), nil)
			r.AddCookie(env.sessionCookie(t))
			w := httptest.NewRecorder()
			env.mux.ServeHTTP(w, r)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if got := w.Body.String(); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestTokenCodeSingleUse(t *testing.T) {
	env := newTestEnv(t)
	code, _ := env.authorize(t, "openid", "", "")

	w, _ := env.exchange(t, tokenForm(code, ""), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("first exchange status = %d", w.Code)
	}

	w, body := env.exchange(t, tokenForm(code, ""), nil)
	if w.Code != http.StatusBadRequest || body["error"] != "invalid_grant" {
		t.Errorf("second exchange: status %d, body %v", w.Code, body)
	}
}

func TestTokenCodeSingleUseConcurrent(t *testing.T) {
	env := newTestEnv(t)
	code, _ := env.authorize(t, "openid", "", "")

	const n = 16
	results := make(chan int, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, _ := env.exchange(t, tokenForm(code, ""), nil)
			results <- w.Code
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for status := range results {
		if status == http.StatusOK {
			success++
		}
	}
	if success != 1 {
		t.Errorf("%d exchanges succeeded, want exactly 1", success)
	}
}

func TestTokenBurnsCodeOnBadSecret(t *testing.T) {
	env := newTestEnv(t)
	code, _ := env.authorize(t, "openid", "", "")

	form := tokenForm(code, "")
	form.Set("client_secret", "wrong")
	w, body := env.exchange(t, form, nil)
	if w.Code != http.StatusUnauthorized || body["error"] != "invalid_client" {
		t.Fatalf("bad secret: status %d, body %v", w.Code, body)
	}

	// the failed attempt consumed the code
	w, body = env.exchange(t, tokenForm(code, ""), nil)
	if w.Code != http.StatusBadRequest || body["error"] != "invalid_grant" {
		t.Errorf("retry after burn: status %d, body %v", w.Code, body)
	}
}

func TestTokenRedirectPinning(t *testing.T) {
	env := newTestEnv(t)
	code, _ := env.authorize(t, "openid", "", "")

	form := tokenForm(code, "")
	form.Set("redirect_uri", "https://app.example.com/callback/extra")
	w, body := env.exchange(t, form, nil)
	if w.Code != http.StatusBadRequest || body["error"] != "invalid_grant" {
		t.Errorf("status %d, body %v", w.Code, body)
	}
}

func TestTokenClientPinning(t *testing.T) {
	env := newTestEnv(t)
	code, _ := env.authorize(t, "openid", "", "")

	form := tokenForm(code, "")
	form.Set("client_id", "other-app")
	w, body := env.exchange(t, form, nil)
	if w.Code != http.StatusBadRequest || body["error"] != "invalid_grant" {
		t.Errorf("status %d, body %v", w.Code, body)
	}
}

func TestTokenUnsupportedGrantType(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"whatever"}}
	w, body := env.exchange(t, form, nil)
	if w.Code != http.StatusBadRequest || body["error"] != "unsupported_grant_type" {
		t.Errorf("status %d, body %v", w.Code, body)
	}
}

func TestTokenClientSecretBasic(t *testing.T) {
	env := newTestEnv(t)
	code, _ := env.authorize(t, "openid", "", "")

	form := tokenForm(code, "")
	form.Del("client_id")
	form.Del("client_secret")
	// the secret's "+" must survive the form-urlencode-then-base64 round trip
	creds := url.QueryEscape(testClientID) + ":" + url.QueryEscape(testClientSecret)
	header := http.Header{"Authorization": {"Basic " + base64.StdEncoding.EncodeToString([]byte(creds))}}

	w, body := env.exchange(t, form, header)
	if w.Code != http.StatusOK {
		t.Errorf("status %d, body %v", w.Code, body)
	}
}

func TestTokenPKCE(t *testing.T) {
	env := newTestEnv(t)
	verifier, _ := pkce.GenerateCodeVerifier()
	challenge, _ := pkce.EncodeCodeVerifier("S256", verifier)

	t.Run("missing verifier", func(t *testing.T) {
		code, _ := env.authorize(t, "openid", challenge, "S256")
		w, body := env.exchange(t, tokenForm(code, ""), nil)
		if w.Code != http.StatusBadRequest || body["error"] != "invalid_request" {
			t.Errorf("status %d, body %v", w.Code, body)
		}
	})

	t.Run("wrong verifier", func(t *testing.T) {
		code, _ := env.authorize(t, "openid", challenge, "S256")
		w, body := env.exchange(t, tokenForm(code, verifier+"nope"), nil)
		if w.Code != http.StatusBadRequest || body["error"] != "invalid_grant" {
			t.Errorf("status %d, body %v", w.Code, body)
		}
	})

	t.Run("plain method", func(t *testing.T) {
		code, _ := env.authorize(t, "openid", "plain-challenge", "plain")
		w, _ := env.exchange(t, tokenForm(code, "plain-challenge"), nil)
		if w.Code != http.StatusOK {
			t.Errorf("status %d", w.Code)
		}
	})

	t.Run("lowercase s256 method", func(t *testing.T) {
		code, _ := env.authorize(t, "openid", challenge, "s256")
		w, _ := env.exchange(t, tokenForm(code, verifier), nil)
		if w.Code != http.StatusOK {
			t.Errorf("status %d", w.Code)
		}
	})
}

func TestTokenOfflineAccessIssuesRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	code, _ := env.authorize(t, "openid offline_access", "", "")

	w, body := env.exchange(t, tokenForm(code, ""), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %v", w.Code, body)
	}
	refresh, _ := body["refresh_token"].(string)
	if refresh == "" {
		t.Fatal("missing refresh_token")
	}

	var claims map[string]any
	raw, err := base64.RawURLEncoding.DecodeString(strings.Split(refresh, ".")[1])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	json.Unmarshal(raw, &claims)
	if claims["type"] != "refresh_token" {
		t.Errorf("refresh claims: %v", claims)
	}
	if claims["client_id"] != testClientID {
		t.Errorf("refresh client_id = %v", claims["client_id"])
	}
}

func TestTokenScopelessGrantIssuesIDToken(t *testing.T) {
	env := newTestEnv(t)
	code, _ := env.authorize(t, "", "", "")

	w, body := env.exchange(t, tokenForm(code, ""), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %v", w.Code, body)
	}
	if body["scope"] != "openid" {
		t.Errorf("scope = %v, want openid fallback", body["scope"])
	}
	idToken, _ := body["id_token"].(string)
	if idToken == "" {
		t.Fatal("no id_token in scope-less grant")
	}

	var claims map[string]any
	raw, err := base64.RawURLEncoding.DecodeString(strings.Split(idToken, ".")[1])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	json.Unmarshal(raw, &claims)
	if claims["sub"] != "user-1" {
		t.Errorf("sub = %v", claims["sub"])
	}
	if _, ok := claims["email"]; ok {
		t.Error("email claim present without its scope")
	}
}

func TestUserinfoScopeGating(t *testing.T) {
	env := newTestEnv(t)
	code, _ := env.authorize(t, "openid", "", "")
	w, body := env.exchange(t, tokenForm(code, ""), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}

	r := httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil)
	r.Header.Set("Authorization", "Bearer "+body["access_token"].(string))
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, r)

	var info map[string]any
	json.Unmarshal(rec.Body.Bytes(), &info)
	if info["sub"] != "user-1" {
		t.Errorf("sub = %v", info["sub"])
	}
	for _, claim := range []string{"email", "name", "preferred_username"} {
		if _, ok := info[claim]; ok {
			t.Errorf("claim %q leaked without its scope", claim)
		}
	}
}

func TestUserinfoRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		auth string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil)
			if tt.auth != "" {
				r.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			env.mux.ServeHTTP(w, r)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
			if w.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate challenge")
			}
		})
	}
}

func TestLoginSetsSessionAndEnablesAuthorize(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(LoginRequest{Username: "ada", Password: "hunter2", ReturnTo: "/oauth/authorize?x=1"})
	r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %q", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["returnTo"] != "/oauth/authorize?x=1" {
		t.Errorf("returnTo = %v", resp["returnTo"])
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != session.CookieName {
		t.Fatalf("cookies = %v", cookies)
	}

	// the fresh cookie satisfies the authorization endpoint
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {testClientID},
		"redirect_uri":  {testRedirectURI},
		"scope":         {"openid"},
	}
	ar := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+q.Encode(), nil)
	ar.AddCookie(cookies[0])
	aw := httptest.NewRecorder()
	env.mux.ServeHTTP(aw, ar)
	if aw.Code != http.StatusFound {
		t.Fatalf("authorize after login: %d", aw.Code)
	}
	if !strings.HasPrefix(aw.Header().Get("Location"), testRedirectURI) {
		t.Errorf("location = %q", aw.Header().Get("Location"))
	}
}

func TestLoginBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body LoginRequest
	}{
		{"wrong password", LoginRequest{Username: "ada", Password: "wrong"}},
		{"unknown user", LoginRequest{Username: "ghost", Password: "hunter2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := json.Marshal(tt.body)
			r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(string(raw)))
			w := httptest.NewRecorder()
			env.mux.ServeHTTP(w, r)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
			if len(w.Result().Cookies()) != 0 {
				t.Error("cookie set on failed login")
			}
		})
	}
}

func TestLoginByEmail(t *testing.T) {
	env := newTestEnv(t)

	raw, _ := json.Marshal(LoginRequest{Username: "ada@example.com", Password: "hunter2"})
	r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(string(raw)))
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, body %q", w.Code, w.Body.String())
	}
}
