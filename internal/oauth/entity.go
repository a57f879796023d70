package oauth

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
)

// AuthorizeRequest is the query surface of GET /oauth/authorize.
type AuthorizeRequest struct {
	ResponseType        string `json:"responseType" validate:"required"`
	ClientID            string `json:"clientId" validate:"required"`
	RedirectURI         string `json:"redirectUri" validate:"required,uri"`
	Scope               string `json:"scope"`
	State               string `json:"state"`
	CodeChallenge       string `json:"codeChallenge"`
	CodeChallengeMethod string `json:"codeChallengeMethod"`
}

func ParseAuthorizeRequest(r *http.Request) AuthorizeRequest {
	q := r.URL.Query()
	return AuthorizeRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}
}

// TokenRequest is the form surface of POST /oauth/token. Client credentials
// may arrive in the form body (client_secret_post) or in a Basic
// Authorization header (client_secret_basic); the header wins.
type TokenRequest struct {
	GrantType    string `json:"grantType"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirectUri"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	CodeVerifier string `json:"codeVerifier"`
}

func ParseTokenRequest(r *http.Request) (TokenRequest, error) {
	if err := r.ParseForm(); err != nil {
		return TokenRequest{}, err
	}

	req := TokenRequest{
		GrantType:    r.PostFormValue("grant_type"),
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		ClientID:     r.PostFormValue("client_id"),
		ClientSecret: r.PostFormValue("client_secret"),
		CodeVerifier: r.PostFormValue("code_verifier"),
	}

	if id, secret, ok := basicClientCredentials(r); ok {
		req.ClientID = id
		req.ClientSecret = secret
	}

	return req, nil
}

// basicClientCredentials decodes a client_secret_basic header. RFC 6749
// requires the id and secret to be form-urlencoded before base64, so both
// halves are percent-decoded here.
func basicClientCredentials(r *http.Request) (string, string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return "", "", false
	}
	id, secret, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", false
	}
	decodedID, err := url.QueryUnescape(id)
	if err != nil {
		return "", "", false
	}
	decodedSecret, err := url.QueryUnescape(secret)
	if err != nil {
		return "", "", false
	}
	return decodedID, decodedSecret, true
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	ReturnTo string `json:"returnTo"`
}

// ErrorResponse is the RFC 6749 JSON error envelope.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// BuildRedirect appends params to base, preserving any query the base
// already carries. Empty values are skipped.
func BuildRedirect(base string, params map[string]string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
