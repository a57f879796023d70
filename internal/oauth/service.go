package oauth

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crownlabs/academy-idp/internal/audit"
	"github.com/crownlabs/academy-idp/internal/authcode"
	"github.com/crownlabs/academy-idp/internal/client"
	"github.com/crownlabs/academy-idp/internal/database"
	"github.com/crownlabs/academy-idp/internal/token"
	"github.com/crownlabs/academy-idp/internal/user"
)

// ProtocolError is an RFC 6749 failure: an error code for the wire and the
// HTTP status to send it with.
type ProtocolError struct {
	Code        string
	Description string
	Status      int
}

func (e *ProtocolError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

func protocolErr(status int, code, description string) *ProtocolError {
	return &ProtocolError{Code: code, Description: description, Status: status}
}

// TokenVerifier verifies bearer tokens; satisfied by the jwks service.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (*jwt.Token, error)
}

var ErrBadCredentials = errors.New("bad credentials")

type IOAuthService interface {
	// IssueCode binds an authorization request to the authenticated user and
	// mints a single-use code.
	IssueCode(ctx context.Context, userID string, req AuthorizeRequest) (authcode.AuthorizationCode, error)
	// ExchangeToken runs the token-endpoint checks in order and mints the
	// token set on success.
	ExchangeToken(ctx context.Context, issuerURL string, req TokenRequest) (token.TokenSet, *ProtocolError)
	// Userinfo resolves a bearer token into the claims its scopes allow.
	Userinfo(ctx context.Context, bearer string) (map[string]any, *ProtocolError)
	// Login checks credentials and returns the profile, or ErrBadCredentials.
	Login(ctx context.Context, username, password string) (user.Profile, error)
}

type OAuthService struct {
	clients  client.IClientService
	codes    authcode.IAuthCodeRepository
	users    user.IUserRepository
	issuer   *token.Issuer
	verifier TokenVerifier
	audit    *audit.Publisher
}

func NewOAuthService(
	clients client.IClientService,
	codes authcode.IAuthCodeRepository,
	users user.IUserRepository,
	issuer *token.Issuer,
	verifier TokenVerifier,
	auditor *audit.Publisher,
) IOAuthService {
	return &OAuthService{
		clients:  clients,
		codes:    codes,
		users:    users,
		issuer:   issuer,
		verifier: verifier,
		audit:    auditor,
	}
}

func (s *OAuthService) IssueCode(ctx context.Context, userID string, req AuthorizeRequest) (authcode.AuthorizationCode, error) {
	rec, err := s.codes.Issue(ctx, authcode.IssueParams{
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		UserID:              userID,
		Scope:               req.Scope,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	})
	if err != nil {
		return authcode.AuthorizationCode{}, err
	}

	s.audit.Emit(ctx, audit.Event{
		Event:       audit.EventAuthorize,
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		UserID:      userID,
		Outcome:     audit.OutcomeGranted,
	})
	return rec, nil
}

func (s *OAuthService) ExchangeToken(ctx context.Context, issuerURL string, req TokenRequest) (token.TokenSet, *ProtocolError) {
	set, perr := s.exchangeToken(ctx, issuerURL, req)
	event := audit.Event{
		Event:    audit.EventTokenGrant,
		ClientID: req.ClientID,
		Outcome:  audit.OutcomeGranted,
	}
	if perr != nil {
		event.Outcome = audit.OutcomeDenied
		event.Reason = perr.Code
	}
	s.audit.Emit(ctx, event)
	return set, perr
}

func (s *OAuthService) exchangeToken(ctx context.Context, issuerURL string, req TokenRequest) (token.TokenSet, *ProtocolError) {
	if req.GrantType != "authorization_code" {
		return token.TokenSet{}, protocolErr(http.StatusBadRequest, "unsupported_grant_type",
			"only authorization_code is supported")
	}

	// consume first: a code presented with bad credentials is burned, it is
	// never retryable
	rec, err := s.codes.Consume(ctx, req.Code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return token.TokenSet{}, protocolErr(http.StatusBadRequest, "invalid_grant",
				"authorization code is invalid or expired")
		}
		return token.TokenSet{}, protocolErr(http.StatusInternalServerError, "server_error", "")
	}

	if req.ClientID == "" || req.ClientID != rec.ClientID {
		return token.TokenSet{}, protocolErr(http.StatusBadRequest, "invalid_grant",
			"code was not issued to this client")
	}
	if req.RedirectURI != rec.RedirectURI {
		return token.TokenSet{}, protocolErr(http.StatusBadRequest, "invalid_grant",
			"redirect_uri does not match the authorization request")
	}

	cl, _, err := s.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, client.ErrUnknownClient) {
			return token.TokenSet{}, protocolErr(http.StatusUnauthorized, "invalid_client", "")
		}
		return token.TokenSet{}, protocolErr(http.StatusInternalServerError, "server_error", "")
	}
	if !cl.SecretMatches(req.ClientSecret) {
		return token.TokenSet{}, protocolErr(http.StatusUnauthorized, "invalid_client", "")
	}

	if err := s.issuer.VerifyPKCE(rec, req.CodeVerifier); err != nil {
		if errors.Is(err, token.ErrPKCERequired) {
			return token.TokenSet{}, protocolErr(http.StatusBadRequest, "invalid_request",
				"code_verifier is required")
		}
		return token.TokenSet{}, protocolErr(http.StatusBadRequest, "invalid_grant",
			"code_verifier does not match")
	}

	profile, err := s.users.FindUserByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return token.TokenSet{}, protocolErr(http.StatusBadRequest, "invalid_grant",
				"subject no longer exists")
		}
		return token.TokenSet{}, protocolErr(http.StatusInternalServerError, "server_error", "")
	}

	set, err := s.issuer.Issue(ctx, issuerURL, profile, rec)
	if err != nil {
		return token.TokenSet{}, protocolErr(http.StatusInternalServerError, "server_error", "")
	}
	return set, nil
}

func (s *OAuthService) Userinfo(ctx context.Context, bearer string) (map[string]any, *ProtocolError) {
	parsed, err := s.verifier.Verify(ctx, bearer)
	if err != nil {
		return nil, protocolErr(http.StatusUnauthorized, "invalid_token", "")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, protocolErr(http.StatusUnauthorized, "invalid_token", "")
	}
	sub, _ := claims["sub"].(string)
	scope, _ := claims["scope"].(string)
	if sub == "" {
		return nil, protocolErr(http.StatusUnauthorized, "invalid_token", "")
	}

	profile, err := s.users.FindUserByID(ctx, sub)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, protocolErr(http.StatusNotFound, "not_found", "subject no longer exists")
		}
		return nil, protocolErr(http.StatusInternalServerError, "server_error", "")
	}

	info := map[string]any{"sub": sub}
	for k, v := range token.IdentityClaims(profile, token.SplitScopes(scope)) {
		info[k] = v
	}
	return info, nil
}

func (s *OAuthService) Login(ctx context.Context, username, password string) (user.Profile, error) {
	profile, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.emitLogin(ctx, "", audit.OutcomeDenied, "unknown user")
			return user.Profile{}, ErrBadCredentials
		}
		return user.Profile{}, err
	}
	if !profile.CheckPassword(password) {
		s.emitLogin(ctx, profile.ID, audit.OutcomeDenied, "bad password")
		return user.Profile{}, ErrBadCredentials
	}

	s.emitLogin(ctx, profile.ID, audit.OutcomeGranted, "")
	profile.Password = ""
	return profile, nil
}

func (s *OAuthService) emitLogin(ctx context.Context, userID, outcome, reason string) {
	s.audit.Emit(ctx, audit.Event{
		Event:   audit.EventLogin,
		UserID:  userID,
		Outcome: outcome,
		Reason:  reason,
	})
}
