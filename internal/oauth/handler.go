package oauth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/crownlabs/academy-idp/internal/client"
	"github.com/crownlabs/academy-idp/internal/config"
	"github.com/crownlabs/academy-idp/internal/session"
	"github.com/crownlabs/academy-idp/pkg/logger"
	"github.com/crownlabs/academy-idp/pkg/mlog"
)

var tokenMasks = []logger.MaskingRule{
	{Field: "body.access_token", Type: logger.MaskingTypePartial},
	{Field: "body.id_token", Type: logger.MaskingTypePartial},
	{Field: "body.refresh_token", Type: logger.MaskingTypePartial},
}

type OAuthHandler struct {
	cfg      *config.AppConfig
	service  IOAuthService
	clients  client.IClientService
	sessions *session.Manager
	validate *validator.Validate
}

func NewOAuthHandler(cfg *config.AppConfig, service IOAuthService, clients client.IClientService, sessions *session.Manager) *OAuthHandler {
	return &OAuthHandler{
		cfg:      cfg,
		service:  service,
		clients:  clients,
		sessions: sessions,
		validate: validator.New(),
	}
}

// AuthorizeHandler handles GET /oauth/authorize. Failures before the
// redirect URI is validated answer in plain text: redirecting an error to an
// unvalidated URI would hand the code flow to an attacker.
func (h *OAuthHandler) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	rwl := mlog.NewResponseWithLogger(w, r, "authorize")

	req := ParseAuthorizeRequest(r)
	if req.ResponseType != "code" {
		rwl.ResponseText(http.StatusBadRequest, "unsupported_response_type", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		rwl.ResponseText(http.StatusBadRequest, "invalid_request", err)
		return
	}

	if _, _, err := h.clients.ValidateClient(r.Context(), req.ClientID, req.RedirectURI); err != nil {
		// the reason stays in the log; the wire gets the bare error code
		rwl.ResponseText(http.StatusBadRequest, "invalid_client", err)
		return
	}

	userID, err := h.sessions.UserIDFromRequest(r)
	if err != nil {
		login := h.cfg.FrontendURL + "/auth/login?returnTo=" + url.QueryEscape(r.URL.String())
		rwl.Redirect(login)
		return
	}

	rec, err := h.service.IssueCode(r.Context(), userID, req)
	if err != nil {
		rwl.ResponseText(http.StatusInternalServerError, "server_error", err)
		return
	}

	location, err := BuildRedirect(req.RedirectURI, map[string]string{
		"code":  rec.Code,
		"state": req.State,
	})
	if err != nil {
		rwl.ResponseText(http.StatusBadRequest, "invalid redirect_uri", err)
		return
	}
	rwl.Redirect(location)
}

// TokenHandler handles POST /oauth/token.
func (h *OAuthHandler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	rwl := mlog.NewResponseWithLogger(w, r, "token",
		logger.MaskingRule{Field: "body.client_secret", Type: logger.MaskingTypeFull},
		logger.MaskingRule{Field: "headers.Authorization", Type: logger.MaskingTypeFull},
	)

	req, err := ParseTokenRequest(r)
	if err != nil {
		rwl.ResponseJsonError(http.StatusBadRequest, ErrorResponse{Error: "invalid_request"}, err)
		return
	}

	set, perr := h.service.ExchangeToken(r.Context(), h.cfg.IssuerFor(r), req)
	if perr != nil {
		rwl.ResponseJsonError(perr.Status, ErrorResponse{
			Error:            perr.Code,
			ErrorDescription: perr.Description,
		}, perr)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	rwl.ResponseJson(http.StatusOK, set, tokenMasks...)
}

// UserinfoHandler handles GET /oauth/userinfo with a bearer access token.
func (h *OAuthHandler) UserinfoHandler(w http.ResponseWriter, r *http.Request) {
	rwl := mlog.NewResponseWithLogger(w, r, "userinfo", logger.MaskingRule{
		Field: "headers.Authorization", Type: logger.MaskingTypePartial,
	})

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		w.Header().Set("WWW-Authenticate", "Bearer")
		rwl.ResponseJsonError(http.StatusUnauthorized, ErrorResponse{Error: "invalid_token"}, nil)
		return
	}

	info, perr := h.service.Userinfo(r.Context(), strings.TrimPrefix(auth, "Bearer "))
	if perr != nil {
		if perr.Status == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		}
		rwl.ResponseJsonError(perr.Status, ErrorResponse{
			Error:            perr.Code,
			ErrorDescription: perr.Description,
		}, perr)
		return
	}

	rwl.ResponseJson(http.StatusOK, info, logger.MaskingRule{
		Field: "body.email", Type: logger.MaskingTypeEmail,
	})
}

// LoginHandler handles POST /auth/login: checks credentials, sets the
// browser session cookie and hands returnTo back for the frontend to follow.
func (h *OAuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	rwl := mlog.NewResponseWithLogger(w, r, "login", logger.MaskingRule{
		Field: "body.password", Type: logger.MaskingTypeFull,
	})

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rwl.ResponseJsonError(http.StatusBadRequest, ErrorResponse{Error: "invalid_request"}, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		rwl.ResponseJsonError(http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "username and password are required",
		}, err)
		return
	}

	profile, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			rwl.ResponseJsonError(http.StatusUnauthorized, ErrorResponse{Error: "invalid_credentials"}, err)
			return
		}
		rwl.ResponseJsonError(http.StatusInternalServerError, ErrorResponse{Error: "server_error"}, err)
		return
	}

	if err := h.sessions.IssueCookie(w, profile); err != nil {
		rwl.ResponseJsonError(http.StatusInternalServerError, ErrorResponse{Error: "server_error"}, err)
		return
	}

	rwl.ResponseJson(http.StatusOK, map[string]any{
		"userId":   profile.ID,
		"username": profile.Username,
		"returnTo": req.ReturnTo,
	})
}
