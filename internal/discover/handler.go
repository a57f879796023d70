package discover

import (
	"net/http"

	"github.com/crownlabs/academy-idp/internal/config"
	"github.com/crownlabs/academy-idp/internal/jwks"
	"github.com/crownlabs/academy-idp/pkg/mlog"
)

// DiscoverHandler serves the unauthenticated metadata surface: the
// openid-configuration document and the JWKS.
type DiscoverHandler struct {
	cfg    *config.AppConfig
	jwtSvc *jwks.JWTService
}

func NewDiscoverHandler(cfg *config.AppConfig, jwtSvc *jwks.JWTService) *DiscoverHandler {
	return &DiscoverHandler{cfg: cfg, jwtSvc: jwtSvc}
}

// OpenidConfigurationHandler handles GET /.well-known/openid-configuration.
// Endpoint URLs track the issuer of the request they are asked through.
func (h *DiscoverHandler) OpenidConfigurationHandler(w http.ResponseWriter, r *http.Request) {
	rwl := mlog.NewResponseWithLogger(w, r, "openid_configuration")
	rwl.ResponseJson(http.StatusOK, h.cfg.Discovery(h.cfg.IssuerFor(r)))
}

// JwksHandler handles GET /jwks.json: the public half of the signing key,
// or an empty set before the first key exists.
func (h *DiscoverHandler) JwksHandler(w http.ResponseWriter, r *http.Request) {
	rwl := mlog.NewResponseWithLogger(w, r, "jwks")

	set, err := h.jwtSvc.GetJWKS(r.Context())
	if err != nil {
		rwl.ResponseJsonError(http.StatusInternalServerError, map[string]any{
			"error": "server_error",
		}, err)
		return
	}
	rwl.ResponseJson(http.StatusOK, set)
}
