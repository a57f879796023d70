package client

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/crownlabs/academy-idp/pkg/logger"
	"github.com/crownlabs/academy-idp/pkg/mlog"
)

type ClientHandler struct {
	service  IClientService
	validate *validator.Validate
}

func NewClientHandler(service IClientService) *ClientHandler {
	return &ClientHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterHandler handles POST /clients: insert-or-replace a client
// registration keyed by clientId.
func (h *ClientHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	rwl := mlog.NewResponseWithLogger(w, r, "register_client", logger.MaskingRule{
		Field: "body.clientSecret", Type: logger.MaskingTypeFull,
	})

	var req Client
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rwl.ResponseJsonError(http.StatusBadRequest, map[string]any{
			"error":             "invalid_request",
			"error_description": "malformed JSON body",
		}, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		rwl.ResponseJsonError(http.StatusBadRequest, map[string]any{
			"error":             "invalid_request",
			"error_description": err.Error(),
		}, err)
		return
	}

	stored, err := h.service.RegisterClient(r.Context(), req)
	if err != nil {
		rwl.ResponseJsonError(http.StatusInternalServerError, map[string]any{
			"error": "server_error",
		}, err)
		return
	}

	stored.ClientSecret = ""
	rwl.ResponseJson(http.StatusOK, stored)
}

// GetHandler handles GET /clients/{clientId}. The secret never leaves the
// store.
func (h *ClientHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	rwl := mlog.NewResponseWithLogger(w, r, "get_client")

	clientID := r.PathValue("clientId")
	cl, source, err := h.service.GetClient(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, ErrUnknownClient) {
			rwl.ResponseJsonError(http.StatusNotFound, map[string]any{
				"error": "not_found",
			}, err)
			return
		}
		rwl.ResponseJsonError(http.StatusInternalServerError, map[string]any{
			"error": "server_error",
		}, err)
		return
	}

	cl.ClientSecret = ""
	rwl.ResponseJson(http.StatusOK, map[string]any{
		"client": cl,
		"source": source,
	})
}
