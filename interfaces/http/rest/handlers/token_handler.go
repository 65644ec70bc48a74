package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/infrastructure/upstream"
	"github.com/BenjaminAGH/NocturneScope/pkg/auth"
	"github.com/BenjaminAGH/NocturneScope/pkg/common"
	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

// TokenHandler manages device ingestion API tokens.
type TokenHandler struct {
	client     *upstream.Client
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewTokenHandler creates a token handler.
func NewTokenHandler(client *upstream.Client, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{client: client, errHandler: errHandler, logger: logger}
}

type createTokenRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

// List returns the caller's token metadata. Secrets are never included.
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	session, err := auth.GetSessionFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	tokens, err := h.client.ListAPITokens(r.Context(), session.AccessToken)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"tokens": tokens})
}

// Create mints a token and returns its secret exactly once.
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, err := auth.GetSessionFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	var req createTokenRequest
	if err := common.ParseJSONBody(r, &req, maxAuthBodyBytes); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	secret, err := h.client.CreateAPIToken(r.Context(), session.AccessToken, req.Name)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	h.logger.Info("api token created", zap.String("name", req.Name))
	common.RespondJSON(w, http.StatusCreated, map[string]string{"token": secret})
}

// Delete revokes a token.
func (h *TokenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, err := auth.GetSessionFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	id := chi.URLParam(r, "tokenID")
	if err := h.client.DeleteAPIToken(r.Context(), session.AccessToken, id); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}
