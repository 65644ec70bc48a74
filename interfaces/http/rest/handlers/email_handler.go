package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/infrastructure/upstream"
	"github.com/BenjaminAGH/NocturneScope/pkg/auth"
	"github.com/BenjaminAGH/NocturneScope/pkg/common"
	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

// EmailHandler lets users verify an alert address before wiring it into a
// topology.
type EmailHandler struct {
	client     *upstream.Client
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewEmailHandler creates an email handler.
func NewEmailHandler(client *upstream.Client, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{client: client, errHandler: errHandler, logger: logger}
}

type testEmailRequest struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"max=256"`
	Body    string `json:"body" validate:"max=4096"`
}

// SendTest relays a test email through the upstream.
func (h *EmailHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	session, err := auth.GetSessionFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	var req testEmailRequest
	if err := common.ParseJSONBody(r, &req, maxAuthBodyBytes); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError("invalid request body"))
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		h.errHandler.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	if req.Subject == "" {
		req.Subject = "NocturneScope test email"
	}
	if req.Body == "" {
		req.Body = "This is a test message from your NocturneScope console."
	}

	if err := h.client.SendTestEmail(r.Context(), session.AccessToken, req.To, req.Subject, req.Body); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	h.logger.Info("test email relayed", zap.String("to", req.To))
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
