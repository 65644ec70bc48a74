package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/application/dashboard"
	"github.com/BenjaminAGH/NocturneScope/pkg/auth"
	"github.com/BenjaminAGH/NocturneScope/pkg/common"
	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

// DashboardHandler serves device lists, live snapshots and metric history.
type DashboardHandler struct {
	service    *dashboard.Service
	errHandler *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(service *dashboard.Service, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{service: service, errHandler: errHandler, logger: logger}
}

// ListDevices returns the device names available to the caller.
func (h *DashboardHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	session, err := auth.GetSessionFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	devices, err := h.service.Devices(r.Context(), session.AccessToken)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

// Overview returns the latest snapshot per device.
func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	session, err := auth.GetSessionFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	rows, err := h.service.Overview(r.Context(), session.AccessToken)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"devices": rows})
}

// TimeSeries returns a downsampled metric series. Dimensions come from query
// parameters; anything omitted falls back to the dashboard defaults.
func (h *DashboardHandler) TimeSeries(w http.ResponseWriter, r *http.Request) {
	session, err := auth.GetSessionFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	q := r.URL.Query()
	series, err := h.service.Series(r.Context(), session.AccessToken,
		q.Get("device"), q.Get("field"), q.Get("range"), q.Get("interval"), q.Get("agg"))
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, series)
}

// History returns the raw per-sample rows the log viewer renders.
func (h *DashboardHandler) History(w http.ResponseWriter, r *http.Request) {
	session, err := auth.GetSessionFromContext(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	q := r.URL.Query()
	rows, err := h.service.History(r.Context(), session.AccessToken, q.Get("device"), q.Get("range"))
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"rows": rows})
}
