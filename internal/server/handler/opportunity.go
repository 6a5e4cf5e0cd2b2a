package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// LatestReport yields the most recent tick record.
type LatestReport interface {
	Get() (domain.Report, bool)
}

// OpportunityHandler serves the latest report and, with a store, history.
type OpportunityHandler struct {
	latest LatestReport
	store  domain.OpportunityStore
	logger *slog.Logger
}

// NewOpportunityHandler creates the handler. store may be nil when
// persistence is disabled.
func NewOpportunityHandler(latest LatestReport, store domain.OpportunityStore, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		latest: latest,
		store:  store,
		logger: logger.With(slog.String("handler", "opportunity")),
	}
}

// GetLatest returns the report of the last scan tick, or 404 before the
// first tick.
// GET /api/opportunity/latest
func (h *OpportunityHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.latest.Get()
	if !ok {
		writeError(w, http.StatusNotFound, "no scan has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// List returns stored reports newest first.
// GET /api/opportunities?limit=&offset=&found=
func (h *OpportunityHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "report storage is disabled")
		return
	}
	reports, err := h.store.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.Error("list reports failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if reports == nil {
		reports = []domain.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// Get returns one stored report.
// GET /api/opportunities/{id}
func (h *OpportunityHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "report storage is disabled")
		return
	}
	rep, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		h.logger.Error("get report failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get report")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
