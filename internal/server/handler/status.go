package handler

import (
	"net/http"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/scan"
)

// Scanner is the scan loop as seen by the API.
type Scanner interface {
	Status() scan.Status
	Cycles() []domain.Cycle
}

// StatusInfo is the static part of the status response.
type StatusInfo struct {
	Mode    string            `json:"mode"`
	Anchor  domain.Currency   `json:"anchor"`
	Origin  domain.SourceID   `json:"origin"`
	Sources []domain.SourceID `json:"sources"`
	Fee     float64           `json:"transaction_fee"`
}

// StatusHandler serves the scanner status.
type StatusHandler struct {
	info    StatusInfo
	scanner Scanner
}

func NewStatusHandler(info StatusInfo, scanner Scanner) *StatusHandler {
	return &StatusHandler{info: info, scanner: scanner}
}

// GetStatus responds with the configuration summary and live scanner state.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		StatusInfo
		Scanner scan.Status `json:"scanner"`
	}{h.info, h.scanner.Status()})
}

// ListCycles returns the precomputed anchored cycles.
// GET /api/cycles?limit=&offset=
func (h *StatusHandler) ListCycles(w http.ResponseWriter, r *http.Request) {
	cycles := h.scanner.Cycles()
	limit := queryInt(r, "limit", 50, 1000)
	offset := min(queryInt(r, "offset", 0, 0), len(cycles))
	end := min(offset+limit, len(cycles))

	type item struct {
		Path       string            `json:"path"`
		Currencies []domain.Currency `json:"currencies"`
	}
	items := make([]item, 0, end-offset)
	for _, c := range cycles[offset:end] {
		items = append(items, item{Path: c.String(), Currencies: c})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":  len(cycles),
		"offset": offset,
		"cycles": items,
	})
}
