// Package handler holds the JSON handlers of the scanner's HTTP API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// writeJSON marshals v and writes it with status. A marshal failure becomes
// a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryInt reads a non-negative integer query parameter, falling back to def
// and clamping to ceil when ceil > 0.
func queryInt(r *http.Request, name string, def, ceil int) int {
	n := def
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			n = parsed
		}
	}
	if ceil > 0 && n > ceil {
		n = ceil
	}
	return n
}

// parseListOpts extracts pagination and filters. Defaults: limit=50 (max
// 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	opts := domain.ListOpts{
		Limit:  queryInt(r, "limit", 50, 500),
		Offset: queryInt(r, "offset", 0, 0),
	}
	if opts.Limit == 0 {
		opts.Limit = 50
	}
	if found, err := strconv.ParseBool(r.URL.Query().Get("found")); err == nil {
		opts.FoundOnly = found
	}
	return opts
}
