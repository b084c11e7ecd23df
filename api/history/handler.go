// Package history exposes recorded battery snapshots over HTTP.
package history

import (
	"net/http"
	"strconv"

	"github.com/kilianp07/essim/core/model"
	store "github.com/kilianp07/essim/infra/history"
	"github.com/kilianp07/essim/pkg/export"
)

// Path is where NewHandler is usually mounted.
const Path = "/api/history"

// NewHandler returns an HTTP handler answering GET requests with the
// snapshots matching the site_id, battery_id, phase, from and to query
// parameters, as JSON or as CSV when format=csv.
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty.
func NewHandler(s store.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		params := r.URL.Query()
		q := store.Query{
			SiteID:    params.Get("site_id"),
			BatteryID: params.Get("battery_id"),
			Phase:     model.Phase(params.Get("phase")),
		}
		var err error
		if q.FromTick, err = intParam(params.Get("from")); err != nil {
			http.Error(w, "from: "+err.Error(), http.StatusBadRequest)
			return
		}
		if q.ToTick, err = intParam(params.Get("to")); err != nil {
			http.Error(w, "to: "+err.Error(), http.StatusBadRequest)
			return
		}
		format := params.Get("format")
		if format != "" && format != "json" && format != "csv" {
			http.Error(w, "unsupported format", http.StatusBadRequest)
			return
		}

		snaps, err := s.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if format == "csv" {
			w.Header().Set("Content-Type", "text/csv")
		} else {
			w.Header().Set("Content-Type", "application/json")
		}
		if err := export.Write(w, format, snaps); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
