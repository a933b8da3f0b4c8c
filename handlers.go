package main

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/jdasdash/internal/catalog"
	"github.com/example/jdasdash/internal/dashboard"
)

// listParams reads the shared top and orderby query parameters. A missing or
// malformed top falls back to the configured default.
func listParams(r *http.Request) (int, string) {
	q := r.URL.Query()
	top, err := strconv.Atoi(q.Get("top"))
	if err != nil {
		top = 0
	}
	return top, q.Get("orderby")
}

func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	slog.Warn("request failed", "request_id", RequestID(r.Context()), "path", r.URL.Path, "error", err)
	writeFailure(w, err)
}

func (a *App) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.Dashboard.Ready(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"ready":   false,
			"missing": a.Config.MissingDataverseSettings(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ready": true})
}

func (a *App) HandleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		OK     bool                  `json:"ok"`
		Tables []dashboard.TableInfo `json:"tables"`
	}{true, a.Dashboard.ListTables()})
}

func (a *App) HandleTable(w http.ResponseWriter, r *http.Request) {
	top, orderBy := listParams(r)
	t, err := a.Dashboard.FetchNormalizedTable(r.Context(), mux.Vars(r)["key"], top, orderBy)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		dashboard.NormalizedTable
	}{true, t})
}

// HandleRawTable never takes a filter from the request; only the table's
// configured filter applies.
func (a *App) HandleRawTable(w http.ResponseWriter, r *http.Request) {
	top, orderBy := listParams(r)
	t, err := a.Dashboard.FetchRawTable(r.Context(), mux.Vars(r)["key"], top, orderBy, "")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		dashboard.RawTable
	}{true, t})
}

func (a *App) HandleIndustryUpdates(w http.ResponseWriter, r *http.Request) {
	top, orderBy := listParams(r)
	u, err := a.Dashboard.FetchIndustryUpdates(r.Context(), top, orderBy)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		dashboard.Updates
	}{true, u})
}

func (a *App) HandleListIndustries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		OK         bool                         `json:"ok"`
		Industries []catalog.IndustryDescriptor `json:"industries"`
	}{true, a.Dashboard.Registry().Industries})
}

func (a *App) HandleIndustry(w http.ResponseWriter, r *http.Request) {
	top, orderBy := listParams(r)
	b, err := a.Dashboard.FetchSingleIndustry(r.Context(), mux.Vars(r)["key"], top, orderBy)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		dashboard.IndustryBlock
	}{true, b})
}

func (a *App) HandleDescribe(w http.ResponseWriter, r *http.Request) {
	d, err := a.Dashboard.DescribeResource(r.Context(), mux.Vars(r)["logicalName"])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		dashboard.Description
	}{true, d})
}
