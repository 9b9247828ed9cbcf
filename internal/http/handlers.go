package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"materials/internal/analytics"
	"materials/internal/core"
	"materials/internal/export"
	applog "materials/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady reports 503 until the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"database": "ok", "templates": "ok"}
	if err := s.svc.Ping(ctx); err != nil {
		checks["database"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

type indexPage struct {
	page
	Overview core.Overview
	Recent   []core.MaterialRecord
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	ov, err := s.svc.Overview(ctx)
	if err != nil {
		s.serverError(w, r, "Failed to load overview", err)
		return
	}
	recent, err := s.svc.RecentRecords(ctx, recentLimit)
	if err != nil {
		s.serverError(w, r, "Failed to load recent records", err)
		return
	}

	s.render(w, r, http.StatusOK, "index.html", indexPage{
		page:     page{Title: "Home", Active: "home", Flash: s.flash.Pop(w, r)},
		Overview: ov,
		Recent:   recent,
	})
}

type addPage struct {
	page
	Values  map[string]string
	Errors  map[string]string
	Options core.FilterOptions
}

func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	values := map[string]string{core.FieldDateUsed: s.now().Format(core.DateLayout)}
	s.renderAddForm(w, r, http.StatusOK, values, nil)
}

func (s *Server) renderAddForm(w http.ResponseWriter, r *http.Request, status int, values, errs map[string]string) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	opts, err := s.svc.FilterOptions(ctx)
	if err != nil {
		// The form still works without suggestions.
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to load form suggestions", applog.FieldError, err)
	}
	s.render(w, r, status, "add.html", addPage{
		page:    page{Title: "Add Material", Active: "add"},
		Values:  values,
		Errors:  errs,
		Options: opts,
	})
}

func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Malformed form body",
			applog.FieldError, err, applog.FieldErrorType, applog.ErrorTypeValidation)
		s.renderError(w, r, http.StatusBadRequest, "The form submission could not be read.")
		return
	}

	rec, values, parseErrs := parseRecordForm(r.PostForm)
	if len(parseErrs) > 0 {
		s.renderAddForm(w, r, http.StatusUnprocessableEntity, values, fieldMessages(mergeValidation(rec, parseErrs)))
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	saved, err := s.svc.CreateRecord(ctx, rec)
	var verrs core.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		s.renderAddForm(w, r, http.StatusUnprocessableEntity, values, fieldMessages(verrs))
		return
	case err != nil:
		s.serverError(w, r, "Failed to create material record", err)
		return
	}

	s.flash.Set(w, fmt.Sprintf("Material record added. Total cost: %s", saved.TotalCost))
	http.Redirect(w, r, "/records", http.StatusSeeOther)
}

type recordsPage struct {
	page
	Records    []core.MaterialRecord
	Count      int
	Total      core.Money
	Filter     filterValues
	Query      string
	Warnings   []string
	Options    core.FilterOptions
	SortFields []core.SortField
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	f, fv, warnings := parseFilter(r.URL.Query())

	ctx, cancel := withTimeout(r)
	defer cancel()

	records, err := s.svc.ListRecords(ctx, f)
	if err != nil {
		s.serverError(w, r, "Failed to list material records", err)
		return
	}
	opts, err := s.svc.FilterOptions(ctx)
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to load filter options", applog.FieldError, err)
	}

	s.render(w, r, http.StatusOK, "records.html", recordsPage{
		page:       page{Title: "Records", Active: "records", Flash: s.flash.Pop(w, r)},
		Records:    records,
		Count:      len(records),
		Total:      analytics.Total(records),
		Filter:     fv,
		Query:      fv.Query(),
		Warnings:   warnings,
		Options:    opts,
		SortFields: core.SortFields,
	})
}

type dashboardPage struct {
	page
	Dashboard analytics.Dashboard
	Filter    filterValues
	Query     string
	Warnings  []string
	Options   core.FilterOptions
	Charts    []string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	f, fv, warnings := parseFilter(r.URL.Query())

	ctx, cancel := withTimeout(r)
	defer cancel()

	d, err := s.svc.Dashboard(ctx, f)
	if err != nil {
		s.serverError(w, r, "Failed to build dashboard", err)
		return
	}
	opts, err := s.svc.FilterOptions(ctx)
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to load filter options", applog.FieldError, err)
	}

	s.render(w, r, http.StatusOK, "dashboard.html", dashboardPage{
		page:      page{Title: "Dashboard", Active: "dashboard"},
		Dashboard: d,
		Filter:    fv,
		Query:     fv.Query(),
		Warnings:  warnings,
		Options:   opts,
		Charts:    analytics.ChartNames,
	})
}

// handleChart serves one dashboard series as JSON for the chart script.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("chart")
	f, _, _ := parseFilter(r.URL.Query())

	ctx, cancel := withTimeout(r)
	defer cancel()

	d, err := s.svc.Dashboard(ctx, f)
	if err != nil {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Failed to build chart", err, applog.ComponentDashboard, applog.OpAggregate, nil)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to build chart"})
		return
	}
	series, err := d.Chart(name)
	if errors.Is(err, analytics.ErrUnknownChart) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown chart %q", name)})
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// handleExport streams the filtered records as an attachment. The file is
// built in memory so a failure can still produce an error page.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.PathValue("format"))
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest,
			fmt.Sprintf("Unsupported export format %q. Use csv or xlsx.", r.PathValue("format")))
		return
	}
	f, _, _ := parseFilter(r.URL.Query())

	ctx, cancel := withTimeout(r)
	defer cancel()

	records, err := s.svc.ListRecords(ctx, f)
	if err != nil {
		s.serverError(w, r, "Failed to load records for export", err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, records); err != nil {
		s.serverError(w, r, "Failed to write export", err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(s.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)

	s.metrics.ExportServed(string(format))
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogExportServed(r.Context(), string(format), len(records))
}
