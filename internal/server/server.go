// Package server exposes the analysis over a small local HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/derickschaefer/atmosight/internal/export"
	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/observability"
	"github.com/derickschaefer/atmosight/internal/power"
	"github.com/derickschaefer/atmosight/internal/render"
	"github.com/derickschaefer/atmosight/internal/service"
	"github.com/derickschaefer/atmosight/internal/store"
	"github.com/derickschaefer/atmosight/internal/util"
)

// Analyzer runs one analysis.
type Analyzer interface {
	Run(ctx context.Context, req service.Request) (service.Bundle, error)
}

// ReportStore reads saved reports.
type ReportStore interface {
	ListReports() ([]store.Report, error)
	GetReport(id string) (store.Report, bool, error)
}

// Server maps HTTP requests to the analysis runner.
type Server struct {
	analyzer        Analyzer
	reports         ReportStore // optional
	metrics         *observability.Metrics
	logger          *slog.Logger
	DefaultVariable string
}

// New creates a Server. reports may be nil, which disables /api/reports.
func New(a Analyzer, reports ReportStore, m *observability.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{analyzer: a, reports: reports, metrics: m, logger: logger, DefaultVariable: "T2M"}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Route("/api", func(r chi.Router) {
		r.Get("/variables", s.handleVariables)
		r.Get("/analysis", s.handleAnalysis)
		r.Get("/export", s.handleExport)
		if s.reports != nil {
			r.Get("/reports", s.handleListReports)
			r.Get("/reports/{id}", s.handleGetReport)
		}
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func (s *Server) handleVariables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Data: power.Variables})
}

type analysisResponse struct {
	Bundle  service.Bundle `json:"bundle"`
	Insight string         `json:"insight"`
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	b, ok := s.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: analysisResponse{Bundle: b, Insight: render.Narrative(&b)}})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	b, ok := s.run(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="atmosight_%s_%s.zip"`, strings.ToLower(b.Variable.Code), b.Date))
	skipped, err := export.WriteBundle(w, &b)
	if err != nil {
		s.logger.Error("writing export", "error", err)
		return
	}
	if len(skipped) > 0 {
		s.logger.Debug("export skipped entries", "skipped", skipped)
	}
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	list, err := s.reports.ListReports()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	// Listing omits payloads.
	for i := range list {
		list[i].Payload = nil
	}
	writeJSON(w, http.StatusOK, envelope{Data: list})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rep, ok, err := s.reports.GetReport(id)
	switch {
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	case !ok:
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("report %q not found", id))
	default:
		writeJSON(w, http.StatusOK, envelope{Data: rep})
	}
}

// run parses the query and runs the analysis, writing the error response
// itself when it fails.
func (s *Server) run(w http.ResponseWriter, r *http.Request) (service.Bundle, bool) {
	req, err := s.parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return service.Bundle{}, false
	}
	b, err := s.analyzer.Run(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return service.Bundle{}, false
	case err != nil:
		s.logger.Warn("analysis failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
		writeError(w, http.StatusBadGateway, "upstream_unavailable", err.Error())
		return service.Bundle{}, false
	}
	return b, true
}

func (s *Server) parseRequest(r *http.Request) (service.Request, error) {
	q := r.URL.Query()
	req := service.Request{
		Location: strings.TrimSpace(q.Get("location")),
		Variable: q.Get("variable"),
	}
	if req.Variable == "" {
		req.Variable = s.DefaultVariable
	}
	if d := q.Get("date"); d != "" {
		t, err := util.ParseDate(d)
		if err != nil {
			return req, err
		}
		req.Date = t
	}

	latStr, lonStr := q.Get("lat"), q.Get("lon")
	if (latStr == "") != (lonStr == "") {
		return req, errors.New("lat and lon must be given together")
	}
	if latStr != "" {
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil || lat < -90 || lat > 90 {
			return req, fmt.Errorf("invalid lat %q", latStr)
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil || lon < -180 || lon > 180 {
			return req, fmt.Errorf("invalid lon %q", lonStr)
		}
		req.Coords = &model.Coordinates{Lat: lat, Lon: lon}
	}

	for name, dst := range map[string]*int{
		"start_year":  &req.StartYear,
		"end_year":    &req.EndYear,
		"day_of_year": &req.DayOfYear,
	} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, fmt.Errorf("invalid %s %q", name, v)
			}
			*dst = n
		}
	}
	return req, nil
}

// ─── Responses ───────────────────────────────────────────────────────────────

type envelope struct {
	Data interface{} `json:"data"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = msg
	b, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
