package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/service"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/types"
)

type Dependencies struct {
	Logger      *slog.Logger
	Addr        string
	CORSOrigins []string

	Attendance *service.AttendanceService
	Roster     *service.Roster
	Scanners   *service.ScannerService
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux
	attendance *service.AttendanceService
	roster     *service.Roster
	scanners   *service.ScannerService
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	mux := http.NewServeMux()

	s := &Server{
		logger:     d.Logger,
		mux:        mux,
		attendance: d.Attendance,
		roster:     d.Roster,
		scanners:   d.Scanners,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /v1/attendance/events", s.handleSubmitEvent)
	mux.HandleFunc("GET /v1/attendance/day", s.handleGetForDay)
	mux.HandleFunc("GET /v1/attendance/range", s.handleGetForRange)

	mux.HandleFunc("PUT /v1/sites/{siteID}", s.handlePutSite)
	mux.HandleFunc("GET /v1/sites/{siteID}/roster", s.handleGetRoster)
	mux.HandleFunc("PUT /v1/workers/{workerID}", s.handlePutWorker)
	mux.HandleFunc("DELETE /v1/workers/{workerID}", s.handleDeleteWorker)

	mux.HandleFunc("POST /v1/scanners/heartbeat", s.handleScannerHeartbeat)

	handler := loggingMiddleware(d.Logger, corsMiddleware(d.CORSOrigins, mux))

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	var req types.EventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := s.attendance.Submit(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, "attendance event", err)
		return
	}
	encodeBody(w, r, http.StatusOK, resp)
}

func (s *Server) handleGetForDay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.attendance.GetForDay(r.Context(), workerIDs(q["workerId"]), q.Get("day"))
	if err != nil {
		s.writeServiceError(w, r, "attendance day", err)
		return
	}
	encodeBody(w, r, http.StatusOK, list)
}

func (s *Server) handleGetForRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.attendance.GetForRange(r.Context(), workerIDs(q["workerId"]), q.Get("start"), q.Get("end"))
	if err != nil {
		s.writeServiceError(w, r, "attendance range", err)
		return
	}
	encodeBody(w, r, http.StatusOK, list)
}

func (s *Server) handlePutSite(w http.ResponseWriter, r *http.Request) {
	var site types.Site
	if !decodeBody(w, r, &site) {
		return
	}
	id := r.PathValue("siteID")
	if site.SiteID != "" && site.SiteID != id {
		writeError(w, http.StatusBadRequest, "id_mismatch", "siteId in body does not match the path")
		return
	}
	site.SiteID = id

	out, err := s.roster.PutSite(r.Context(), site)
	if err != nil {
		s.writeServiceError(w, r, "put site", err)
		return
	}
	encodeBody(w, r, http.StatusOK, out)
}

func (s *Server) handleGetRoster(w http.ResponseWriter, r *http.Request) {
	roster, err := s.roster.Get(r.Context(), r.PathValue("siteID"))
	if err != nil {
		s.writeServiceError(w, r, "get roster", err)
		return
	}
	encodeBody(w, r, http.StatusOK, roster)
}

func (s *Server) handlePutWorker(w http.ResponseWriter, r *http.Request) {
	var worker types.Worker
	if !decodeBody(w, r, &worker) {
		return
	}
	id := r.PathValue("workerID")
	if worker.WorkerID != "" && worker.WorkerID != id {
		writeError(w, http.StatusBadRequest, "id_mismatch", "workerId in body does not match the path")
		return
	}
	worker.WorkerID = id

	out, err := s.roster.PutWorker(r.Context(), worker)
	if err != nil {
		s.writeServiceError(w, r, "put worker", err)
		return
	}
	encodeBody(w, r, http.StatusOK, out)
}

func (s *Server) handleDeleteWorker(w http.ResponseWriter, r *http.Request) {
	if err := s.roster.DeleteWorker(r.Context(), r.PathValue("workerID")); err != nil {
		s.writeServiceError(w, r, "delete worker", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleScannerHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req types.ScannerHeartbeatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := s.scanners.Heartbeat(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, "scanner heartbeat", err)
		return
	}
	encodeBody(w, r, http.StatusOK, resp)
}

// writeServiceError maps service and store errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "path", r.URL.Path, "err", err)
		writeError(w, status, code, "unexpected server error")
		return
	}
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidWorkerID):
		return http.StatusBadRequest, "invalid_worker_id"
	case errors.Is(err, service.ErrInvalidSiteID):
		return http.StatusBadRequest, "invalid_site_id"
	case errors.Is(err, service.ErrInvalidAction):
		return http.StatusBadRequest, "invalid_action"
	case errors.Is(err, service.ErrInvalidDay):
		return http.StatusBadRequest, "invalid_day"
	case errors.Is(err, service.ErrInvalidTimestamp):
		return http.StatusBadRequest, "invalid_timestamp"
	case errors.Is(err, service.ErrInvalidRange):
		return http.StatusBadRequest, "invalid_range"
	case errors.Is(err, service.ErrInvalidTimezone):
		return http.StatusBadRequest, "invalid_timezone"
	case errors.Is(err, service.ErrInvalidScannerID):
		return http.StatusBadRequest, "invalid_scanner_id"
	case errors.Is(err, service.ErrInvalidScannerState):
		return http.StatusBadRequest, "invalid_scanner_state"
	case errors.Is(err, service.ErrUnknownWorker):
		return http.StatusNotFound, "unknown_worker"
	case errors.Is(err, service.ErrUnknownSite):
		return http.StatusNotFound, "unknown_site"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "conflict_retry"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// workerIDs accepts both repeated workerId parameters and comma lists.
func workerIDs(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}
