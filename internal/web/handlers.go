package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/census/internal/core"
	"github.com/JonMunkholm/census/internal/logging"
)

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status   string                 `json:"status"`
	Database bool                   `json:"database"`
	Loads    core.LoadLimiterStatus `json:"loads"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, healthResponse{
		Status:   "ok",
		Database: s.service.HasDatabase(),
		Loads:    s.service.Limiter().Status(),
	})
}

// inputs returns the configured table paths.
func (s *Server) inputs() core.Inputs {
	return core.Inputs{
		NationalityFile: s.cfg.Census.NationalityFile,
		AgeSexFile:      s.cfg.Census.AgeSexFile,
	}
}

// handleReconcile scans the configured tables and reports how their
// regions pair up. Nothing is written.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Scan(r.Context(), s.inputs())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, res)
}

// handlePreview scans one uploaded table without touching the database.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if kind != core.KindNationality && kind != core.KindAgeSex {
		err := fmt.Errorf("%w: %q", core.ErrUnknownTable, kind)
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	maxSize := s.cfg.Server.MaxUploadSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		respondError(w, r, fmt.Errorf("parse form: %w", err), status)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errors.New("no file provided"), http.StatusBadRequest)
		return
	}
	defer file.Close()

	p, err := s.service.Preview(kind, header.Filename, file)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		respondError(w, r, err, status)
		return
	}

	logging.WithFields(r.Context(), "kind", kind, "file", header.Filename).Info("preview scanned",
		"status", p.Report.Status, "regions", p.Report.Regions)
	writeJSON(w, r, p)
}

// loadRequest is the optional body of POST /api/loads.
type loadRequest struct {
	BaseYear int `json:"base_year"`
}

// handleLoad loads the configured tables into the database.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, r, fmt.Errorf("invalid load request: %w", err), http.StatusBadRequest)
			return
		}
	}

	in := s.inputs()
	in.BaseYear = req.BaseYear

	// SERVER_WRITE_TIMEOUT is sized for scans; a load may run up to LOAD_TIMEOUT.
	if s.cfg.Load.Timeout > 0 {
		if err := extendWriteDeadline(w, s.cfg.Load.Timeout+loadResponseGrace); err != nil {
			logging.FromContext(r.Context()).Debug("write deadline not extended", "error", err)
		}
	}

	res, err := s.service.Load(r.Context(), in)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSONStatus(w, r, http.StatusCreated, res)
}

// loadResponseGrace leaves time to encode the result after a load that used
// its whole timeout.
const loadResponseGrace = 10 * time.Second

// extendWriteDeadline moves the connection's write deadline d into the future.
func extendWriteDeadline(w http.ResponseWriter, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return http.NewResponseController(w).SetWriteDeadline(time.Now().Add(d))
}

// handleHistory lists recent loads, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.History(r.Context(), parseIntParam(r, "limit", 20))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, runs)
}

// handleReset truncates the fact table.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ResetFacts(r.Context()); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, map[string]string{"status": "reset"})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
