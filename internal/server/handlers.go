package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/splitlab/splitlab/internal/store"
)

type HealthResponse struct {
	Status        string `json:"status"`
	TestsCount    int    `json:"tests_count"`
	DBSizeBytes   int64  `json:"db_size_bytes"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tests, err := s.svc.ListTests(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	var dbSize int64
	if s.db != nil {
		row := s.db.DB().QueryRow("SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
		_ = row.Scan(&dbSize)
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		TestsCount:    len(tests),
		DBSizeBytes:   dbSize,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	})
}

// BeaconRequest is an incoming impression or conversion event.
type BeaconRequest struct {
	TestID    string `json:"t"`
	VariantID string `json:"v"`
	EventType string `json:"e"`
}

func (s *Server) handleBeacon(w http.ResponseWriter, r *http.Request) {
	// The beacon is hit cross-origin from customer pages.
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BeaconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.TestID == "" || req.VariantID == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	var err error
	switch req.EventType {
	case "impression":
		err = s.svc.RecordImpression(r.Context(), req.TestID, req.VariantID)
	case "conversion":
		err = s.svc.RecordConversion(r.Context(), req.TestID, req.VariantID)
	default:
		http.Error(w, "Invalid event type", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var tests []*store.Test
		var err error
		if r.URL.Query().Get("active") == "true" {
			tests, err = s.svc.ListActiveTests(r.Context())
		} else {
			tests, err = s.svc.ListTests(r.Context())
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		if tests == nil {
			tests = []*store.Test{}
		}
		s.writeJSON(w, http.StatusOK, tests)

	case http.MethodPost:
		var def store.TestDefinition
		if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		test, err := s.svc.CreateTest(r.Context(), &def)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, test)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTestByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tests/")
	id, suffix, _ := strings.Cut(rest, "/")
	if id == "" {
		http.Error(w, "Missing test id", http.StatusBadRequest)
		return
	}

	switch suffix {
	case "":
		s.handleTest(w, r, id)
	case "results":
		s.handleTestResults(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		test, err := s.svc.GetTest(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, test)

	case http.MethodPatch:
		var update store.TestUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		test, err := s.svc.UpdateTest(r.Context(), id, &update)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, test)

	case http.MethodDelete:
		if err := s.svc.DeleteTest(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTestResults(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := s.svc.EvaluateSignificance(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type SuggestionRequest struct {
	ElementSelector string `json:"elementSelector"`
	ElementType     string `json:"elementType"`
	CurrentContent  string `json:"currentContent"`
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SuggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.ElementSelector == "" {
		http.Error(w, "Missing elementSelector", http.StatusBadRequest)
		return
	}

	// Suggest never fails; the generator falls back internally.
	suggestions := s.suggester.Suggest(r.Context(), req.ElementSelector, req.ElementType, req.CurrentContent)
	s.writeJSON(w, http.StatusOK, suggestions)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error()})
	case errors.Is(err, store.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, store.ErrInvalidState):
		s.logger.Error("invalid state", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal inconsistency"})
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
