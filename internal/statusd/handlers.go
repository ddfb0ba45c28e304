package statusd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/faceyourself/faceyourself/internal/auth"
	"github.com/faceyourself/faceyourself/internal/remote"
	"github.com/faceyourself/faceyourself/internal/schema"
)

// routes wires the HTTP API.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/sync", s.handleSync)

	mux.HandleFunc("GET /api/logs/daily", s.withUser(s.handleListDaily))
	mux.HandleFunc("POST /api/logs/daily", s.withUser(s.handleSaveDaily))
	mux.HandleFunc("PUT /api/logs/daily/{id}", s.withUser(s.handleUpdateDaily))
	mux.HandleFunc("DELETE /api/logs/daily/{id}", s.withUser(s.handleDeleteDaily))

	mux.HandleFunc("GET /api/logs/weekly", s.withUser(s.handleListWeekly))
	mux.HandleFunc("POST /api/logs/weekly", s.withUser(s.handleSaveWeekly))
	mux.HandleFunc("PUT /api/logs/weekly/{id}", s.withUser(s.handleUpdateWeekly))
	mux.HandleFunc("DELETE /api/logs/weekly/{id}", s.withUser(s.handleDeleteWeekly))

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// withUser resolves the request identity. With a verifier configured
// the Authorization bearer token is validated; otherwise the default
// user applies.
func (s *Server) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.verifier == nil {
			if s.defaultUser != nil {
				r = r.WithContext(auth.WithUser(r.Context(), s.defaultUser))
			}
			next(w, r)
			return
		}

		user, err := s.verifier.VerifyToken(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			s.writeError(w, auth.ErrUnauthenticated)
			return
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), user)))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.statusMessage(s.engine.Status()))
}

// handleSync kicks a background drain pass and reports the status at
// the time of the kick. A drain can outlast the server's write timeout,
// so the handler never waits for it; clients follow progress on /ws or
// by polling /api/status.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "1" || r.URL.Query().Get("force") == "true"

	if force {
		s.engine.ForceAsync()
	} else {
		s.engine.TriggerAsync()
	}
	s.writeJSON(w, http.StatusAccepted, s.statusMessage(s.engine.Status()))
}

func (s *Server) handleListDaily(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r)
	logs, err := s.repo.DailyLogs(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if logs == nil {
		logs = []schema.DailyLog{}
	}
	s.writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleSaveDaily(w http.ResponseWriter, r *http.Request) {
	var req schema.DailyLogPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid request body: %v", errBadRequest, err))
		return
	}
	if err := s.repo.SaveDailyLog(r.Context(), req.Date, req.Tasks); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"result": "saved"})
}

func (s *Server) handleUpdateDaily(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Tasks []schema.TaskLog `json:"tasks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid request body: %v", errBadRequest, err))
		return
	}
	if err := s.repo.UpdateDailyLog(r.Context(), id, req.Tasks); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"result": "updated"})
}

func (s *Server) handleDeleteDaily(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.repo.DeleteDailyLog(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"result": "deleted"})
}

func (s *Server) handleListWeekly(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r)
	logs, err := s.repo.WeeklyLogs(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if logs == nil {
		logs = []schema.WeeklyLog{}
	}
	s.writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleSaveWeekly(w http.ResponseWriter, r *http.Request) {
	var req schema.WeeklyLogPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid request body: %v", errBadRequest, err))
		return
	}
	err := s.repo.SaveWeeklyLog(r.Context(), req.WeekStart, req.Tasks.Goal, req.Tasks.FocusTasks)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"result": "saved"})
}

func (s *Server) handleUpdateWeekly(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Tasks schema.WeeklyTasks `json:"tasks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid request body: %v", errBadRequest, err))
		return
	}
	if err := s.repo.UpdateWeeklyLog(r.Context(), id, req.Tasks); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"result": "updated"})
}

func (s *Server) handleDeleteWeekly(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.repo.DeleteWeeklyLog(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"result": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("Failed to encode response: %v", err)
	}
}

// writeError maps domain errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		code = http.StatusUnauthorized
	case errors.Is(err, remote.ErrNotFound):
		code = http.StatusNotFound
	case remote.IsUnavailable(err):
		code = http.StatusServiceUnavailable
	case errors.Is(err, errBadRequest) || isValidation(err):
		code = http.StatusBadRequest
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}

var errBadRequest = errors.New("bad request")

// isValidation reports whether the error came from payload validation
// rather than infrastructure.
func isValidation(err error) bool {
	return errors.Is(err, schema.ErrInvalid)
}

// queryLimit parses the optional ?limit= parameter.
func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid log id", errBadRequest)
	}
	return id, nil
}
