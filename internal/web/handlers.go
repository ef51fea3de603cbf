package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	appLog "sadlamp/internal/log"
	"sadlamp/internal/schedule"
	"sadlamp/internal/slot"
	"sadlamp/internal/today"
	"sadlamp/internal/weather"
)

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/today", s.handleToday)
	s.mux.HandleFunc("GET /api/forecast", s.handleForecast)
	s.mux.HandleFunc("POST /api/suggest", s.handleSuggest)

	s.mux.HandleFunc("GET /api/schedules", s.handleAllSchedules)
	s.mux.HandleFunc("GET /api/schedules/{date}", s.handleDaySchedule)
	s.mux.HandleFunc("POST /api/schedules/{date}", s.handleAddSchedule)
	s.mux.HandleFunc("DELETE /api/schedules/{date}/{id}", s.handleDeleteSchedule)

	s.mux.HandleFunc("POST /api/responses/{date}", s.handleRespond)
	s.mux.HandleFunc("GET /api/preferences", s.handleGetPreferences)
	s.mux.HandleFunc("PATCH /api/preferences", s.handlePatchPreferences)
	s.mux.HandleFunc("PUT /api/location", s.handlePutLocation)
	s.mux.HandleFunc("DELETE /api/storage", s.handleClearStorage)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleToday returns the day report.
//
// GET /api/today?date=YYYY-MM-DD (default: today in the configured timezone)
func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.days.TodayDate()
	}
	if rep, ok := s.cachedToday(date); ok {
		writeJSON(w, http.StatusOK, rep)
		return
	}

	rep, err := s.days.Today(r.Context(), date)
	if err != nil {
		s.fail(w, r, err, "Failed to load today's data.")
		return
	}
	s.storeToday(date, rep)
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	days, err := s.days.FiveDay(r.Context())
	if err != nil {
		s.fail(w, r, err, "Failed to load forecast.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

type suggestRequest struct {
	Date     string              `json:"date"`
	Daylight slot.Daylight       `json:"daylight"`
	Schedule []slot.ScheduleItem `json:"schedule"`
}

type suggestResponse struct {
	Date       string `json:"date"`
	Suggestion string `json:"suggestion"`
	Found      bool   `json:"found"`
}

// handleSuggest runs the slot suggester on caller-supplied data. Like the
// suggester itself it always answers with a display string.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sug, _ := slot.Suggest(req.Date, req.Daylight, req.Schedule, slot.Options{
		SkipUnparseable: s.cfg.Schedule.SkipUnparseable,
	})
	writeJSON(w, http.StatusOK, suggestResponse{Date: req.Date, Suggestion: sug.Message, Found: sug.Found})
}

func (s *Server) handleAllSchedules(w http.ResponseWriter, r *http.Request) {
	all, err := s.schedules.All(r.Context())
	if err != nil {
		s.fail(w, r, err, "failed to load schedules")
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleDaySchedule(w http.ResponseWriter, r *http.Request) {
	entries, err := s.schedules.ForDate(r.Context(), r.PathValue("date"))
	if err != nil {
		s.fail(w, r, err, "failed to load schedule")
		return
	}
	if entries == nil {
		entries = []schedule.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAddSchedule(w http.ResponseWriter, r *http.Request) {
	var e schedule.Entry
	if !decodeJSON(w, r, &e) {
		return
	}
	saved, err := s.schedules.Add(r.Context(), r.PathValue("date"), e)
	if err != nil {
		s.fail(w, r, err, "failed to save schedule")
		return
	}
	s.invalidate()
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.schedules.Delete(r.Context(), r.PathValue("date"), r.PathValue("id")); err != nil {
		s.fail(w, r, err, "failed to delete schedule")
		return
	}
	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Response today.Response `json:"response"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	date := r.PathValue("date")
	if err := s.days.Respond(r.Context(), date, body.Response); err != nil {
		s.fail(w, r, err, "failed to save response")
		return
	}
	s.invalidate()
	writeJSON(w, http.StatusOK, map[string]string{"date": date, "response": string(body.Response)})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := s.days.Preferences(r.Context())
	if err != nil {
		s.fail(w, r, err, "failed to load preferences")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePatchPreferences(w http.ResponseWriter, r *http.Request) {
	var patch today.PreferencesPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	p, err := s.days.SetPreferences(r.Context(), patch)
	if err != nil {
		s.fail(w, r, err, "failed to save preferences")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutLocation(w http.ResponseWriter, r *http.Request) {
	var c weather.Coordinates
	if !decodeJSON(w, r, &c) {
		return
	}
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.location.Save(r.Context(), c); err != nil {
		s.fail(w, r, err, "failed to save location")
		return
	}
	s.invalidate()
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleClearStorage(w http.ResponseWriter, r *http.Request) {
	if err := s.days.ClearAll(r.Context()); err != nil {
		s.fail(w, r, err, "failed to clear storage")
		return
	}
	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

// fail maps domain errors to status codes. Client errors carry their own
// message; server errors are logged and answered with fallback.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, schedule.ErrInvalidEntry), errors.Is(err, today.ErrInvalidResponse):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, schedule.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, weather.ErrMissingAPIKey):
		status = http.StatusServiceUnavailable
	case errors.Is(err, weather.ErrMissingDaylight), errors.Is(err, weather.ErrMissingForecast):
		status = http.StatusBadGateway
	}
	appLog.Error("api request failed", err,
		"request_id", requestID(r.Context()), "method", r.Method, "path", r.URL.Path, "status", status)
	writeError(w, status, fallback)
}

// decodeJSON reads a single JSON object into v, answering 400 or 413 itself
// on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is empty")
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		}
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}
