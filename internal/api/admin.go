package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleUserSummary serves GET /api/summary/{chat}/{user}.
func (s *Server) handleUserSummary(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chat"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "user"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	us, err := s.agg.UserSummary(r.Context(), chatID, userID, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, us)
}

// handleChatDigest serves GET /api/digest/{chat}?date=YYYY-MM-DD. Nothing is
// posted to the chat.
func (s *Server) handleChatDigest(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chat"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}

	d, err := s.agg.DailyGroupDigest(r.Context(), chatID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleRunDigest serves POST /api/digest?date=YYYY-MM-DD: it posts the day's
// digest to every active chat. External cron jobs call this.
func (s *Server) handleRunDigest(w http.ResponseWriter, r *http.Request) {
	if s.digest == nil {
		writeError(w, http.StatusServiceUnavailable, "digest job not configured")
		return
	}
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}

	res, err := s.digest.Run(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleOutbox serves GET /api/outbox with the reply retry queue stats.
func (s *Server) handleOutbox(w http.ResponseWriter, r *http.Request) {
	if s.outbox == nil {
		writeError(w, http.StatusServiceUnavailable, "outbox not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.outbox.Stats())
}

// dateParam reads ?date=, defaulting to today in the store's time zone.
func (s *Server) dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return s.store.DateOf(time.Now()), true
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return "", false
	}
	return date, true
}
