package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/focusgroup/focusbot/internal/infra/telegram"
)

// processTimeout bounds the work done for one update after the request
// context is detached.
const processTimeout = 30 * time.Second

// handleTelegramWebhook applies one update. Once the body parses, the answer
// is 200 even if processing failed: any other status makes Telegram deliver
// the same update again.
func (s *Server) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret != "" {
		got := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid webhook secret")
			return
		}
	}

	var update telegram.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "malformed update: "+err.Error())
		return
	}

	ev, ok := update.ToEvent()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// A client disconnect must not abort a half-applied transition.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), processTimeout)
	defer cancel()

	out, err := s.events.Process(ctx, ev)
	if err != nil {
		s.log.Error("update failed", "request_id", middleware.GetReqID(r.Context()), "update_id", update.UpdateID, "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "transition": out.Transition})
}

// handleDebugWebhook classifies an update's text without touching state.
func (s *Server) handleDebugWebhook(w http.ResponseWriter, r *http.Request) {
	var update telegram.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "malformed update: "+err.Error())
		return
	}
	if update.Message == nil || update.Message.Text == "" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "debug": "no text message"})
		return
	}

	username := ""
	if update.Message.From != nil {
		username = update.Message.From.Username
	}
	in := s.classifier.Classify(r.Context(), update.Message.Text, username)
	s.log.Debug("debug classification", "text", update.Message.Text, "type", in.Type)

	debug := map[string]any{
		"originalMessage": update.Message.Text,
		"parsedResult":    in,
	}
	if in.Description != nil {
		debug["category"] = s.classifier.Categorize(r.Context(), *in.Description)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "debug": debug})
}
