package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/julesqueue/julesq/internal/webhook"
)

// webhookHandler receives GitHub issues webhooks. Only label events on
// issues are processed; everything else is acknowledged and dropped.
func (s *Server) webhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read body")
			return
		}

		if s.secret != "" {
			sig := r.Header.Get("X-Hub-Signature-256")
			if !verifySignature(s.secret, body, sig) {
				writeError(w, http.StatusUnauthorized, "invalid signature")
				return
			}
		}

		if r.Header.Get("X-GitHub-Event") != "issues" {
			writeJSON(w, map[string]string{"status": "ignored"})
			return
		}

		var event webhook.LabelEvent
		if err := json.Unmarshal(body, &event); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse payload")
			return
		}

		if event.Action != "labeled" && event.Action != "unlabeled" {
			writeJSON(w, map[string]string{"status": "ignored"})
			return
		}

		result, err := s.hook.ProcessLabelEvent(r.Context(), &event)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if result.Action != webhook.ResultNoAction {
			s.Broadcast(WebhookEvent(result))
		}
		writeJSON(w, result)
	}
}

func verifySignature(secret string, body []byte, header string) bool {
	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header[len(prefix):]))
}
