// Package callback receives the completion POST the remote import system
// sends when a job finishes. Authentication failures are rejected
// outright; once authenticated, every request is answered 200 with any
// processing problems reported in the body, so the remote side never
// retries a callback we already received.
package callback

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"airsync/internal/wpimport"
)

// Completer records a finished import. *wpimport.Coordinator satisfies it.
type Completer interface {
	Complete(importID string, comp wpimport.Completion) error
}

// payload is the JSON body the remote plugin posts. A numeric end_time is
// the sole completion signal; callbacks without one are acknowledged but
// not recorded.
type payload struct {
	ImportID     importID `json:"import_id"`
	StartTime    int64    `json:"start_time"`
	EndTime      int64    `json:"end_time"`
	PostsCreated int      `json:"posts_created"`
	PostsUpdated int      `json:"posts_updated"`
	PostsDeleted int      `json:"posts_deleted"`
	PostsSkipped int      `json:"posts_skipped"`
}

// importID tolerates both string and numeric JSON encodings, the plugin
// has sent both over time.
type importID string

func (id *importID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*id = importID(s)
	return nil
}

type Handler struct {
	secret      string
	knownImport string
	coordinator Completer
	results     *ResultsLog // nil disables sheet logging
}

func NewHandler(secret, knownImport string, coordinator Completer, results *ResultsLog) *Handler {
	return &Handler{
		secret:      secret,
		knownImport: knownImport,
		coordinator: coordinator,
		results:     results,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fmt.Fprint(w, "Import callback handler is active.")
		return
	}

	if h.secret == "" || r.URL.Query().Get("secret") != h.secret {
		log.Warn().Str("remote", r.RemoteAddr).Msg("Callback rejected, bad secret")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		log.Warn().Err(err).Msg("Callback carried no body")
		fmt.Fprint(w, "Error: No data received.")
		return
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		log.Warn().Err(err).Int("body_len", len(body)).Msg("Callback body is not valid JSON")
		fmt.Fprint(w, "Error: Could not parse JSON data.")
		return
	}
	id := string(p.ImportID)
	if id == "" {
		log.Warn().Msg("Callback missing import_id")
		fmt.Fprint(w, "Error: Import ID missing in payload.")
		return
	}
	if id != h.knownImport {
		log.Warn().Str("import_id", id).Msg("Callback for unknown import id")
		fmt.Fprintf(w, "Error: Unknown Import ID %q.", id)
		return
	}

	var problems []string
	if p.EndTime > 0 {
		comp := wpimport.Completion{
			Created:   p.PostsCreated,
			Updated:   p.PostsUpdated,
			Deleted:   p.PostsDeleted,
			Skipped:   p.PostsSkipped,
			StartTime: p.StartTime,
			EndTime:   p.EndTime,
		}
		if err := h.coordinator.Complete(id, comp); err != nil {
			log.Error().Err(err).Str("import_id", id).Msg("Failed to record completion")
			problems = append(problems, "status update failed: "+err.Error())
		}
		if h.results != nil {
			if err := h.results.LogCompletion(r.Context(), id, comp); err != nil {
				log.Error().Err(err).Str("import_id", id).Msg("Failed to log completion to sheet")
				problems = append(problems, "results log failed: "+err.Error())
			}
		}
	} else {
		log.Info().Str("import_id", id).Msg("Callback without end_time, not a completion")
	}

	if len(problems) > 0 {
		fmt.Fprintf(w, "Callback received for Import ID %s. Processed with errors: %s", id, strings.Join(problems, "; "))
		return
	}
	fmt.Fprintf(w, "Callback received for Import ID %s. Processed successfully.", id)
}
