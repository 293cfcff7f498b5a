package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/fp-mqtt-broker/internal/journal"
)

// handleListJournal returns journaled messages.
//
// Query parameters: topic, since and until (RFC 3339), limit, offset.
func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeNotFound(w, "message journal is not enabled")
		return
	}

	filter, msg := parseJournalFilter(r)
	if msg != "" {
		writeBadRequest(w, msg)
		return
	}

	result, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing journal failed", "error", err)
		writeInternalError(w, "failed to list journal")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// parseJournalFilter returns the filter, or a non-empty message describing the bad parameter.
func parseJournalFilter(r *http.Request) (journal.Filter, string) {
	q := r.URL.Query()
	filter := journal.Filter{Topic: q.Get("topic")}

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return filter, "since must be an RFC 3339 timestamp"
		}
		filter.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return filter, "until must be an RFC 3339 timestamp"
		}
		filter.Until = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, "limit must be a non-negative integer"
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, "offset must be a non-negative integer"
		}
		filter.Offset = n
	}

	return filter, ""
}
