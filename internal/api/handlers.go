package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/fp-mqtt-broker/internal/broker"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/config"
	"github.com/nerrad567/fp-mqtt-broker/internal/recording"
)

// StatusResponse is returned by GET /api/v1/status.
//
// The embedded snapshot matches what PublishStatus sends, except MQTTStatus
// carries the live connection state rather than the fixed published value.
type StatusResponse struct {
	broker.Status
	SubscribedTopics []string `json:"subscribed_topics"`
	Handlers         int      `json:"handlers"`
	StreamClients    int      `json:"stream_clients"`
	Version          string   `json:"version"`
}

// RecordingRequest is the body of PUT /api/v1/recording.
type RecordingRequest struct {
	State string `json:"state"`
}

// RecordingResponse reports the recording state.
type RecordingResponse struct {
	State broker.RecordingState `json:"state"`
}

// PublishResponse acknowledges an accepted publish.
type PublishResponse struct {
	Published bool   `json:"published"`
	Topic     string `json:"topic,omitempty"`
}

// handleHealth answers 200 while the broker is connected and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.broker.ConnectionState()
	body := map[string]any{
		"status":           "ok",
		"connection_state": state,
		"version":          s.version,
	}
	if state != broker.StateConnected {
		body["status"] = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.broker.Status()
	snapshot.MQTTStatus = string(s.broker.ConnectionState())

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:           snapshot,
		SubscribedTopics: s.broker.SubscribedTopics(),
		Handlers:         s.broker.HandlerCount(),
		StreamClients:    s.hub.ClientCount(),
		Version:          s.version,
	})
}

func (s *Server) handlePublishStatus(w http.ResponseWriter, _ *http.Request) {
	if !s.broker.HasRole(config.RoleStatus) {
		writeError(w, http.StatusConflict, ErrCodeConflict, "no status topic configured")
		return
	}
	if !s.broker.PublishStatus() {
		writeNotConnected(w, "status snapshot not published")
		return
	}
	writeJSON(w, http.StatusAccepted, PublishResponse{Published: true})
}

// handlePublishCommand publishes the request body, a JSON object, to the
// recording_control topic at QoS 1.
func (s *Server) handlePublishCommand(w http.ResponseWriter, r *http.Request) {
	var cmd map[string]any
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil || cmd == nil {
		writeBadRequest(w, "body must be a JSON object")
		return
	}
	if !s.broker.HasRole(config.RoleRecordingControl) {
		writeError(w, http.StatusConflict, ErrCodeConflict, "no recording_control topic configured")
		return
	}
	if !s.broker.PublishCommand(cmd) {
		writeNotConnected(w, "command not published")
		return
	}
	writeJSON(w, http.StatusAccepted, PublishResponse{Published: true})
}

func (s *Server) handleGetRecording(w http.ResponseWriter, _ *http.Request) {
	if s.recording == nil {
		writeNotFound(w, "recording control is not configured")
		return
	}
	writeJSON(w, http.StatusOK, RecordingResponse{State: s.recording.State()})
}

func (s *Server) handleSetRecording(w http.ResponseWriter, r *http.Request) {
	if s.recording == nil {
		writeNotFound(w, "recording control is not configured")
		return
	}

	var req RecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	target, err := broker.ParseRecordingState(req.State)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	state, err := s.recording.Transition(r.Context(), target)
	switch {
	case errors.Is(err, recording.ErrInvalidTransition):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case err != nil:
		s.logger.Error("recording transition failed", "target", target.String(), "error", err)
		writeInternalError(w, "recording transition failed")
	default:
		writeJSON(w, http.StatusOK, RecordingResponse{State: state})
	}
}
