package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nomnomlab/nomnom-core/internal/bridge"
	"github.com/nomnomlab/nomnom-core/internal/telemetry"
)

// handleGetTelemetry returns the current telemetry snapshot.
//
// The read triggers a lazy broker connect; an unreachable broker is the
// feeder's problem, not ours, so it surfaces as 502.
func (s *Server) handleGetTelemetry(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.EnsureConnected(r.Context()); err != nil {
		s.writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.bridge.Snapshot())
}

// handleManualFeed dispatches a one-off feed command to the device.
func (s *Server) handleManualFeed(w http.ResponseWriter, r *http.Request) {
	var req bridge.ManualFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	cmd, err := s.bridge.SendManualFeed(r.Context(), req)
	if err != nil {
		s.writeBridgeError(w, err)
		return
	}

	s.recordCommand(r, telemetry.CommandKindManual, cmd, cmd.RequestedAt)
	if s.metrics != nil {
		s.metrics.WriteFeedEvent(s.deviceID, cmd.Source, cmd.Grams)
	}

	writeJSON(w, http.StatusAccepted, cmd)
}

// handleAutoFeedConfig publishes the retained feeding schedule.
func (s *Server) handleAutoFeedConfig(w http.ResponseWriter, r *http.Request) {
	var req bridge.AutoFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	cmd, err := s.bridge.SendAutoFeedConfig(r.Context(), req)
	if err != nil {
		s.writeBridgeError(w, err)
		return
	}

	s.recordCommand(r, telemetry.CommandKindAutoConfig, cmd, cmd.RequestedAt)

	writeJSON(w, http.StatusAccepted, cmd)
}

// maxHistoryLimit caps the page size for history queries.
const maxHistoryLimit = 500

// handleTelemetryHistory lists archived telemetry events, newest first.
//
// Query parameters: channel (optional), limit (default 50, max 500),
// offset (default 0).
func (s *Server) handleTelemetryHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "telemetry archive not configured")
		return
	}

	filter := telemetry.EventFilter{
		Channel: r.URL.Query().Get("channel"),
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxHistoryLimit {
			writeBadRequest(w, "limit must be an integer between 1 and 500")
			return
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	events, err := s.history.ListEvents(r.Context(), filter)
	if err != nil {
		s.logger.Error("telemetry history query failed", "error", err)
		writeInternalError(w, "failed to query telemetry history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// recordCommand archives an accepted feed command. Archive failures are
// logged but never fail the request: the command already reached the broker.
func (s *Server) recordCommand(r *http.Request, kind string, cmd any, requestedAt string) {
	if s.history == nil {
		return
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		s.logger.Warn("failed to marshal command for archive", "kind", kind, "error", err)
		return
	}
	ts, err := time.Parse(time.RFC3339, requestedAt)
	if err != nil {
		ts = time.Now().UTC()
	}

	record := telemetry.CommandRecord{
		Kind:        kind,
		Payload:     string(payload),
		RequestedAt: ts,
	}
	if err := s.history.SaveCommand(r.Context(), &record); err != nil {
		s.logger.Warn("failed to archive feed command", "kind", kind, "error", err)
	}
}

// writeBridgeError maps bridge errors onto HTTP status codes.
func (s *Server) writeBridgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bridge.ErrInvalidArgument):
		writeUnprocessable(w, err.Error())
	case errors.Is(err, bridge.ErrConnectFailed),
		errors.Is(err, bridge.ErrNotConnected),
		errors.Is(err, bridge.ErrPublishFailed):
		s.logger.Warn("broker operation failed", "error", err)
		writeBadGateway(w, err.Error())
	default:
		s.logger.Error("unexpected bridge error", "error", err)
		writeInternalError(w, "internal server error")
	}
}
