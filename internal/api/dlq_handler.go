package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shaiso/Carpooling/internal/telemetry"
)

const defaultPeekLimit = 10

// DLQStats возвращает глубины booking_queue и booking_dlq.
// GET /api/v1/admin/dlq
func (h *Handler) DLQStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dlq.Stats(r.Context())
	if HandleServiceError(w, telemetry.FromContext(r.Context(), h.logger), err) {
		return
	}

	Success(w, DLQStatsResponse{Queues: stats})
}

// PeekDLQ показывает сообщения из DLQ, не забирая их.
// GET /api/v1/admin/dlq/messages?limit=...
func (h *Handler) PeekDLQ(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", defaultPeekLimit)
	if !ok {
		return
	}
	if limit <= 0 {
		BadRequest(w, "limit must be positive")
		return
	}

	letters, err := h.dlq.Peek(r.Context(), limit)
	if HandleServiceError(w, telemetry.FromContext(r.Context(), h.logger), err) {
		return
	}

	List(w, letters, len(letters))
}

// ReplayDLQ переносит сообщения из DLQ обратно в booking_queue.
// POST /api/v1/admin/dlq/replay
//
// Тело необязательно: без него переносится defaultPeekLimit сообщений.
func (h *Handler) ReplayDLQ(w http.ResponseWriter, r *http.Request) {
	req := ReplayRequest{Limit: defaultPeekLimit}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Limit <= 0 {
		BadRequest(w, "limit must be positive")
		return
	}

	logger := telemetry.FromContext(r.Context(), h.logger)

	replayed, err := h.dlq.Replay(r.Context(), req.Limit)
	if err != nil && replayed > 0 {
		logger.Warn("dlq replay stopped early", "replayed", replayed, "error", err)
		Success(w, ReplayResponse{Replayed: replayed})
		return
	}
	if HandleServiceError(w, logger, err) {
		return
	}

	logger.Info("dlq replayed", "replayed", replayed)
	Success(w, ReplayResponse{Replayed: replayed})
}
