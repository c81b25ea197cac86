package http

import (
	"errors"
	"net/http"

	"quiz-attempt-service/internal/domain"
)

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeRanks upgrades to a websocket that streams the caller's rank. The
// stored rank (if any) is sent first, then every recomputation.
func (h *Handler) ServeRanks(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := h.feed.Subscribe(user.ID)
	defer cancel()

	current, err := h.leaderboard.Rank(r.Context(), user.ID)
	switch {
	case err == nil:
		if err := conn.WriteJSON(outboundMessage[domain.UserRank]{Type: "rank", Payload: current}); err != nil {
			return
		}
	case errors.Is(err, domain.ErrNotFound):
		// No submissions yet; wait for the first recomputation.
	default:
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "rank unavailable"}})
		return
	}

	// The client never sends anything meaningful; reading detects close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case rank, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[domain.UserRank]{Type: "rank", Payload: rank}); err != nil {
				h.log.WithError(err).WithField("user_id", user.ID).Debug("ws write error")
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
