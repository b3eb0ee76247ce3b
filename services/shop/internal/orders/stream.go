package orders

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"

	"github.com/appetiteclub/cakeshop/services/shop/internal/table"
)

// Stream sends the orders of a view as Server-Sent Events: the current list
// first, then every poller update.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	log := h.log(r)
	token, ok := h.token(w, r, log)
	if !ok {
		return
	}

	key, ok := h.key(r)
	if !ok {
		apt.RespondError(w, http.StatusBadRequest, "Invalid status or date")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := uuid.NewString()
	log = log.With("subscriber_id", subscriberID, "status", key.Status)
	log.Info("new SSE connection")

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	flush(w)

	// Read before subscribing so the snapshot fetch is not echoed back as an
	// update.
	orders, err := h.service.Feed().Read(r.Context(), token, key, table.Query{})
	if err != nil {
		log.Error("cannot load initial orders", "error", err)
	}

	updates, unsubscribe := h.service.Feed().Subscribe(token, key)
	defer unsubscribe()

	if err == nil {
		h.send(w, Update{Key: key, Orders: orders})
	}

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info("SSE client disconnected")
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flush(w)

		case u, ok := <-updates:
			if !ok {
				return
			}
			h.send(w, u)
		}
	}
}

func (h *Handler) send(w http.ResponseWriter, u Update) {
	data, err := json.Marshal(u)
	if err != nil {
		h.logger.Error("cannot encode order update", "error", err)
		return
	}
	fmt.Fprintf(w, "event: orders\n")
	fmt.Fprintf(w, "data: %s\n\n", data)
	flush(w)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
