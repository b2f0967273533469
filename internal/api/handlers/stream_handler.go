package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"lpg-service/internal/realtime"
)

type StreamHandler struct {
	hub       *realtime.Hub
	heartbeat time.Duration
	logger    *zap.Logger
}

func NewStreamHandler(hub *realtime.Hub, heartbeat time.Duration, logger *zap.Logger) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &StreamHandler{hub: hub, heartbeat: heartbeat, logger: logger}
}

// customerTopics are the topics a customer may follow. Stock alerts are
// for the shop only.
var customerTopics = []realtime.Topic{
	realtime.TopicProducts,
	realtime.TopicOrders,
	realtime.TopicCart,
	realtime.TopicMessages,
	realtime.TopicLocations,
}

func streamFilter(r *http.Request) (realtime.Filter, error) {
	p := actor(r)

	var topics []realtime.Topic
	if raw := r.URL.Query().Get("topics"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			t, ok := realtime.ParseTopic(strings.TrimSpace(name))
			if !ok {
				return realtime.Filter{}, fmt.Errorf("unknown topic %q", name)
			}
			topics = append(topics, t)
		}
	}

	if p.IsAdmin() {
		return realtime.Filter{Topics: topics}, nil
	}

	if len(topics) == 0 {
		topics = customerTopics
	}
	allowed := make([]realtime.Topic, 0, len(topics))
	for _, t := range topics {
		if t != realtime.TopicStockAlerts {
			allowed = append(allowed, t)
		}
	}
	if len(allowed) == 0 {
		return realtime.Filter{}, fmt.Errorf("no topic available")
	}

	return realtime.Filter{Topics: allowed, Scope: p.UserID.String()}, nil
}

// Stream pushes change events as server-sent events. Customers only see
// public rows and their own. Events older than what the stream already sent
// for a row are dropped, so the client never steps back to a stale row.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming is not supported", nil)
		return
	}

	filter, err := streamFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}

	sub := h.hub.Subscribe(filter)
	defer sub.Stop()

	// the server write timeout would cut the stream
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	sub.Start()

	views := map[realtime.Topic]*realtime.Collection[json.RawMessage]{}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case e, ok := <-sub.C():
			if !ok {
				return
			}

			view, found := views[e.Topic]
			if !found {
				view = realtime.NewCollection[json.RawMessage]()
				views[e.Topic] = view
			}
			changed, err := view.Apply(e)
			if err != nil {
				h.logger.Warn("skipping malformed event", zap.String("topic", string(e.Topic)), zap.Error(err))
				continue
			}
			if !changed {
				continue
			}

			data, err := json.Marshal(e)
			if err != nil {
				h.logger.Error("failed to encode event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Topic, data)
			flusher.Flush()
		}
	}
}
