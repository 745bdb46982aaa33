package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prepdeck/interview-coach/internal/events"
	"github.com/prepdeck/interview-coach/internal/interview"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS layer in front of the mux.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleEvents streams pipeline lifecycle events for one interview over a
// websocket. A "since" query parameter replays buffered events first so a
// client reconnecting mid-pipeline misses nothing.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.records.Get(r.Context(), id); err != nil {
		if errors.Is(err, interview.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		writePipelineError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Interview %s: websocket upgrade failed: %v", id, err)
		return
	}
	defer conn.Close()

	// Subscribe before replaying so no event falls between the two.
	ch, cancel := s.hub.Subscribe(id)
	defer cancel()

	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	lastSeq := since
	for _, event := range s.hub.Since(since, id) {
		if err := writeEvent(conn, event); err != nil {
			return
		}
		lastSeq = event.Seq
	}

	// Drain reads so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Seq <= lastSeq {
				continue
			}
			if err := writeEvent(conn, event); err != nil {
				return
			}
			lastSeq = event.Seq
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, event events.Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(event)
}
