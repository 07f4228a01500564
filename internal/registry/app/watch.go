package app

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/websocket"

	"github.com/louisbranch/keybazaar/internal/audit"
)

// watchFrame is the JSON shape streamed to /watch subscribers. Empty
// attribution fields are omitted so frames stay small.
type watchFrame struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Time         string `json:"time"`
	Owner        string `json:"owner,omitempty"`
	ServiceID    string `json:"service_id,omitempty"`
	KeyID        string `json:"key_id,omitempty"`
	CounterKeyID string `json:"counter_key_id,omitempty"`
	Seller       string `json:"seller,omitempty"`
	Buyer        string `json:"buyer,omitempty"`
	Price        string `json:"price,omitempty"`
	FromID       string `json:"from_id,omitempty"`
	ToID         string `json:"to_id,omitempty"`
	Category     string `json:"category,omitempty"`
	Data         string `json:"data,omitempty"`
}

func frameFromEvent(evt audit.Event) watchFrame {
	frame := watchFrame{
		ID:           evt.ID,
		Type:         string(evt.Type),
		Time:         evt.Time.Format(time.RFC3339Nano),
		Owner:        evt.Owner,
		ServiceID:    evt.ServiceID,
		KeyID:        evt.KeyID,
		CounterKeyID: evt.CounterKeyID,
		Seller:       evt.Seller,
		Buyer:        evt.Buyer,
		FromID:       evt.FromID,
		ToID:         evt.ToID,
		Category:     evt.Category,
		Data:         evt.Data,
	}
	if evt.Price > 0 {
		frame.Price = strconv.FormatUint(evt.Price, 10)
	}
	return frame
}

// NewDebugHandler serves the registry debug surface: a liveness page at
// /up and the committed audit-event feed at /watch.
func NewDebugHandler(hub *audit.Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		streamEvents(conn, hub)
	})
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
	return mux
}

// streamEvents forwards committed events to one websocket until either
// side goes away. Writes are best-effort; the durable log stays in the
// store.
func streamEvents(conn *websocket.Conn, hub *audit.Hub) {
	defer func() { _ = conn.Close() }()
	if hub == nil {
		return
	}
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	// Drain client frames so closed peers are noticed promptly.
	done := make(chan struct{})
	go func() {
		defer close(done)
		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(frameFromEvent(evt))
			if err != nil {
				log.Printf("registry: marshal watch frame: %v", err)
				continue
			}
			if err := websocket.Message.Send(conn, string(payload)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
