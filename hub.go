package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// ObserverEvent is one JSON message pushed to connected spectators. The
// feed only ever carries public information: phase transitions while the
// game runs, and the full reveal once it is resolved.
type ObserverEvent struct {
	Type       string          `json:"type"` // "phase" or "result"
	Phase      string          `json:"phase,omitempty"`
	Winner     string          `json:"winner,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Executed   []Seat          `json:"executed,omitempty"`
	Winners    []Seat          `json:"winners,omitempty"`
	FinalRoles map[Seat]Role   `json:"final_roles,omitempty"`
	Names      map[Seat]string `json:"names,omitempty"`
}

// PhaseEvent announces a session phase transition.
func PhaseEvent(p Phase) ObserverEvent {
	return ObserverEvent{Type: "phase", Phase: string(p)}
}

// ResultEvent carries the final reveal.
func ResultEvent(outcome WinOutcome, store *IdentityStore) ObserverEvent {
	names := make(map[Seat]string, NumSeats)
	for seat := Seat(1); seat <= NumSeats; seat++ {
		names[seat] = store.Name(seat)
	}
	return ObserverEvent{
		Type:       "result",
		Winner:     string(outcome.Faction),
		Reason:     outcome.Reason,
		Executed:   outcome.Executed,
		Winners:    outcome.Winners,
		FinalRoles: store.FinalRoles(),
		Names:      names,
	}
}

// observerClient is one spectator connection.
type observerClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex // serialize writes (required by gorilla/websocket)
}

// Hub fans observer events out to all connected spectators. Late joiners
// get the event history so they see the current phase immediately.
type Hub struct {
	clients    map[*websocket.Conn]*observerClient
	broadcast  chan []byte
	register   chan *observerClient
	unregister chan *websocket.Conn
	history    [][]byte
	mu         sync.RWMutex
	done       chan struct{}
	wg         sync.WaitGroup
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*observerClient),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *observerClient),
		unregister: make(chan *websocket.Conn, 64),
		done:       make(chan struct{}),
	}
}

// stop signals the hub goroutine to exit and waits for it to finish.
func (h *Hub) stop() {
	close(h.done)
	h.wg.Wait()
}

// BroadcastEvent encodes an event and queues it for all spectators.
func (h *Hub) BroadcastEvent(ev ObserverEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		logError("BroadcastEvent: marshal", err)
		return
	}
	LogWSMessage("OUT", "observers", string(data))
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

func (h *Hub) run() {
	h.wg.Add(1)
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			replay := make([][]byte, len(h.history))
			copy(replay, h.history)
			h.mu.Unlock()
			log.Printf("Observer connected. Total: %d", len(h.clients))
			for _, msg := range replay {
				client.writeMu.Lock()
				err := client.conn.WriteMessage(websocket.TextMessage, msg)
				client.writeMu.Unlock()
				if err != nil {
					log.Printf("Observer replay write error: %v", err)
					break
				}
			}

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
			log.Printf("Observer disconnected. Total: %d", len(h.clients))

		case message := <-h.broadcast:
			h.mu.Lock()
			h.history = append(h.history, message)
			for conn, client := range h.clients {
				client.writeMu.Lock()
				err := conn.WriteMessage(websocket.TextMessage, message)
				client.writeMu.Unlock()
				if err != nil {
					log.Printf("Observer write error: %v", err)
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// handleObserverWS upgrades a spectator connection. Observers are
// read-only: inbound messages are discarded.
func (h *Hub) handleObserverWS(w http.ResponseWriter, r *http.Request) {
	var upgrader = websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Observer upgrade error: %v", err)
		return
	}

	h.register <- &observerClient{conn: conn}

	go func() {
		defer func() {
			h.unregister <- conn
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// startObserverServer serves the spectator feed on addr until the process
// exits. Returns the hub feeding it.
func startObserverServer(addr string) *Hub {
	hub := newHub()
	go hub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.handleObserverWS)

	go func() {
		log.Printf("Observer feed listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Observer server stopped: %v", err)
		}
	}()
	return hub
}
