package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abrezinsky/chronolap/internal/broadcast"
	"github.com/abrezinsky/chronolap/internal/logger"
	"github.com/abrezinsky/chronolap/internal/models"
	"github.com/abrezinsky/chronolap/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // viewers connect from arbitrary origins
	},
}

// Hub relays race events to connected viewers. Each client watches one
// race; events for other races are filtered out before delivery.
type Hub struct {
	log         logger.Logger
	race        services.RaceServicer
	broadcaster *broadcast.Broadcaster

	clients    map[*Client]bool
	broadcast  chan models.WSMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex

	unsubscribe func()
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan models.WSMessage
	raceID string
}

// New creates a new Hub instance with injected dependencies
func New(log logger.Logger, race services.RaceServicer, broadcaster *broadcast.Broadcaster) *Hub {
	return &Hub{
		log:         log,
		race:        race,
		broadcaster: broadcaster,
		clients:     make(map[*Client]bool),
		broadcast:   make(chan models.WSMessage, 64),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
	}
}

// Start subscribes the hub to the event stream and begins its main loop
func (h *Hub) Start() {
	h.unsubscribe = h.broadcaster.Subscribe(func(msg models.WSMessage) {
		select {
		case h.broadcast <- msg:
		default:
			// A full relay queue must not stall the mutating caller.
			h.log.Warn("event dropped, relay queue full", "type", msg.Type)
		}
	})
	go h.run()
}

// Stop detaches the hub from the event stream
func (h *Hub) Stop() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

// run handles client registration/unregistration and message fan-out
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.log.Debug("Client connected", "raceId", client.raceID, "total_clients", len(h.clients))

			// Send the current snapshot so the new viewer does not wait
			// for the next mutation.
			go func(c *Client) {
				state, err := h.race.GetState(context.Background(), c.raceID)
				if err != nil {
					h.log.Debug("Initial state unavailable", "raceId", c.raceID, "error", err)
					return
				}
				c.send <- models.WSMessage{
					Type:    models.EventRaceState,
					Payload: models.StateEvent{RaceID: c.raceID, State: *state},
				}
			}(client)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			h.log.Debug("Client disconnected", "total_clients", len(h.clients))

		case message := <-h.broadcast:
			raceID := eventRaceID(message)
			h.mutex.RLock()
			for client := range h.clients {
				if raceID != "" && client.raceID != raceID {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Client's send channel is full, unregister
					go func(c *Client) {
						h.unregister <- c
					}(client)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// eventRaceID extracts the race scope from a push message
func eventRaceID(msg models.WSMessage) string {
	switch payload := msg.Payload.(type) {
	case models.StateEvent:
		return payload.RaceID
	case models.TapRecordedEvent:
		return payload.RaceID
	case models.TapCancelledEvent:
		return payload.RaceID
	}
	return ""
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket error", "error", err)
			}
			break
		}

		var msg models.WSMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.hub.log.Debug("Received message", "type", msg.Type)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			msgBytes, _ := json.Marshal(message)
			w.Write(msgBytes)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and attaches the viewer to a race. The
// race id comes from the URL; unknown races are rejected before upgrade.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, raceID string) {
	if _, err := h.race.GetState(r.Context(), raceID); err != nil {
		http.Error(w, "race not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan models.WSMessage, 256),
		raceID: raceID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
