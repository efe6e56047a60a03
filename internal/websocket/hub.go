package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSeatsHeld     MessageType = "seats_held"
	MessageTypeSeatsBooked   MessageType = "seats_booked"
	MessageTypeSeatsReleased MessageType = "seats_released"
)

// Seat statuses carried in updates
const (
	SeatStatusAvailable = "available"
	SeatStatusHeld      = "held"
	SeatStatusBooked    = "booked"
)

// SeatUpdate represents a seat status change
type SeatUpdate struct {
	SeatID int64  `json:"seatId"`
	Status string `json:"status"`
}

// Message represents a WebSocket message
type Message struct {
	Type             MessageType  `json:"type"`
	FlightID         string       `json:"flightId"`
	BookingReference string       `json:"bookingReference,omitempty"`
	Seats            []SeatUpdate `json:"seats"`
	Timestamp        int64        `json:"timestamp"`
}

// Hub fans seat updates out to the clients watching each flight
type Hub struct {
	clients    map[uuid.UUID]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	mu         sync.RWMutex
	logger     *logrus.Logger
	now        func() time.Time
}

// NewHub creates a new Hub
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
		logger:     logger,
		now:        time.Now,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client. Registrations and unregistrations arriving after Run has
// returned are dropped.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for flightID, clients := range h.clients {
				for client := range clients {
					close(client.send)
				}
				delete(h.clients, flightID)
			}
			h.mu.Unlock()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.flightID] == nil {
				h.clients[client.flightID] = make(map[*Client]bool)
			}
			h.clients[client.flightID][client] = true
			total := len(h.clients[client.flightID])
			h.mu.Unlock()
			h.logger.WithFields(logrus.Fields{"flight_id": client.flightID, "clients": total}).Debug("WebSocket client registered")

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// join hands client to Run. It reports false once the hub has stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[client.flightID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.flightID)
	}
	h.logger.WithFields(logrus.Fields{"flight_id": client.flightID, "clients": len(clients)}).Debug("WebSocket client unregistered")
}

func (h *Hub) deliver(message *Message) {
	flightID, err := uuid.Parse(message.FlightID)
	if err != nil {
		h.logger.WithField("flight_id", message.FlightID).Warn("WebSocket: invalid flight id in broadcast")
		return
	}
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket: failed to marshal message")
		return
	}

	h.mu.RLock()
	var slow []*Client
	for client := range h.clients[flightID] {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	// Clients that cannot keep up are dropped rather than blocking the hub.
	for _, client := range slow {
		h.remove(client)
	}
}

func (h *Hub) publish(t MessageType, flightID, reference, status string, seatIDs []int64) {
	if len(seatIDs) == 0 {
		return
	}
	seats := make([]SeatUpdate, len(seatIDs))
	for i, id := range seatIDs {
		seats[i] = SeatUpdate{SeatID: id, Status: status}
	}
	msg := &Message{
		Type:             t,
		FlightID:         flightID,
		BookingReference: reference,
		Seats:            seats,
		Timestamp:        h.now().UnixMilli(),
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.WithField("flight_id", flightID).Warn("WebSocket: broadcast queue full, dropping update")
	}
}

// BroadcastSeatsHeld announces seats taken by a new booking
func (h *Hub) BroadcastSeatsHeld(flightID, reference string, seatIDs []int64) {
	h.publish(MessageTypeSeatsHeld, flightID, reference, SeatStatusHeld, seatIDs)
}

// BroadcastSeatsBooked announces seats of a paid booking
func (h *Hub) BroadcastSeatsBooked(flightID, reference string, seatIDs []int64) {
	h.publish(MessageTypeSeatsBooked, flightID, reference, SeatStatusBooked, seatIDs)
}

// BroadcastSeatsReleased announces seats returned by cancellation or expiry
func (h *Hub) BroadcastSeatsReleased(flightID, reference string, seatIDs []int64) {
	h.publish(MessageTypeSeatsReleased, flightID, reference, SeatStatusAvailable, seatIDs)
}

// ClientCount returns the number of clients watching a flight
func (h *Hub) ClientCount(flightID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[flightID])
}
