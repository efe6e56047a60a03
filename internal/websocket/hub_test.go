package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cx-tal-miterani/flight-inventory/internal/logging"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = h.Run(ctx) }()
	return h
}

func receive(t *testing.T, ch <-chan []byte) Message {
	t.Helper()
	select {
	case data := <-ch:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestHub_BroadcastReachesOnlyWatchersOfFlight(t *testing.T) {
	h := startHub(t)
	flightA, flightB := uuid.New(), uuid.New()

	a := &Client{hub: h, send: make(chan []byte, 4), flightID: flightA}
	b := &Client{hub: h, send: make(chan []byte, 4), flightID: flightB}
	h.register <- a
	h.register <- b
	require.Eventually(t, func() bool { return h.ClientCount(flightA) == 1 && h.ClientCount(flightB) == 1 }, time.Second, 10*time.Millisecond)

	h.BroadcastSeatsHeld(flightA.String(), "BK23456789", []int64{5, 6})

	msg := receive(t, a.send)
	assert.Equal(t, MessageTypeSeatsHeld, msg.Type)
	assert.Equal(t, "BK23456789", msg.BookingReference)
	assert.Equal(t, []SeatUpdate{{SeatID: 5, Status: SeatStatusHeld}, {SeatID: 6, Status: SeatStatusHeld}}, msg.Seats)

	select {
	case <-b.send:
		t.Fatal("client of another flight received the update")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_StatusPerMessageType(t *testing.T) {
	h := startHub(t)
	flightID := uuid.New()
	c := &Client{hub: h, send: make(chan []byte, 4), flightID: flightID}
	h.register <- c
	require.Eventually(t, func() bool { return h.ClientCount(flightID) == 1 }, time.Second, 10*time.Millisecond)

	h.BroadcastSeatsBooked(flightID.String(), "BK1", []int64{1})
	msg := receive(t, c.send)
	assert.Equal(t, MessageTypeSeatsBooked, msg.Type)
	assert.Equal(t, SeatStatusBooked, msg.Seats[0].Status)

	h.BroadcastSeatsReleased(flightID.String(), "BK1", []int64{1})
	msg = receive(t, c.send)
	assert.Equal(t, MessageTypeSeatsReleased, msg.Type)
	assert.Equal(t, SeatStatusAvailable, msg.Seats[0].Status)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := startHub(t)
	flightID := uuid.New()
	c := &Client{hub: h, send: make(chan []byte, 1), flightID: flightID}
	h.register <- c
	h.unregister <- c

	require.Eventually(t, func() bool { return h.ClientCount(flightID) == 0 }, time.Second, 10*time.Millisecond)
	_, open := <-c.send
	assert.False(t, open)
}

func TestServeWS(t *testing.T) {
	h := startHub(t)
	router := mux.NewRouter()
	router.HandleFunc("/api/flights/{id}/ws", h.ServeWS)
	srv := httptest.NewServer(router)
	defer srv.Close()

	flightID := uuid.New()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/flights/" + flightID.String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.ClientCount(flightID) == 1 }, time.Second, 10*time.Millisecond)
	h.BroadcastSeatsReleased(flightID.String(), "BK23456789", []int64{9})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, flightID.String(), msg.FlightID)
	assert.Equal(t, int64(9), msg.Seats[0].SeatID)
}

func TestServeWS_InvalidFlight(t *testing.T) {
	h := startHub(t)
	router := mux.NewRouter()
	router.HandleFunc("/api/flights/{id}/ws", h.ServeWS)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/flights/nope/ws", nil))
	assert.Equal(t, 400, rec.Code)
}

func stoppedHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.Run(ctx))
	return h
}

func TestHub_JoinAndLeaveReturnAfterShutdown(t *testing.T) {
	h := stoppedHub(t)
	c := &Client{hub: h, send: make(chan []byte, 1), flightID: uuid.New()}

	finished := make(chan bool)
	go func() {
		joined := h.join(c)
		h.leave(c)
		finished <- joined
	}()

	select {
	case joined := <-finished:
		assert.False(t, joined)
	case <-time.After(time.Second):
		t.Fatal("join or leave blocked on a stopped hub")
	}
	assert.Zero(t, h.ClientCount(c.flightID))
}

func TestHub_ShutdownClosesClientsAndReadPumpExits(t *testing.T) {
	h := NewHub(logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(stopped)
	}()

	router := mux.NewRouter()
	router.HandleFunc("/api/flights/{id}/ws", h.ServeWS)
	srv := httptest.NewServer(router)
	defer srv.Close()

	flightID := uuid.New()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/flights/" + flightID.String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.ClientCount(flightID) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	<-stopped

	// The server side closes the connection; its readPump then unregisters
	// against a stopped hub and must not hang.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.Zero(t, h.ClientCount(flightID))
}

func TestServeWS_HubStopped(t *testing.T) {
	h := stoppedHub(t)
	router := mux.NewRouter()
	router.HandleFunc("/api/flights/{id}/ws", h.ServeWS)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/flights/" + uuid.NewString() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
