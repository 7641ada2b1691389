package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breakyard/shiftledger/internal/event"
	"github.com/breakyard/shiftledger/internal/testutil"
)

var hubStart = time.Date(2021, 5, 1, 12, 0, 0, 0, time.UTC)

func startTestHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	opts = append([]Option{WithClock(testutil.NewClock(hubStart).Now)}, opts...)
	h := NewHub(opts...)
	require.NoError(t, h.Start("127.0.0.1:0"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return h
}

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://%s%s", h.Addr().String(), Path)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(frame, &payload))
	return payload
}

func waitForSubscribers(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Subscribers() == n },
		2*time.Second, 10*time.Millisecond)
}

func TestPublish_NoSubscribers(t *testing.T) {
	h := NewHub()
	// Never started: nothing to reach, nothing to block on.
	h.Publish(event.ShiftStarted{SystemTime: hubStart})
	assert.Zero(t, h.Subscribers())
}

func TestSubscriber_WelcomeFirstThenEvents(t *testing.T) {
	h := startTestHub(t)
	conn := dial(t, h)

	welcome := readFrame(t, conn)
	assert.Equal(t, "welcomeEvent", welcome["type"])
	assert.Equal(t, "hello new client!", welcome["msg"])

	waitForSubscribers(t, h, 1)
	h.Publish(event.ShiftStarted{SystemTime: hubStart})

	started := readFrame(t, conn)
	assert.Equal(t, "shiftStarted", started["type"])
	assert.Equal(t, "2021-05-01T12:00:00Z", started["systemTime"])
}

func TestPublish_FanOut(t *testing.T) {
	h := startTestHub(t)
	a := dial(t, h)
	b := dial(t, h)
	readFrame(t, a)
	readFrame(t, b)
	waitForSubscribers(t, h, 2)

	h.Publish(event.NewTimeTick(hubStart, 60, 900, true))

	for _, conn := range []*websocket.Conn{a, b} {
		tick := readFrame(t, conn)
		assert.Equal(t, "timeTick", tick["type"])
		assert.Equal(t, 60.0, tick["currentTime"])
	}
}

// Connecting while publishers are hammering the hub must not let a domain
// frame beat the welcome, and must never wedge the handshake on a full
// outbox.
func TestSubscriber_WelcomeFirstUnderPublishLoad(t *testing.T) {
	h := startTestHub(t, WithOutboxSize(4))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					h.Publish(event.NewTimeTick(hubStart, 1, 900, true))
				}
			}
		}()
	}

	for i := 0; i < 25; i++ {
		conn := dial(t, h)
		first := readFrame(t, conn)
		assert.Equal(t, "welcomeEvent", first["type"],
			"the welcome is always the first frame, connection %d", i)
		conn.Close()
	}

	close(stop)
	wg.Wait()
}

// One subscriber that never reads must not stall the publisher or starve a
// subscriber that does.
func TestPublish_FrozenSubscriberDoesNotStallLive(t *testing.T) {
	h := startTestHub(t, WithOutboxSize(8))

	frozen := dial(t, h) // never reads a single frame
	live := dial(t, h)
	readFrame(t, live)
	waitForSubscribers(t, h, 2)

	received := make(chan int, 1)
	go func() {
		n := 0
		for {
			_ = live.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
			if _, _, err := live.ReadMessage(); err != nil {
				break
			}
			n++
		}
		received <- n
	}()

	published := make(chan struct{})
	go func() {
		defer close(published)
		for i := 0; i < 2000; i++ {
			h.Publish(event.NewTimeTick(hubStart, float64(i), 900, true))
		}
	}()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("publish stalled behind a frozen subscriber")
	}
	assert.Greater(t, <-received, 0, "the live subscriber kept receiving")
	_ = frozen
}

func TestPublish_SlowSubscriberDropsFrames(t *testing.T) {
	h := NewHub(WithClock(testutil.NewClock(hubStart).Now), WithOutboxSize(2))

	// Drive the outbox directly: a session that is never drained.
	s := &session{id: "stuck", outbox: make(chan []byte, 2), done: make(chan struct{})}
	h.sessions[s.id] = s

	for i := 0; i < 5; i++ {
		h.Publish(event.NewTimeTick(hubStart, float64(i), 900, true))
	}

	assert.Len(t, s.outbox, 2, "overflow frames are dropped, publisher never blocks")
}

func TestShutdown_ClosesSubscribers(t *testing.T) {
	h := startTestHub(t)
	conn := dial(t, h)
	readFrame(t, conn)
	waitForSubscribers(t, h, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure),
		"subscribers get a normal closure, not a torn connection")

	require.NoError(t, h.Shutdown(ctx), "shutdown is idempotent")
}

func TestRelay_NilStopIsSafe(t *testing.T) {
	var r *Relay
	r.Stop()
}
