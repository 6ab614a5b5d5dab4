package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
)

// venueServer runs a test WebSocket endpoint standing in for an exchange's
// public stream.
func venueServer(t *testing.T, handler func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("websocket accept error: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		if handler != nil {
			handler(conn)
		}
	}))
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func echoHandler(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := conn.Write(ctx, msgType, data); err != nil {
			return
		}
	}
}

func newTestClient(t *testing.T, wsURL string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig(wsURL, "testvenue")
	cfg.PingInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := New(cfg)
	require.NoError(t, err)
	return client
}

func TestClientConnect(t *testing.T) {
	srv, wsURL := venueServer(t, func(conn *websocket.Conn) {
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	client := newTestClient(t, wsURL, nil)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Connect(ctx))
	require.Equal(t, StateConnected, client.State())
	require.True(t, client.IsConnected())
}

func TestClientConnectRefused(t *testing.T) {
	client := newTestClient(t, "ws://localhost:59999", nil)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.Error(t, client.Connect(ctx))
	require.Equal(t, StateDisconnected, client.State())
}

func TestClientSendJSONSubscription(t *testing.T) {
	var received []byte
	var mu sync.Mutex

	srv, wsURL := venueServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			return
		}
		mu.Lock()
		received = data
		mu.Unlock()
	})
	defer srv.Close()

	client := newTestClient(t, wsURL, nil)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))

	// The shape every adapter sends right after connecting.
	sub := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": []string{"btcusdt@bookTicker"},
		"id":     1,
	}
	require.NoError(t, client.SendJSON(ctx, sub))

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, received, "server did not receive subscription")

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(received, &parsed), "subscription frame must be real JSON, body: %s", received)
	require.Equal(t, "SUBSCRIBE", parsed["method"])
}

func TestClientDeliversInboundFrames(t *testing.T) {
	srv, wsURL := venueServer(t, echoHandler)
	defer srv.Close()

	client := newTestClient(t, wsURL, nil)
	defer client.Close()

	var got []byte
	var mu sync.Mutex
	delivered := make(chan struct{})
	client.OnMessage(func(ctx context.Context, msg []byte) {
		mu.Lock()
		got = msg
		mu.Unlock()
		close(delivered)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))

	frame := []byte(`{"s":"BTCUSDT","b":"64999.50","a":"65000.10"}`)
	require.NoError(t, client.Send(ctx, frame))

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for echoed frame")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, string(frame), string(got))
}

func TestClientStateTransitions(t *testing.T) {
	srv, wsURL := venueServer(t, func(conn *websocket.Conn) {
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	client := newTestClient(t, wsURL, nil)
	defer client.Close()

	var states []State
	var mu sync.Mutex
	client.OnStateChange(func(state State, err error) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(states), 2, "states: %v", states)
	require.Equal(t, StateConnecting, states[0])
	require.Equal(t, StateConnected, states[1])
}

func TestClientCloseIsIdempotent(t *testing.T) {
	srv, wsURL := venueServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.Read(context.Background()); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	client := newTestClient(t, wsURL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))

	require.NoError(t, client.Close())
	require.Equal(t, StateClosed, client.State())
	require.NoError(t, client.Close(), "second Close must be a no-op")
}

func TestClientConcurrentSend(t *testing.T) {
	var msgCount atomic.Int32

	srv, wsURL := venueServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.Read(context.Background()); err != nil {
				return
			}
			msgCount.Add(1)
		}
	})
	defer srv.Close()

	client := newTestClient(t, wsURL, nil)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))

	// Several adapters' goroutines share one connection during
	// resubscribe; writes must interleave without corruption.
	const goroutines = 10
	const perGoroutine = 5
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				msg := map[string]int{"goroutine": id, "msg": j}
				if err := client.SendJSON(ctx, msg); err != nil {
					t.Errorf("SendJSON failed: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	time.Sleep(200 * time.Millisecond)
	require.Equal(t, int32(goroutines*perGoroutine), msgCount.Load())
}

func TestClientDisconnectsOnOversizedFrame(t *testing.T) {
	srv, wsURL := venueServer(t, func(conn *websocket.Conn) {
		large := make([]byte, 1024*1024)
		for i := range large {
			large[i] = 'A'
		}
		conn.Write(context.Background(), websocket.MessageText, large)
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	client := newTestClient(t, wsURL, func(cfg *Config) {
		cfg.MaxMessageSize = 100
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))

	time.Sleep(300 * time.Millisecond)
	require.NotEqual(t, StateConnected, client.State(),
		"client must drop the connection after an oversized frame")
}
