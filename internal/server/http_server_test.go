package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hectorgimenez/afkbot/internal/bot"
)

type fakeSupervisor struct {
	mu      sync.Mutex
	running bool
	starts  int
	stops   int
}

func (f *fakeSupervisor) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return bot.ErrAlreadyRunning
	}
	f.running = true
	f.starts++
	return nil
}

func (f *fakeSupervisor) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.stops++
}

func (f *fakeSupervisor) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeSupervisor) Status() bot.Stats {
	return bot.Stats{SessionID: "abc", SupervisorStatus: bot.InGame, Deaths: 2}
}

func newTestServer(t *testing.T) (*HttpServer, *fakeSupervisor, *httptest.Server) {
	t.Helper()

	sup := &fakeSupervisor{}
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)), sup)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = s.Stop()
	})

	return s, sup, ts
}

func TestRootReportsAlive(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bot has arrived", string(body))

	missing, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestStatusReturnsBotStats(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var data StatusData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	assert.Equal(t, "abc", data.Bot.SessionID)
	assert.Equal(t, bot.InGame, data.Bot.SupervisorStatus)
	assert.Equal(t, 2, data.Bot.Deaths)
	assert.False(t, data.Running)
}

func TestStartStop(t *testing.T) {
	_, sup, ts := newTestServer(t)

	get, err := http.Get(ts.URL + "/start")
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)

	resp, err := http.Post(ts.URL+"/start", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/start", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/stop", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 1, sup.starts)
	assert.Equal(t, 1, sup.stops)
	assert.False(t, sup.Running())
}

func TestWebSocketStreamsStatus(t *testing.T) {
	s, _, ts := newTestServer(t)
	go s.wsServer.Run(s.stop)
	go s.BroadcastStatus(10 * time.Millisecond)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)

	var data StatusData
	require.NoError(t, json.Unmarshal(msg, &data))
	assert.Equal(t, "abc", data.Bot.SessionID)
}

func TestServeStopsConcurrently(t *testing.T) {
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)), &fakeSupervisor{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- s.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 5*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Stop())
		}()
	}
	wg.Wait()

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}

func TestStopBeforeServe(t *testing.T) {
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)), &fakeSupervisor{})
	require.NoError(t, s.Stop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.NoError(t, s.Serve(ln))
}
